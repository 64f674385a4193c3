package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	s3blob "github.com/alanyoungcy/web3dona/internal/blob/s3"
	"github.com/alanyoungcy/web3dona/internal/cache/redis"
	"github.com/alanyoungcy/web3dona/internal/config"
	"github.com/alanyoungcy/web3dona/internal/crypto"
	"github.com/alanyoungcy/web3dona/internal/domain"
	"github.com/alanyoungcy/web3dona/internal/feed"
	"github.com/alanyoungcy/web3dona/internal/ledger"
	"github.com/alanyoungcy/web3dona/internal/metrics"
	"github.com/alanyoungcy/web3dona/internal/notify"
	"github.com/alanyoungcy/web3dona/internal/oracle"
	"github.com/alanyoungcy/web3dona/internal/server/handler"
	"github.com/alanyoungcy/web3dona/internal/service"
	"github.com/alanyoungcy/web3dona/internal/store/postgres"
)

// Dependencies bundles everything the modes need. It is constructed by Wire
// and torn down by the returned cleanup function. The optional collaborators
// are nil when their backend is disabled.
type Dependencies struct {
	Ledger   *ledger.Client
	Feed     *feed.CoinGeckoClient
	Gate     *oracle.Gate
	Service  *service.SettlementService
	Metrics  *metrics.Metrics
	Notifier *notify.Notifier
	Keys     crypto.KeySource

	// Redis
	LockManager domain.LockManager
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus

	// Postgres
	DonationStore domain.DonationStore
	AuditStore    domain.AuditStore

	// Blob storage
	ReceiptArchive domain.BlobWriter

	// HealthChecks holds one check per reachable backend.
	HealthChecks map[string]handler.CheckFunc
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	deps := &Dependencies{
		Metrics:      metrics.New(),
		HealthChecks: make(map[string]handler.CheckFunc),
		Keys: crypto.KeySource{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		},
	}

	// --- Ledger ---
	eth, err := ethclient.DialContext(ctx, cfg.Ledger.RPCURL)
	if err != nil {
		return fail("ethclient", err)
	}
	closers = append(closers, eth.Close)

	chainID := big.NewInt(cfg.Ledger.ChainID)
	if cfg.Ledger.ChainID == 0 {
		callCtx, cancel := context.WithTimeout(ctx, cfg.Ledger.CallTimeout)
		chainID, err = eth.ChainID(callCtx)
		cancel()
		if err != nil {
			return fail("chain id", err)
		}
		logger.InfoContext(ctx, "chain id discovered from rpc", slog.String("chain_id", chainID.String()))
	}

	deps.Ledger = ledger.NewClient(eth, ledger.Config{
		DonationAddress:    common.HexToAddress(cfg.Ledger.DonationAddress),
		OracleAddress:      common.HexToAddress(cfg.Ledger.OracleAddress),
		ChainID:            chainID,
		CallTimeout:        cfg.Ledger.CallTimeout,
		ConfirmTimeout:     cfg.Ledger.ConfirmTimeout,
		PollInterval:       cfg.Ledger.PollInterval,
		GasLimitMultiplier: cfg.Ledger.GasLimitMultiplier,
	}, deps.Metrics, logger)
	deps.HealthChecks["ledger"] = func(ctx context.Context) error {
		_, err := eth.HeaderByNumber(ctx, nil)
		return err
	}

	// --- Price feed ---
	feedOpts := []feed.CoinGeckoClientOption{
		feed.WithPair(cfg.Feed.Coin, cfg.Feed.Fiat),
		feed.WithTimeout(cfg.Feed.Timeout),
		feed.WithMaxQuoteAge(cfg.Feed.MaxQuoteAge),
		feed.WithObserver(deps.Metrics),
	}
	if cfg.Feed.BaseURL != "" {
		feedOpts = append(feedOpts, feed.WithBaseURL(cfg.Feed.BaseURL))
	}
	if cfg.Feed.APIKey != "" {
		feedOpts = append(feedOpts, feed.WithAPIKey(cfg.Feed.APIKey))
	}
	deps.Feed = feed.NewCoinGeckoClient(feedOpts...)

	// --- Redis (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.LockManager = redis.NewLockManager(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.HealthChecks["redis"] = redisClient.Ping
	}

	// --- Oracle gate ---
	deps.Gate = oracle.NewGate(oracle.GateConfig{
		UpdateInterval: cfg.Oracle.UpdateInterval,
		RefreshTimeout: cfg.Oracle.RefreshTimeout,
		Locker:         deps.LockManager,
		LockTTL:        cfg.Oracle.LockTTL,
	}, logger)

	// --- PostgreSQL (optional) ---
	if cfg.Database.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Name,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}

		pool := pgClient.Pool()
		deps.DonationStore = postgres.NewDonationStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.HealthChecks["postgres"] = pgClient.Ping
	}

	// --- S3 receipt archive (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		deps.ReceiptArchive = s3blob.NewWriter(s3Client)
		deps.HealthChecks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	deps.Notifier = notify.NewNotifier(notifySenders(cfg.Notify), cfg.Notify.Events, logger)

	// --- Settlement service ---
	svc := service.NewSettlementService(deps.Ledger, deps.Feed, deps.Gate, logger).
		WithNotifier(deps.Notifier).
		WithMetrics(deps.Metrics)
	if deps.DonationStore != nil {
		svc = svc.WithDonationStore(deps.DonationStore)
	}
	if deps.AuditStore != nil {
		svc = svc.WithAuditStore(deps.AuditStore)
	}
	if deps.SignalBus != nil {
		svc = svc.WithSignalBus(deps.SignalBus)
	}
	if deps.ReceiptArchive != nil {
		svc = svc.WithReceiptArchive(deps.ReceiptArchive)
	}
	deps.Service = svc

	return deps, cleanup, nil
}

func notifySenders(cfg config.NotifyConfig) []notify.Sender {
	var senders []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	return senders
}
