package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/web3dona/internal/convert"
	"github.com/alanyoungcy/web3dona/internal/crypto"
	"github.com/alanyoungcy/web3dona/internal/domain"
	"github.com/alanyoungcy/web3dona/internal/ledger"
	"github.com/alanyoungcy/web3dona/internal/metrics"
	"github.com/alanyoungcy/web3dona/internal/notify"
	"github.com/alanyoungcy/web3dona/internal/oracle"
)

//go:generate mockgen -destination=mock_deps_test.go -package=service . Ledger,PriceFeed

// Client-facing validation messages.
const (
	msgDonationFieldsRequired = "Name, amount, and private key are required"
	msgPrivateKeyRequired     = "Private key is required"
	msgInvalidPrivateKey      = "invalid private key"
)

// ErrRecordsDisabled is returned by ListDonations when no record store is
// configured.
var ErrRecordsDisabled = errors.New("service: donation records are not enabled")

// Ledger is the on-chain surface the settlement service drives.
type Ledger interface {
	ChainID() *big.Int
	ReadRate(ctx context.Context) (*big.Int, error)
	PublishRate(ctx context.Context, signer ledger.Signer, rate *big.Int) (domain.Receipt, error)
	SubmitDonation(ctx context.Context, signer ledger.Signer, label string, wei *big.Int) (domain.Receipt, error)
	SubmitWithdrawal(ctx context.Context, signer ledger.Signer) (domain.Receipt, error)
	Balance(ctx context.Context, account common.Address) (*big.Int, error)
}

// PriceFeed supplies fiat quotes for oracle refreshes.
type PriceFeed interface {
	FetchQuote(ctx context.Context) (domain.PriceQuote, error)
}

// WalletInfo is the address and balance behind a signing secret.
type WalletInfo struct {
	Address string
	Balance decimal.Decimal
}

// RateStatus describes the rate currently stored on-chain.
type RateStatus struct {
	Rate          decimal.Decimal
	LastRefreshAt time.Time
	Stale         bool
}

// SettlementService turns donation, withdrawal and rate-update requests into
// confirmed ledger transactions. Each request builds its own signer and
// destroys it before returning.
type SettlementService struct {
	ledger  Ledger
	feed    PriceFeed
	gate    *oracle.Gate
	chainID *big.Int

	records  domain.DonationStore
	audit    domain.AuditStore
	bus      domain.SignalBus
	archive  domain.BlobWriter
	notifier *notify.Notifier
	metrics  *metrics.Metrics

	background sync.WaitGroup
	logger     *slog.Logger
}

// NewSettlementService creates a SettlementService. The optional
// collaborators are attached with the With* methods.
func NewSettlementService(l Ledger, feed PriceFeed, gate *oracle.Gate, logger *slog.Logger) *SettlementService {
	return &SettlementService{
		ledger:  l,
		feed:    feed,
		gate:    gate,
		chainID: l.ChainID(),
		logger:  logger.With(slog.String("component", "settlement_service")),
	}
}

// WithDonationStore records every donation attempt in store.
func (s *SettlementService) WithDonationStore(store domain.DonationStore) *SettlementService {
	s.records = store
	return s
}

// WithAuditStore appends settlement and oracle events to store.
func (s *SettlementService) WithAuditStore(store domain.AuditStore) *SettlementService {
	s.audit = store
	return s
}

// WithSignalBus publishes settlement events on bus.
func (s *SettlementService) WithSignalBus(bus domain.SignalBus) *SettlementService {
	s.bus = bus
	return s
}

// WithReceiptArchive writes a JSON receipt of every successful settlement.
func (s *SettlementService) WithReceiptArchive(w domain.BlobWriter) *SettlementService {
	s.archive = w
	return s
}

// WithNotifier sends settlement notifications through n.
func (s *SettlementService) WithNotifier(n *notify.Notifier) *SettlementService {
	s.notifier = n
	return s
}

// WithMetrics records settlement metrics on m.
func (s *SettlementService) WithMetrics(m *metrics.Metrics) *SettlementService {
	s.metrics = m
	return s
}

// Wait blocks until background receipt uploads have finished.
func (s *SettlementService) Wait() {
	s.background.Wait()
}

// Donate converts req.AmountFiat at the on-chain rate and sends it to the
// donation contract, refreshing the oracle first when it is stale. A failed
// refresh does not fail the donation.
func (s *SettlementService) Donate(ctx context.Context, req domain.DonationRequest) (domain.SettlementResult, error) {
	start := time.Now()
	if strings.TrimSpace(req.RecipientLabel) == "" || req.AmountFiat.Sign() <= 0 || strings.TrimSpace(req.SigningSecret) == "" {
		return s.reject(domain.OperationDonate, start, domain.NewValidationError(msgDonationFieldsRequired))
	}

	signer, err := s.newSigner(req.SigningSecret)
	if err != nil {
		return s.reject(domain.OperationDonate, start, err)
	}
	defer signer.Destroy()

	s.logger.InfoContext(ctx, "donation started",
		slog.Any("request", req),
		slog.String("from", signer.Address().Hex()),
	)

	result := domain.SettlementResult{
		ID:         uuid.NewString(),
		Operation:  domain.OperationDonate,
		Label:      req.RecipientLabel,
		AmountFiat: req.AmountFiat,
	}

	s.refreshIfDue(ctx, signer)

	onChain, err := s.ledger.ReadRate(ctx)
	if err != nil {
		return s.fail(ctx, result, start, fmt.Errorf("service: read rate: %w", err))
	}
	result.Rate = convert.RateFromChain(onChain)

	wei, err := convert.ToCrypto(req.AmountFiat, result.Rate)
	if err != nil {
		return s.fail(ctx, result, start, err)
	}
	result.CryptoAmount = convert.FromWei(wei)

	receipt, err := s.ledger.SubmitDonation(ctx, signer, req.RecipientLabel, wei)
	if err != nil {
		return s.fail(ctx, result, start, fmt.Errorf("service: submit donation: %w", err))
	}
	result.TxHash = receipt.TxHash

	return s.succeed(ctx, result, start), nil
}

// Withdraw asks the donation contract to release its balance to the signer.
func (s *SettlementService) Withdraw(ctx context.Context, req domain.WithdrawalRequest) (domain.SettlementResult, error) {
	start := time.Now()
	if strings.TrimSpace(req.SigningSecret) == "" {
		return s.reject(domain.OperationWithdraw, start, domain.NewValidationError(msgPrivateKeyRequired))
	}

	signer, err := s.newSigner(req.SigningSecret)
	if err != nil {
		return s.reject(domain.OperationWithdraw, start, err)
	}
	defer signer.Destroy()

	result := domain.SettlementResult{
		ID:        uuid.NewString(),
		Operation: domain.OperationWithdraw,
		Label:     signer.Address().Hex(),
	}

	receipt, err := s.ledger.SubmitWithdrawal(ctx, signer)
	if err != nil {
		return s.fail(ctx, result, start, fmt.Errorf("service: submit withdrawal: %w", err))
	}
	result.TxHash = receipt.TxHash

	return s.succeed(ctx, result, start), nil
}

// UpdateRate publishes a fresh quote regardless of staleness. It is
// serialized with donation-triggered refreshes.
func (s *SettlementService) UpdateRate(ctx context.Context, secret string) (domain.SettlementResult, error) {
	start := time.Now()
	if strings.TrimSpace(secret) == "" {
		return s.reject(domain.OperationUpdateRate, start, domain.NewValidationError(msgPrivateKeyRequired))
	}

	signer, err := s.newSigner(secret)
	if err != nil {
		return s.reject(domain.OperationUpdateRate, start, err)
	}
	defer signer.Destroy()

	result := domain.SettlementResult{
		ID:        uuid.NewString(),
		Operation: domain.OperationUpdateRate,
		Label:     signer.Address().Hex(),
	}

	update, err := s.gate.Refresh(ctx, s.refreshFunc(signer))
	if err != nil {
		return s.fail(ctx, result, start, fmt.Errorf("service: update rate: %w", err))
	}
	result.TxHash = update.TxHash
	result.Rate = update.Rate

	return s.succeed(ctx, result, start), nil
}

// WalletInfo returns the address derived from secret and its balance.
func (s *SettlementService) WalletInfo(ctx context.Context, secret string) (WalletInfo, error) {
	if strings.TrimSpace(secret) == "" {
		return WalletInfo{}, domain.NewValidationError(msgPrivateKeyRequired)
	}
	signer, err := s.newSigner(secret)
	if err != nil {
		return WalletInfo{}, err
	}
	defer signer.Destroy()

	bal, err := s.ledger.Balance(ctx, signer.Address())
	if err != nil {
		return WalletInfo{}, fmt.Errorf("service: wallet balance: %w", err)
	}
	return WalletInfo{Address: signer.Address().Hex(), Balance: convert.FromWei(bal)}, nil
}

// RateStatus reads the on-chain rate and reports whether it is due for a
// refresh.
func (s *SettlementService) RateStatus(ctx context.Context) (RateStatus, error) {
	onChain, err := s.ledger.ReadRate(ctx)
	if err != nil {
		return RateStatus{}, fmt.Errorf("service: read rate: %w", err)
	}
	return RateStatus{
		Rate:          convert.RateFromChain(onChain),
		LastRefreshAt: s.gate.LastRefresh(),
		Stale:         s.gate.ShouldRefresh(time.Now()),
	}, nil
}

// ListDonations returns recorded donation attempts, newest first.
func (s *SettlementService) ListDonations(ctx context.Context, opts domain.ListOpts) ([]domain.DonationRecord, error) {
	if s.records == nil {
		return nil, ErrRecordsDisabled
	}
	recs, err := s.records.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("service: list donations: %w", err)
	}
	return recs, nil
}

// ReportRefresh records the outcome of an oracle refresh. A zero update with
// a nil error means the refresh was skipped.
func (s *SettlementService) ReportRefresh(ctx context.Context, update domain.RateUpdate, err error) {
	switch {
	case err != nil:
		s.recordRefresh("failed")
		s.logger.WarnContext(ctx, "oracle refresh failed", slog.String("error", err.Error()))
		s.notifyAsync(ctx, notify.EventRateRefreshFailed, "Oracle refresh failed", err.Error())
	case update.TxHash == "":
		s.recordRefresh("skipped")
	default:
		s.recordRefresh("published")
		s.auditLog(ctx, notify.EventRatePublished, map[string]any{
			"tx_hash": update.TxHash,
			"rate":    update.Rate.String(),
		})
		s.publish(ctx, domain.ChannelOracle, newRateEvent(update))
		s.notifyAsync(ctx, notify.EventRatePublished, "Rate published",
			fmt.Sprintf("rate %s\ntx %s", update.Rate.String(), update.TxHash))
	}
}

// refreshIfDue never fails the caller: on error the donation proceeds with
// whatever rate is already on-chain.
func (s *SettlementService) refreshIfDue(ctx context.Context, signer ledger.Signer) {
	_, ok, err := s.gate.RefreshIfDue(ctx, s.refreshFunc(signer))
	var reported refreshReported
	switch {
	case errors.As(err, &reported):
		s.logger.DebugContext(ctx, "continuing with on-chain rate", slog.String("error", err.Error()))
	case err != nil && ctx.Err() != nil:
		// The refresh carries on under its own budget and reports itself.
		s.logger.WarnContext(ctx, "stopped waiting for oracle refresh", slog.String("error", err.Error()))
	case err != nil:
		s.ReportRefresh(ctx, domain.RateUpdate{}, err)
	case !ok:
		s.recordRefresh("skipped")
	}
}

// refreshReported marks a refresh error ReportRefresh has already seen.
type refreshReported struct{ error }

func (e refreshReported) Unwrap() error { return e.error }

// refreshFunc reports inside the flight so callers sharing one refresh
// record it once.
func (s *SettlementService) refreshFunc(signer ledger.Signer) oracle.RefreshFunc {
	publish := oracle.NewRefreshFunc(s.feed, s.ledger, signer)
	return func(ctx context.Context) (domain.RateUpdate, error) {
		update, err := publish(ctx)
		s.ReportRefresh(ctx, update, err)
		if err != nil {
			return update, refreshReported{err}
		}
		return update, nil
	}
}

func (s *SettlementService) newSigner(secret string) (*crypto.EphemeralSigner, error) {
	signer, err := crypto.NewEphemeralSigner(secret, s.chainID)
	if err != nil {
		return nil, domain.NewValidationError(msgInvalidPrivateKey)
	}
	return signer, nil
}

// reject ends a request that never reached the ledger.
func (s *SettlementService) reject(op domain.SettlementOperation, start time.Time, err error) (domain.SettlementResult, error) {
	if s.metrics != nil {
		s.metrics.RecordSettlement(string(op), "rejected", time.Since(start))
	}
	return domain.SettlementResult{
		Operation: op,
		Status:    domain.SettlementError,
		Message:   err.Error(),
		SettledAt: time.Now().UTC(),
	}, err
}

func (s *SettlementService) fail(ctx context.Context, result domain.SettlementResult, start time.Time, err error) (domain.SettlementResult, error) {
	result.Status = domain.SettlementError
	result.Message = err.Error()
	result.TxHash = domain.TxHashOf(err)
	result.SettledAt = time.Now().UTC()

	s.logger.ErrorContext(ctx, "settlement failed",
		slog.String("id", result.ID),
		slog.String("operation", string(result.Operation)),
		slog.String("tx_hash", result.TxHash),
		slog.String("kind", domain.Kind(err).Error()),
		slog.String("error", err.Error()),
	)
	s.finish(ctx, result, start)
	s.notifyAsync(ctx, notify.EventSettlementFailed,
		fmt.Sprintf("Settlement failed: %s", result.Operation), result.Message)
	return result, err
}

func (s *SettlementService) succeed(ctx context.Context, result domain.SettlementResult, start time.Time) domain.SettlementResult {
	result.Status = domain.SettlementSuccess
	result.SettledAt = time.Now().UTC()

	s.logger.InfoContext(ctx, "settlement confirmed",
		slog.String("id", result.ID),
		slog.String("operation", string(result.Operation)),
		slog.String("tx_hash", result.TxHash),
		slog.String("crypto_amount", result.CryptoAmount.String()),
		slog.Duration("took", time.Since(start)),
	)
	s.finish(ctx, result, start)
	s.archiveReceipt(ctx, result)

	switch result.Operation {
	case domain.OperationDonate:
		s.notifyAsync(ctx, notify.EventDonationSettled, "Donation settled",
			fmt.Sprintf("%s donated %s (%s ETH)\ntx %s",
				result.Label, result.AmountFiat.String(), result.CryptoAmount.String(), result.TxHash))
	case domain.OperationWithdraw:
		s.notifyAsync(ctx, notify.EventWithdrawalSettled, "Withdrawal settled",
			fmt.Sprintf("%s withdrew the donation balance\ntx %s", result.Label, result.TxHash))
	}
	return result
}

// finish runs the bookkeeping shared by every settlement that reached the
// ledger. Failures here are logged and never change the outcome.
func (s *SettlementService) finish(ctx context.Context, result domain.SettlementResult, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordSettlement(string(result.Operation), string(result.Status), time.Since(start))
	}

	if result.Operation == domain.OperationDonate && s.records != nil {
		rec := domain.DonationRecord{
			ID:         result.ID,
			Label:      result.Label,
			AmountFiat: result.AmountFiat,
			AmountETH:  result.CryptoAmount,
			Rate:       result.Rate,
			TxHash:     result.TxHash,
			Status:     result.Status,
			Message:    result.Message,
			CreatedAt:  result.SettledAt,
		}
		if err := s.records.Record(ctx, rec); err != nil {
			s.logger.WarnContext(ctx, "record donation failed",
				slog.String("id", result.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if result.Operation != domain.OperationDonate {
		s.auditLog(ctx, string(result.Operation)+"_"+string(result.Status), map[string]any{
			"id":      result.ID,
			"tx_hash": result.TxHash,
			"address": result.Label,
			"message": result.Message,
		})
	}

	// Oracle events are published by ReportRefresh.
	switch result.Operation {
	case domain.OperationDonate:
		s.publish(ctx, domain.ChannelDonations, newSettlementEvent(result))
	case domain.OperationWithdraw:
		s.publish(ctx, domain.ChannelWithdrawals, newSettlementEvent(result))
	}
}

func (s *SettlementService) recordRefresh(result string) {
	if s.metrics != nil {
		s.metrics.RecordOracleRefresh(result)
	}
}

func (s *SettlementService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *SettlementService) notifyAsync(ctx context.Context, event, title, message string) {
	if s.notifier != nil {
		s.notifier.NotifyAsync(ctx, event, title, message)
	}
}
