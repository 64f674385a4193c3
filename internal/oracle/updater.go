package oracle

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/alanyoungcy/web3dona/internal/crypto"
	"github.com/alanyoungcy/web3dona/internal/domain"
)

// RefreshReporter is told about every refresh the updater attempts.
type RefreshReporter interface {
	ReportRefresh(ctx context.Context, update domain.RateUpdate, err error)
}

// Updater keeps the oracle fresh in the background using the operator's
// fallback key.
type Updater struct {
	gate      *Gate
	quotes    QuoteSource
	publisher RatePublisher
	keys      crypto.KeySource
	chainID   *big.Int
	reporter  RefreshReporter
	logger    *slog.Logger
}

// NewUpdater creates an Updater. reporter may be nil.
func NewUpdater(
	gate *Gate,
	quotes QuoteSource,
	publisher RatePublisher,
	keys crypto.KeySource,
	chainID *big.Int,
	reporter RefreshReporter,
	logger *slog.Logger,
) *Updater {
	return &Updater{
		gate:      gate,
		quotes:    quotes,
		publisher: publisher,
		keys:      keys,
		chainID:   chainID,
		reporter:  reporter,
		logger:    logger.With(slog.String("component", "oracle_updater")),
	}
}

// RunLoop checks the gate once immediately and then on every tick until ctx
// is cancelled. Failures are logged and the loop continues. Without a
// configured fallback key it returns at once.
func (u *Updater) RunLoop(ctx context.Context, interval time.Duration) error {
	if !u.keys.Configured() {
		u.logger.WarnContext(ctx, "no fallback key configured, background oracle updates disabled")
		return nil
	}
	if interval <= 0 {
		interval = u.gate.Interval()
	}

	u.logger.InfoContext(ctx, "oracle updater started", slog.Duration("interval", interval))
	u.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			u.logger.InfoContext(ctx, "oracle updater stopped")
			return nil
		case <-ticker.C:
			u.tick(ctx)
		}
	}
}

func (u *Updater) tick(ctx context.Context) {
	update, ok, err := u.RunOnce(ctx)
	switch {
	case err != nil:
		u.logger.WarnContext(ctx, "background oracle refresh failed", slog.String("error", err.Error()))
	case ok:
		u.logger.InfoContext(ctx, "background oracle refresh published",
			slog.String("tx_hash", update.TxHash),
			slog.String("rate", update.Rate.String()),
		)
	}
}

// RunOnce performs a single gated refresh with a freshly built signer.
func (u *Updater) RunOnce(ctx context.Context) (domain.RateUpdate, bool, error) {
	if !u.gate.ShouldRefresh(u.gate.now()) {
		return domain.RateUpdate{}, false, nil
	}

	secret, err := crypto.LoadKey(u.keys)
	if err != nil {
		return domain.RateUpdate{}, false, err
	}
	signer, err := crypto.NewEphemeralSigner(secret, u.chainID)
	if err != nil {
		return domain.RateUpdate{}, false, err
	}
	defer signer.Destroy()

	refresh := NewRefreshFunc(u.quotes, u.publisher, signer)
	if u.reporter != nil {
		publish := refresh
		refresh = func(ctx context.Context) (domain.RateUpdate, error) {
			update, err := publish(ctx)
			u.reporter.ReportRefresh(ctx, update, err)
			return update, err
		}
	}
	return u.gate.RefreshIfDue(ctx, refresh)
}
