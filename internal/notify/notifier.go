// Package notify fans settlement events out to chat channels. Delivery is
// best effort: it runs off the request path and failures are only logged.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Settlement events an operator can subscribe to.
const (
	EventDonationSettled   = "donation_settled"
	EventWithdrawalSettled = "withdrawal_settled"
	EventRatePublished     = "rate_published"
	EventRateRefreshFailed = "rate_refresh_failed"
	EventSettlementFailed  = "settlement_failed"
)

const defaultSendTimeout = 10 * time.Second

// Sender is the interface that each notification channel must implement.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	// Name returns a short identifier for logs (e.g. "telegram").
	Name() string
}

// Notifier dispatches events to every Sender whose event filter allows them.
// An empty filter allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	timeout time.Duration
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// NewNotifier creates a Notifier for senders, forwarding only the listed
// events.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		timeout: defaultSendTimeout,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether the notifier has anywhere to send.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Allows reports whether event passes the configured filter.
func (n *Notifier) Allows(event string) bool {
	return len(n.events) == 0 || n.events[event]
}

// Notify delivers synchronously and returns the combined sender errors.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.Enabled() {
		return nil
	}
	if !n.Allows(event) {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyAsync delivers in the background on a context detached from ctx and
// bounded by the send timeout.
func (n *Notifier) NotifyAsync(ctx context.Context, event, title, message string) {
	if !n.Enabled() || !n.Allows(event) {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()
		if err := n.dispatch(sctx, title, message); err != nil {
			n.logger.WarnContext(sctx, "async notification failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Wait blocks until every pending NotifyAsync delivery has finished.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
