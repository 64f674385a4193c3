package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/web3dona/internal/domain"
)

const receiptUploadTimeout = 30 * time.Second

// Event is the JSON document published on the signal bus and streamed to
// WebSocket clients.
type Event struct {
	Type       string                   `json:"type"`
	Settlement *domain.SettlementResult `json:"settlement,omitempty"`
	Rate       *RateEvent               `json:"rate,omitempty"`
}

// RateEvent describes one oracle publish.
type RateEvent struct {
	TxHash      string    `json:"tx_hash"`
	Rate        string    `json:"rate"`
	PublishedAt time.Time `json:"published_at"`
}

func newSettlementEvent(result domain.SettlementResult) Event {
	return Event{
		Type:       fmt.Sprintf("%s_%s", result.Operation, result.Status),
		Settlement: &result,
	}
}

func newRateEvent(update domain.RateUpdate) Event {
	return Event{
		Type: "rate_published",
		Rate: &RateEvent{
			TxHash:      update.TxHash,
			Rate:        update.Rate.String(),
			PublishedAt: update.PublishedAt,
		},
	}
}

func (s *SettlementService) publish(ctx context.Context, channel string, evt Event) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		s.logger.WarnContext(ctx, "marshal event failed", slog.String("error", err.Error()))
		return
	}
	if err := s.bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("channel", channel),
			slog.String("type", evt.Type),
			slog.String("error", err.Error()),
		)
	}
}

// ReceiptPath is the object key a settlement receipt is archived under.
func ReceiptPath(result domain.SettlementResult) string {
	return fmt.Sprintf("receipts/%s/%s.json", result.SettledAt.UTC().Format("2006/01/02"), result.TxHash)
}

// archiveReceipt uploads the result in the background so object storage
// latency never reaches the caller.
func (s *SettlementService) archiveReceipt(ctx context.Context, result domain.SettlementResult) {
	if s.archive == nil || result.TxHash == "" {
		return
	}
	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		s.logger.WarnContext(ctx, "marshal receipt failed", slog.String("error", err.Error()))
		return
	}

	path := ReceiptPath(result)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), receiptUploadTimeout)
		defer cancel()
		if err := s.archive.Put(uctx, path, bytes.NewReader(body), "application/json"); err != nil {
			s.logger.WarnContext(uctx, "archive receipt failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return
		}
		s.logger.DebugContext(uctx, "receipt archived", slog.String("path", path))
	}()
}
