package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// DonationRecord is the persisted view of one donation attempt. It never
// carries key material.
type DonationRecord struct {
	ID         string
	Label      string
	AmountFiat decimal.Decimal
	AmountETH  decimal.Decimal
	Rate       decimal.Decimal
	TxHash     string
	Status     SettlementStatus
	Message    string
	CreatedAt  time.Time
}

// DonationStore is the persistence collaborator for donation records.
type DonationStore interface {
	Record(ctx context.Context, rec DonationRecord) error
	List(ctx context.Context, opts ListOpts) ([]DonationRecord, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
