package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/web3dona/internal/domain"
)

// DonationStore implements domain.DonationStore.
type DonationStore struct {
	db DBTX
}

// NewDonationStore creates a DonationStore on db.
func NewDonationStore(db DBTX) *DonationStore {
	return &DonationStore{db: db}
}

// Record upserts one donation attempt by ID.
func (s *DonationStore) Record(ctx context.Context, rec domain.DonationRecord) error {
	const query = `
		INSERT INTO donations (id, label, amount_fiat, amount_eth, rate, tx_hash, status, message, created_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			tx_hash = EXCLUDED.tx_hash,
			status  = EXCLUDED.status,
			message = EXCLUDED.message`

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, query,
		rec.ID,
		rec.Label,
		rec.AmountFiat.String(),
		rec.AmountETH.String(),
		rec.Rate.String(),
		rec.TxHash,
		string(rec.Status),
		rec.Message,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record donation %s: %w", rec.ID, err)
	}
	return nil
}

// List returns donations newest first.
func (s *DonationStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.DonationRecord, error) {
	query := `SELECT id::text, label, amount_fiat::text, amount_eth::text, rate::text,
		tx_hash, status, message, created_at FROM donations WHERE 1=1`
	query, args := listQuery(query, opts)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list donations: %w", err)
	}
	defer rows.Close()

	var out []domain.DonationRecord
	for rows.Next() {
		var (
			rec                     domain.DonationRecord
			fiat, eth, rate, status string
		)
		if err := rows.Scan(&rec.ID, &rec.Label, &fiat, &eth, &rate,
			&rec.TxHash, &status, &rec.Message, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan donation: %w", err)
		}
		if rec.AmountFiat, err = decimal.NewFromString(fiat); err != nil {
			return nil, fmt.Errorf("postgres: donation %s amount_fiat: %w", rec.ID, err)
		}
		if rec.AmountETH, err = decimal.NewFromString(eth); err != nil {
			return nil, fmt.Errorf("postgres: donation %s amount_eth: %w", rec.ID, err)
		}
		if rec.Rate, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("postgres: donation %s rate: %w", rec.ID, err)
		}
		rec.Status = domain.SettlementStatus(status)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list donations rows: %w", err)
	}
	return out, nil
}

var _ domain.DonationStore = (*DonationStore)(nil)
