package domain

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote is one observation of the fiat price of one unit of crypto.
type PriceQuote struct {
	Rate       decimal.Decimal
	ObservedAt time.Time
	Source     string
}

// DonationRequest is a single inbound donation. SigningSecret is the donor's
// hex-encoded private key; it only lives as long as the request.
type DonationRequest struct {
	RecipientLabel string
	AmountFiat     decimal.Decimal
	SigningSecret  string
}

// LogValue keeps the signing secret out of structured logs.
func (r DonationRequest) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("label", r.RecipientLabel),
		slog.String("amount_fiat", r.AmountFiat.String()),
		slog.Bool("has_secret", r.SigningSecret != ""),
	)
}

// WithdrawalRequest asks the donation contract to release its balance to the
// signer.
type WithdrawalRequest struct {
	SigningSecret string
}

// LogValue keeps the signing secret out of structured logs.
func (r WithdrawalRequest) LogValue() slog.Value {
	return slog.GroupValue(slog.Bool("has_secret", r.SigningSecret != ""))
}

// SettlementStatus is the terminal state of a settlement.
type SettlementStatus string

const (
	SettlementSuccess SettlementStatus = "success"
	SettlementError   SettlementStatus = "error"
)

// SettlementOperation names what a settlement did on-chain.
type SettlementOperation string

const (
	OperationDonate     SettlementOperation = "donate"
	OperationWithdraw   SettlementOperation = "withdraw"
	OperationUpdateRate SettlementOperation = "update_rate"
)

// SettlementResult is the orchestrator's terminal output. One is built per
// request and never mutated afterwards.
type SettlementResult struct {
	ID           string              `json:"id"`
	Operation    SettlementOperation `json:"operation"`
	Status       SettlementStatus    `json:"status"`
	TxHash       string              `json:"tx_hash,omitempty"`
	Label        string              `json:"label,omitempty"`
	AmountFiat   decimal.Decimal     `json:"amount_fiat"`
	CryptoAmount decimal.Decimal     `json:"crypto_amount"`
	Rate         decimal.Decimal     `json:"rate"`
	Message      string              `json:"message,omitempty"`
	SettledAt    time.Time           `json:"settled_at"`
}

// Succeeded reports whether the settlement reached Done.
func (r SettlementResult) Succeeded() bool {
	return r.Status == SettlementSuccess
}

// Receipt is the confirmed inclusion of a transaction.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
	Status      uint64
}

// RateUpdate is the outcome of one oracle publish.
type RateUpdate struct {
	TxHash      string
	Rate        decimal.Decimal
	PublishedAt time.Time
}
