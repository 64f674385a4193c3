package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/web3dona/internal/domain"
	"github.com/alanyoungcy/web3dona/internal/service"
)

//go:generate mockgen -destination=mock_settlement_test.go -package=handler . SettlementService

// SettlementService defines the methods that the settlement handler requires
// from the service layer.
type SettlementService interface {
	Donate(ctx context.Context, req domain.DonationRequest) (domain.SettlementResult, error)
	Withdraw(ctx context.Context, req domain.WithdrawalRequest) (domain.SettlementResult, error)
	UpdateRate(ctx context.Context, secret string) (domain.SettlementResult, error)
	WalletInfo(ctx context.Context, secret string) (service.WalletInfo, error)
	RateStatus(ctx context.Context) (service.RateStatus, error)
	ListDonations(ctx context.Context, opts domain.ListOpts) ([]domain.DonationRecord, error)
}

// SettlementHandler serves the donation, withdrawal and oracle endpoints.
type SettlementHandler struct {
	svc    SettlementService
	logger *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler.
func NewSettlementHandler(svc SettlementService, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{
		svc:    svc,
		logger: logger.With(slog.String("handler", "settlement")),
	}
}

type donateRequest struct {
	Name       string     `json:"name"`
	AmountIDR  fiatAmount `json:"amount_idr"`
	PrivateKey string     `json:"private_key"`
}

type keyRequest struct {
	PrivateKey string `json:"private_key"`
}

// ethAmount is a JSON number carrying the exact decimal text.
type donateResponse struct {
	Status    string      `json:"status"`
	TxHash    string      `json:"txHash"`
	EthAmount json.Number `json:"ethAmount"`
	Name      string      `json:"name"`
}

type updateRateResponse struct {
	Status   string      `json:"status"`
	TxHash   string      `json:"txHash"`
	EthPrice json.Number `json:"ethPrice"`
}

type txResponse struct {
	Status string `json:"status"`
	TxHash string `json:"txHash"`
}

type walletResponse struct {
	Status  string `json:"status"`
	Address string `json:"address"`
	Balance string `json:"balance"`
}

type rateResponse struct {
	Status        string     `json:"status"`
	Rate          string     `json:"rate"`
	LastRefreshAt *time.Time `json:"lastRefreshAt"`
	Stale         bool       `json:"stale"`
}

type donationView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AmountIDR string    `json:"amountIdr"`
	EthAmount string    `json:"ethAmount"`
	Rate      string    `json:"rate"`
	TxHash    string    `json:"txHash,omitempty"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type listDonationsResponse struct {
	Status    string         `json:"status"`
	Donations []donationView `json:"donations"`
}

// Donate converts a fiat amount and sends it to the donation contract.
// POST /donate
func (h *SettlementHandler) Donate(w http.ResponseWriter, r *http.Request) {
	var req donateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.Donate(r.Context(), domain.DonationRequest{
		RecipientLabel: req.Name,
		AmountFiat:     req.AmountIDR.Decimal,
		SigningSecret:  req.PrivateKey,
	})
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, donateResponse{
		Status:    statusSuccess,
		TxHash:    result.TxHash,
		EthAmount: json.Number(result.CryptoAmount.String()),
		Name:      result.Label,
	})
}

// UpdateRate publishes a fresh feed quote to the oracle contract.
// POST /update-rate
func (h *SettlementHandler) UpdateRate(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.UpdateRate(r.Context(), req.PrivateKey)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, updateRateResponse{
		Status:   statusSuccess,
		TxHash:   result.TxHash,
		EthPrice: json.Number(result.Rate.String()),
	})
}

// Withdraw releases the donation contract balance to the signer.
// POST /withdraw
func (h *SettlementHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.Withdraw(r.Context(), domain.WithdrawalRequest{SigningSecret: req.PrivateKey})
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, txResponse{Status: statusSuccess, TxHash: result.TxHash})
}

// Wallet reports the address and balance behind a private key.
// POST /wallet
func (h *SettlementHandler) Wallet(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	info, err := h.svc.WalletInfo(r.Context(), req.PrivateKey)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, walletResponse{
		Status:  statusSuccess,
		Address: info.Address,
		Balance: info.Balance.String(),
	})
}

// Rate returns the on-chain rate and its freshness.
// GET /rate
func (h *SettlementHandler) Rate(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.RateStatus(r.Context())
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}

	resp := rateResponse{Status: statusSuccess, Rate: st.Rate.String(), Stale: st.Stale}
	if !st.LastRefreshAt.IsZero() {
		last := st.LastRefreshAt.UTC()
		resp.LastRefreshAt = &last
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListDonations returns recorded donations, newest first.
// GET /donations?limit=50&offset=0
func (h *SettlementHandler) ListDonations(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.ListDonations(r.Context(), parseListOpts(r))
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}

	views := make([]donationView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, donationView{
			ID:        rec.ID,
			Name:      rec.Label,
			AmountIDR: rec.AmountFiat.String(),
			EthAmount: rec.AmountETH.String(),
			Rate:      rec.Rate.String(),
			TxHash:    rec.TxHash,
			Status:    string(rec.Status),
			Message:   rec.Message,
			CreatedAt: rec.CreatedAt.UTC(),
		})
	}
	writeJSON(w, http.StatusOK, listDonationsResponse{Status: statusSuccess, Donations: views})
}
