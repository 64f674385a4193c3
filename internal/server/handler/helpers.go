package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/web3dona/internal/domain"
	"github.com/alanyoungcy/web3dona/internal/service"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	// maxBodyBytes caps every JSON request body.
	maxBodyBytes = 64 << 10

	msgInvalidBody = "invalid request body"
)

// errorResponse is the envelope for every failed request.
type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	TxHash  string `json:"txHash,omitempty"`
}

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"status":"error","message":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError sends the error envelope with msg.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Status: statusError, Message: msg})
}

// writeFailure maps err onto an HTTP status. Validation problems are the
// caller's fault and carry their bare message; anything that reached the
// ledger also carries the transaction hash when one exists.
func writeFailure(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Msg)
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrRecordsDisabled):
		writeError(w, http.StatusServiceUnavailable, "donation records are not enabled")
	default:
		logger.ErrorContext(r.Context(), "handler: request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Status:  statusError,
			Message: err.Error(),
			TxHash:  domain.TxHashOf(err),
		})
	}
}

// decodeJSON reads a capped JSON body into dst. It writes the 400 response
// itself and reports false when the body is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	err := dec.Decode(dst)
	if errors.Is(err, io.EOF) {
		// An empty body decodes as {} so field validation reports what is missing.
		return true
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return false
	}
	// Trailing garbage after the object is rejected too.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return false
	}
	return true
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}
