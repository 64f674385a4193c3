package domain

import (
	"errors"
	"fmt"
)

// Settlement error taxonomy. Every error surfaced by the settlement core wraps
// exactly one of these so the HTTP boundary can classify it with errors.Is.
var (
	ErrValidation          = errors.New("validation failed")
	ErrFeedUnavailable     = errors.New("price feed unavailable")
	ErrFeedStale           = errors.New("price feed quote is stale")
	ErrLedgerUnreachable   = errors.New("ledger unreachable")
	ErrTransactionRejected = errors.New("transaction rejected")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	ErrConversion          = errors.New("conversion failed")
	ErrInvalidRate         = fmt.Errorf("%w: invalid rate", ErrConversion)
	ErrAmountTooSmall      = fmt.Errorf("%w: amount too small", ErrConversion)
	ErrInternal            = errors.New("internal error")
)

var kinds = []error{
	ErrValidation,
	ErrFeedUnavailable,
	ErrFeedStale,
	ErrLedgerUnreachable,
	ErrTransactionRejected,
	ErrInsufficientFunds,
	ErrConfirmationTimeout,
	ErrInvalidRate,
	ErrAmountTooSmall,
	ErrConversion,
}

// Kind returns the most specific taxonomy sentinel err wraps, or ErrInternal
// when it wraps none.
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}

// ErrLockHeld is returned by a LockManager when another holder owns the key.
var ErrLockHeld = errors.New("lock already held")

// ValidationError carries the client-facing message for rejected input. It
// matches ErrValidation under errors.Is.
type ValidationError struct {
	Msg string
}

// NewValidationError returns a *ValidationError with the given message.
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Msg: msg}
}

func (e *ValidationError) Error() string { return e.Msg }

// Is reports ErrValidation as the sentinel for every ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// TxError attaches the hash of a broadcast transaction to the failure that
// followed it. For ErrConfirmationTimeout the outcome is unknown: the
// transaction may still be included later, so callers must poll TxHash before
// resubmitting.
type TxError struct {
	TxHash string
	Err    error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("%v (tx %s)", e.Err, e.TxHash)
}

func (e *TxError) Unwrap() error { return e.Err }

// TxHashOf returns the transaction hash carried by err, if any.
func TxHashOf(err error) string {
	var txErr *TxError
	if errors.As(err, &txErr) {
		return txErr.TxHash
	}
	return ""
}
