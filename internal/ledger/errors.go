package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alanyoungcy/web3dona/internal/domain"
)

// classify maps a node error onto the settlement error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "insufficient funds"):
		return fmt.Errorf("ledger: %s: %w: %s", op, domain.ErrInsufficientFunds, msg)
	case strings.Contains(lower, "execution reverted"), strings.Contains(lower, "revert"):
		return fmt.Errorf("ledger: %s: %w: %s", op, domain.ErrTransactionRejected, msg)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("ledger: %s: %w: %v", op, domain.ErrLedgerUnreachable, err)
	default:
		return fmt.Errorf("ledger: %s: %w: %s", op, domain.ErrLedgerUnreachable, msg)
	}
}
