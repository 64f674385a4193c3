// Package convert holds the fiat to crypto arithmetic used by settlements.
// Amounts on the ledger are integers in the chain's smallest unit (wei), so
// every conversion lands on an exact integer and rounds toward zero.
package convert

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/web3dona/internal/domain"
)

// WeiDecimals is the fixed fractional precision of the native unit.
const WeiDecimals = 18

// ToCrypto converts amountFiat into wei at rate (fiat per one whole coin).
// The result is truncated at the 18th fractional digit so the transferred
// value never exceeds what amountFiat buys.
func ToCrypto(amountFiat, rate decimal.Decimal) (*big.Int, error) {
	if rate.Sign() <= 0 {
		return nil, fmt.Errorf("convert: rate %s: %w", rate.String(), domain.ErrInvalidRate)
	}
	if amountFiat.Sign() <= 0 {
		return nil, fmt.Errorf("convert: amount %s: %w", amountFiat.String(), domain.ErrAmountTooSmall)
	}

	q, _ := amountFiat.Shift(WeiDecimals).QuoRem(rate, 0)
	wei := q.BigInt()
	if wei.Sign() == 0 {
		return nil, fmt.Errorf("convert: %s at rate %s is below 1 wei: %w",
			amountFiat.String(), rate.String(), domain.ErrAmountTooSmall)
	}
	return wei, nil
}

// FromWei renders a wei amount as whole coins.
func FromWei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -WeiDecimals)
}

// RateToChain truncates a quoted rate to the integer the oracle contract
// stores.
func RateToChain(rate decimal.Decimal) (*big.Int, error) {
	whole := rate.Truncate(0)
	if whole.Sign() <= 0 {
		return nil, fmt.Errorf("convert: rate %s: %w", rate.String(), domain.ErrInvalidRate)
	}
	return whole.BigInt(), nil
}

// RateFromChain lifts the oracle's integer rate into a decimal.
func RateFromChain(rate *big.Int) decimal.Decimal {
	if rate == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(rate, 0)
}
