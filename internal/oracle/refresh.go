package oracle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/alanyoungcy/web3dona/internal/convert"
	"github.com/alanyoungcy/web3dona/internal/domain"
	"github.com/alanyoungcy/web3dona/internal/ledger"
)

//go:generate mockgen -destination=mock_deps_test.go -package=oracle . QuoteSource,RatePublisher

// QuoteSource supplies the current fiat price of one unit of crypto.
type QuoteSource interface {
	FetchQuote(ctx context.Context) (domain.PriceQuote, error)
}

// RatePublisher writes an integer rate to the oracle contract.
type RatePublisher interface {
	PublishRate(ctx context.Context, signer ledger.Signer, rate *big.Int) (domain.Receipt, error)
}

// NewRefreshFunc returns a RefreshFunc that fetches a quote, truncates it to
// the on-chain representation and publishes it with signer.
func NewRefreshFunc(quotes QuoteSource, publisher RatePublisher, signer ledger.Signer) RefreshFunc {
	return func(ctx context.Context) (domain.RateUpdate, error) {
		quote, err := quotes.FetchQuote(ctx)
		if err != nil {
			return domain.RateUpdate{}, fmt.Errorf("oracle: fetch quote: %w", err)
		}
		onChain, err := convert.RateToChain(quote.Rate)
		if err != nil {
			return domain.RateUpdate{}, fmt.Errorf("oracle: %w", err)
		}
		receipt, err := publisher.PublishRate(ctx, signer, onChain)
		if err != nil {
			return domain.RateUpdate{}, fmt.Errorf("oracle: publish rate: %w", err)
		}
		return domain.RateUpdate{
			TxHash:      receipt.TxHash,
			Rate:        convert.RateFromChain(onChain),
			PublishedAt: time.Now().UTC(),
		}, nil
	}
}
