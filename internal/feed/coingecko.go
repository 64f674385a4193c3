// Package feed fetches the fiat price of the settlement coin.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/web3dona/internal/domain"
)

const (
	// DefaultBaseURL is the public CoinGecko API root.
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
	// DefaultMaxQuoteAge rejects quotes CoinGecko has not updated recently.
	DefaultMaxQuoteAge = 15 * time.Minute

	apiKeyHeader = "x-cg-demo-api-key"
	sourceName   = "coingecko"
	maxBodyBytes = 1 << 20
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=feed_test -destination=mock_http_client_test.go -source=coingecko.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetchObserver is told the outcome of every fetch ("ok", "unavailable",
// "stale").
type FetchObserver interface {
	ObserveFeedFetch(result string)
}

// CoinGeckoClient reads simple/price quotes. It never retries.
type CoinGeckoClient struct {
	baseURL     string
	httpClient  HTTPClient
	header      http.Header
	coin        string
	fiat        string
	timeout     time.Duration
	maxQuoteAge time.Duration
	observer    FetchObserver
	now         func() time.Time
}

// CoinGeckoClientOption is a configuration option for the CoinGecko client.
type CoinGeckoClientOption func(*CoinGeckoClient)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) CoinGeckoClientOption {
	return func(c *CoinGeckoClient) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) CoinGeckoClientOption {
	return func(c *CoinGeckoClient) {
		c.httpClient = httpClient
	}
}

// WithAPIKey sends key as the demo API key header.
func WithAPIKey(key string) CoinGeckoClientOption {
	return func(c *CoinGeckoClient) {
		if key != "" {
			c.header.Set(apiKeyHeader, key)
		}
	}
}

// WithPair selects the coin id and fiat currency to quote.
func WithPair(coin, fiat string) CoinGeckoClientOption {
	return func(c *CoinGeckoClient) {
		c.coin = coin
		c.fiat = fiat
	}
}

// WithTimeout bounds a single fetch.
func WithTimeout(d time.Duration) CoinGeckoClientOption {
	return func(c *CoinGeckoClient) {
		c.timeout = d
	}
}

// WithMaxQuoteAge sets how old last_updated_at may be. Zero disables the
// check.
func WithMaxQuoteAge(d time.Duration) CoinGeckoClientOption {
	return func(c *CoinGeckoClient) {
		c.maxQuoteAge = d
	}
}

// WithObserver reports fetch outcomes to o.
func WithObserver(o FetchObserver) CoinGeckoClientOption {
	return func(c *CoinGeckoClient) {
		c.observer = o
	}
}

// WithClock overrides the clock used for the staleness check.
func WithClock(now func() time.Time) CoinGeckoClientOption {
	return func(c *CoinGeckoClient) {
		c.now = now
	}
}

// NewCoinGeckoClient creates a client quoting ethereum in idr by default.
func NewCoinGeckoClient(options ...CoinGeckoClientOption) *CoinGeckoClient {
	c := &CoinGeckoClient{
		baseURL:     DefaultBaseURL,
		httpClient:  http.DefaultClient,
		header:      http.Header{"Accept": []string{"application/json"}},
		coin:        "ethereum",
		fiat:        "idr",
		timeout:     10 * time.Second,
		maxQuoteAge: DefaultMaxQuoteAge,
		now:         time.Now,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// FetchQuote returns the current price of one coin in the configured fiat.
func (c *CoinGeckoClient) FetchQuote(ctx context.Context) (domain.PriceQuote, error) {
	quote, err := c.fetch(ctx)
	c.observe(err)
	return quote, err
}

func (c *CoinGeckoClient) fetch(ctx context.Context) (domain.PriceQuote, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	query := url.Values{}
	query.Set("ids", c.coin)
	query.Set("vs_currencies", c.fiat)
	query.Set("include_last_updated_at", "true")

	endpoint := fmt.Sprintf("%s/simple/price?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("feed: creating request: %w: %v", domain.ErrFeedUnavailable, err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("feed: performing request: %w: %v", domain.ErrFeedUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxBodyBytes))
		return domain.PriceQuote{}, fmt.Errorf("feed: %w: unexpected status code %d", domain.ErrFeedUnavailable, res.StatusCode)
	}

	var body map[string]map[string]json.Number
	if err := json.NewDecoder(io.LimitReader(res.Body, maxBodyBytes)).Decode(&body); err != nil {
		return domain.PriceQuote{}, fmt.Errorf("feed: decoding response: %w: %v", domain.ErrFeedUnavailable, err)
	}

	prices, ok := body[c.coin]
	if !ok {
		return domain.PriceQuote{}, fmt.Errorf("feed: %w: no quote for %q", domain.ErrFeedUnavailable, c.coin)
	}
	raw, ok := prices[c.fiat]
	if !ok {
		return domain.PriceQuote{}, fmt.Errorf("feed: %w: no %s price for %q", domain.ErrFeedUnavailable, c.fiat, c.coin)
	}
	rate, err := decimal.NewFromString(raw.String())
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("feed: %w: price %q: %v", domain.ErrFeedUnavailable, raw, err)
	}
	if rate.Sign() <= 0 {
		return domain.PriceQuote{}, fmt.Errorf("feed: %w: non-positive price %s", domain.ErrFeedUnavailable, rate)
	}

	now := c.now()
	observedAt := now
	if ts, ok := prices["last_updated_at"]; ok {
		sec, err := strconv.ParseInt(ts.String(), 10, 64)
		if err != nil {
			return domain.PriceQuote{}, fmt.Errorf("feed: %w: last_updated_at %q", domain.ErrFeedUnavailable, ts)
		}
		observedAt = time.Unix(sec, 0).UTC()
	}
	if c.maxQuoteAge > 0 && now.Sub(observedAt) > c.maxQuoteAge {
		return domain.PriceQuote{}, fmt.Errorf("feed: %w: last updated %s ago", domain.ErrFeedStale, now.Sub(observedAt).Truncate(time.Second))
	}

	return domain.PriceQuote{Rate: rate, ObservedAt: observedAt, Source: sourceName}, nil
}

func (c *CoinGeckoClient) observe(err error) {
	if c.observer == nil {
		return
	}
	switch {
	case err == nil:
		c.observer.ObserveFeedFetch("ok")
	case errors.Is(err, domain.ErrFeedStale):
		c.observer.ObserveFeedFetch("stale")
	default:
		c.observer.ObserveFeedFetch("unavailable")
	}
}
