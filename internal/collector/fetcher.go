package collector

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"SeriesKeeper/internal/model"
)

var (
	// ErrNoData is returned when the provider answers with an empty data set.
	ErrNoData = errors.New("provider returned no data")
	// ErrProviderResponse wraps an error reported inside the provider payload.
	ErrProviderResponse = errors.New("provider error response")
)

// PriceFetcher retrieves daily price bars for a symbol quoted in a currency.
type PriceFetcher interface {
	// FetchFullHistory returns every bar the provider has, paging internally.
	FetchFullHistory(ctx context.Context, symbol, currency string) ([]model.PricePoint, error)
	// FetchSince returns bars from since (inclusive) through today, in one page.
	FetchSince(ctx context.Context, symbol, currency string, since time.Time) ([]model.PricePoint, error)
	Name() string
}

// MetricFetcher retrieves daily on-chain metrics for an asset.
type MetricFetcher interface {
	FetchFullHistory(ctx context.Context, symbol string) ([]model.MetricPoint, error)
	FetchSince(ctx context.Context, symbol string, since time.Time) ([]model.MetricPoint, error)
	Name() string
}

const defaultHTTPTimeout = 30 * time.Second

// newHTTPClient builds a client with optional proxy support.
func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   defaultHTTPTimeout,
		Transport: transport,
	}
}

// daysBetween counts whole UTC days from a to b.
func daysBetween(a, b time.Time) int {
	return int(model.DayNumber(b) - model.DayNumber(a))
}
