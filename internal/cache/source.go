package cache

import (
	"context"
	"time"

	"SeriesKeeper/internal/collector"
	"SeriesKeeper/internal/model"
)

// Source is the provider side of a coordinator, keyed by model.Key.
type Source[P model.Point] interface {
	FetchFullHistory(ctx context.Context, key model.Key) ([]P, error)
	FetchSince(ctx context.Context, key model.Key, since time.Time) ([]P, error)
	Name() string
}

// Store is the persistence side of a coordinator.
type Store[P model.Point] interface {
	Load(key model.Key) (model.Series[P], bool, error)
	Save(key model.Key, series model.Series[P]) error
}

type priceSource struct{ f collector.PriceFetcher }

// PriceSource adapts a PriceFetcher to Source.
func PriceSource(f collector.PriceFetcher) Source[model.PricePoint] { return priceSource{f} }

func (s priceSource) Name() string { return s.f.Name() }

func (s priceSource) FetchFullHistory(ctx context.Context, key model.Key) ([]model.PricePoint, error) {
	return s.f.FetchFullHistory(ctx, key.Symbol, key.Currency)
}

func (s priceSource) FetchSince(ctx context.Context, key model.Key, since time.Time) ([]model.PricePoint, error) {
	return s.f.FetchSince(ctx, key.Symbol, key.Currency, since)
}

type metricSource struct{ f collector.MetricFetcher }

// MetricSource adapts a MetricFetcher to Source.
func MetricSource(f collector.MetricFetcher) Source[model.MetricPoint] { return metricSource{f} }

func (s metricSource) Name() string { return s.f.Name() }

func (s metricSource) FetchFullHistory(ctx context.Context, key model.Key) ([]model.MetricPoint, error) {
	return s.f.FetchFullHistory(ctx, key.Symbol)
}

func (s metricSource) FetchSince(ctx context.Context, key model.Key, since time.Time) ([]model.MetricPoint, error) {
	return s.f.FetchSince(ctx, key.Symbol, since)
}
