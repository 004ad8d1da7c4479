package cache

import (
	"context"
	"log"

	"SeriesKeeper/internal/model"
)

// Service is the consumer-facing entry point: one coordinator per series type.
type Service struct {
	Prices  *Coordinator[model.PricePoint]
	Metrics *Coordinator[model.MetricPoint]
}

// NewService bundles the price and metric coordinators.
func NewService(prices *Coordinator[model.PricePoint], metrics *Coordinator[model.MetricPoint]) *Service {
	return &Service{Prices: prices, Metrics: metrics}
}

// PriceSeries returns the daily price series of symbol quoted in currency.
// A stale series is returned without error; the warning is only logged.
func (s *Service) PriceSeries(ctx context.Context, symbol, currency string) (model.Series[model.PricePoint], error) {
	res, err := s.Prices.GetSeries(ctx, model.PriceKey(symbol, currency))
	if err != nil {
		return nil, err
	}
	logWarning(res.Report, res.Warning)
	return res.Series, nil
}

// MetricSeries returns the daily on-chain metric series of symbol.
func (s *Service) MetricSeries(ctx context.Context, symbol string) (model.Series[model.MetricPoint], error) {
	res, err := s.Metrics.GetSeries(ctx, model.MetricKey(symbol))
	if err != nil {
		return nil, err
	}
	logWarning(res.Report, res.Warning)
	return res.Series, nil
}

func logWarning(rep model.RefreshReport, warning error) {
	if warning == nil {
		return
	}
	log.Printf("[WARN] %s %s served stale through %s: %v",
		rep.Kind, rep.Key, rep.Watermark.Format(model.DayLayout), warning)
}
