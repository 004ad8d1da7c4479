package collector

import (
	"context"
	"sync"
	"time"

	"SeriesKeeper/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// It serves both price and metric requests for the point type P.
type MockFetcher[P model.Point] struct {
	mu sync.Mutex

	Full  []P
	Delta []P
	Err   error
	// Delay blocks each call until it elapses or ctx is done.
	Delay time.Duration

	FullCalls  int
	SinceCalls int
	LastSince  time.Time
}

func (m *MockFetcher[P]) Name() string { return "mock" }

// Calls returns the total number of provider calls served.
func (m *MockFetcher[P]) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.FullCalls + m.SinceCalls
}

// Set swaps the canned responses between calls.
func (m *MockFetcher[P]) Set(full, delta []P, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Full, m.Delta, m.Err = full, delta, err
}

func (m *MockFetcher[P]) full(ctx context.Context) ([]P, error) {
	m.mu.Lock()
	m.FullCalls++
	out, err := clonePoints(m.Full), m.Err
	m.mu.Unlock()
	return out, m.wait(ctx, err)
}

func (m *MockFetcher[P]) since(ctx context.Context, since time.Time) ([]P, error) {
	m.mu.Lock()
	m.SinceCalls++
	m.LastSince = since
	out, err := clonePoints(m.Delta), m.Err
	m.mu.Unlock()
	return out, m.wait(ctx, err)
}

func (m *MockFetcher[P]) wait(ctx context.Context, err error) error {
	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	return err
}

func clonePoints[P model.Point](in []P) []P {
	if in == nil {
		return nil
	}
	out := make([]P, len(in))
	copy(out, in)
	return out
}

// MockPriceFetcher adapts MockFetcher to PriceFetcher.
type MockPriceFetcher struct {
	MockFetcher[model.PricePoint]
}

func (m *MockPriceFetcher) FetchFullHistory(ctx context.Context, _, _ string) ([]model.PricePoint, error) {
	bars, err := m.full(ctx)
	if err != nil {
		return nil, err
	}
	return bars, nil
}

func (m *MockPriceFetcher) FetchSince(ctx context.Context, _, _ string, since time.Time) ([]model.PricePoint, error) {
	bars, err := m.since(ctx, since)
	if err != nil {
		return nil, err
	}
	return bars, nil
}

// MockMetricFetcher adapts MockFetcher to MetricFetcher.
type MockMetricFetcher struct {
	MockFetcher[model.MetricPoint]
}

func (m *MockMetricFetcher) FetchFullHistory(ctx context.Context, _ string) ([]model.MetricPoint, error) {
	points, err := m.full(ctx)
	if err != nil {
		return nil, err
	}
	return points, nil
}

func (m *MockMetricFetcher) FetchSince(ctx context.Context, _ string, since time.Time) ([]model.MetricPoint, error) {
	points, err := m.since(ctx, since)
	if err != nil {
		return nil, err
	}
	return points, nil
}

// GenerateMockBars builds count consecutive daily bars ending at end.
func GenerateMockBars(basePrice float64, count int, end time.Time) []model.PricePoint {
	end = model.DayOf(end)
	bars := make([]model.PricePoint, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.PricePoint{
			Date:   end.AddDate(0, 0, -(count - 1 - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
