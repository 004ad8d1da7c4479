package cache

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"SeriesKeeper/internal/collector"
	"SeriesKeeper/internal/merge"
	"SeriesKeeper/internal/model"
	"SeriesKeeper/internal/recorder"
)

// Options tunes a Coordinator.
type Options struct {
	// FreshnessLagDays is how many days the provider trails today: a series
	// whose watermark is at least today-lag is served without a fetch.
	FreshnessLagDays int
	// FetchTimeout bounds each provider call; zero means no extra bound.
	FetchTimeout time.Duration
	Recorder     recorder.Recorder
	Now          func() time.Time
}

// Result is a served series plus how it was obtained.
type Result[P model.Point] struct {
	Series model.Series[P]
	Report model.RefreshReport
	// Warning is set when a fetch failed and the stale cached series was served.
	Warning error
}

// Coordinator owns the read-modify-write cycle of every key of one point
// type. At most one cycle per key is in flight; distinct keys never block
// each other.
type Coordinator[P model.Point] struct {
	schema model.Schema[P]
	source Source[P]
	store  Store[P]
	opts   Options

	mu    sync.Mutex
	locks map[model.Key]chan struct{}
}

// NewCoordinator creates a Coordinator for one schema, provider and store.
func NewCoordinator[P model.Point](schema model.Schema[P], source Source[P], store Store[P], opts Options) *Coordinator[P] {
	if opts.Recorder == nil {
		opts.Recorder = recorder.NewNoopRecorder()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator[P]{
		schema: schema,
		source: source,
		store:  store,
		opts:   opts,
		locks:  make(map[model.Key]chan struct{}),
	}
}

// GetSeries returns key's series, extending the persisted copy from the
// provider when it is not fresh.
//
// A provider failure with a cached series yields that series, a STALE report
// and a non-nil Result.Warning. With nothing cached the *FetchError is
// returned. Store failures are always returned as *StoreError.
func (c *Coordinator[P]) GetSeries(ctx context.Context, key model.Key) (Result[P], error) {
	unlock, err := c.lock(ctx, key)
	if err != nil {
		return Result[P]{}, err
	}
	defer unlock()

	res, err := c.refresh(ctx, key)
	res.Report.Kind = c.schema.Name
	res.Report.Key = key
	res.Report.At = c.opts.Now()
	if err != nil {
		res.Report.Outcome = model.OutcomeError
		res.Report.Err = err.Error()
	}
	if recErr := c.opts.Recorder.RecordRefresh(&res.Report); recErr != nil {
		log.Printf("[ERROR] record refresh %s %s: %v", c.schema.Name, key, recErr)
	}
	if err != nil {
		return Result[P]{Report: res.Report}, err
	}
	return res, nil
}

func (c *Coordinator[P]) refresh(ctx context.Context, key model.Key) (Result[P], error) {
	existing, found, err := c.store.Load(key)
	if err != nil {
		return Result[P]{}, &StoreError{Key: key, Op: "load", Err: err}
	}
	repaired := false
	if err := merge.Validate(existing); err != nil {
		// Written by an older version or edited by hand. The normalised copy is
		// never reported fresh; it goes through fetch, merge and save.
		log.Printf("[WARN] %s %s: stored series is malformed, repairing: %v", c.schema.Name, key, err)
		if existing, err = merge.Merge[P](nil, existing); err != nil {
			return Result[P]{}, &StoreError{Key: key, Op: "load", Err: err}
		}
		repaired = true
	}
	watermark, hasData := existing.Watermark()

	if hasData && !repaired && c.isFresh(watermark) {
		return Result[P]{
			Series: existing,
			Report: model.RefreshReport{Outcome: model.OutcomeFresh, Points: len(existing), Watermark: watermark},
		}, nil
	}

	outcome := model.OutcomeFetchedFull
	call := func(fctx context.Context) ([]P, error) { return c.source.FetchFullHistory(fctx, key) }
	if hasData {
		outcome = model.OutcomeFetchedDelta
		call = func(fctx context.Context) ([]P, error) { return c.source.FetchSince(fctx, key, watermark) }
	}
	fetched, fetchErr := c.fetch(ctx, key, call)
	if fetchErr != nil {
		if !hasData {
			return Result[P]{}, fetchErr
		}
		log.Printf("[WARN] %s %s: serving stale series (watermark %s): %v",
			c.schema.Name, key, watermark.Format(model.DayLayout), fetchErr)
		return Result[P]{
			Series: existing,
			Report: model.RefreshReport{
				Outcome:   model.OutcomeStale,
				Points:    len(existing),
				Watermark: watermark,
				Err:       fetchErr.Error(),
			},
			Warning: fetchErr,
		}, nil
	}

	merged, err := merge.Merge(existing, fetched)
	if err != nil {
		return Result[P]{}, fmt.Errorf("merge %s %s: %w", c.schema.Name, key, err)
	}
	newWatermark, ok := merged.Watermark()
	if !ok {
		// Only placeholder rows came back on a cold start.
		return Result[P]{}, &FetchError{Key: key, Provider: c.source.Name(), Err: collector.ErrNoData}
	}
	if hasData && newWatermark.Before(watermark) {
		return Result[P]{}, &merge.InvariantError{
			Index: len(merged) - 1, Prev: watermark, Next: newWatermark, Reason: "watermark regressed",
		}
	}

	if err := c.store.Save(key, merged); err != nil {
		return Result[P]{}, &StoreError{Key: key, Op: "save", Err: err}
	}
	if !found {
		log.Printf("[INFO] %s %s: cached %d points through %s",
			c.schema.Name, key, len(merged), newWatermark.Format(model.DayLayout))
	} else {
		log.Printf("[INFO] %s %s: extended %s -> %s (%d points)",
			c.schema.Name, key, watermark.Format(model.DayLayout), newWatermark.Format(model.DayLayout), len(merged))
	}
	return Result[P]{
		Series: merged,
		Report: model.RefreshReport{
			Outcome:   outcome,
			Points:    len(merged),
			Fetched:   len(fetched),
			Watermark: newWatermark,
		},
	}, nil
}

type fetchResult[P model.Point] struct {
	points []P
	err    error
}

// fetch runs call under the fetch timeout. A provider that ignores its
// context is abandoned once the deadline passes.
func (c *Coordinator[P]) fetch(ctx context.Context, key model.Key, call func(context.Context) ([]P, error)) ([]P, error) {
	var (
		fctx   context.Context
		cancel context.CancelFunc
	)
	if c.opts.FetchTimeout > 0 {
		fctx, cancel = context.WithTimeout(ctx, c.opts.FetchTimeout)
	} else {
		fctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan fetchResult[P], 1)
	go func() {
		points, err := call(fctx)
		done <- fetchResult[P]{points: points, err: err}
	}()

	var res fetchResult[P]
	select {
	case res = <-done:
	case <-fctx.Done():
		res.err = fctx.Err()
	}
	if res.err != nil {
		return nil, &FetchError{Key: key, Provider: c.source.Name(), Err: res.err}
	}
	return res.points, nil
}

// isFresh reports whether watermark already covers the newest day the
// provider can publish.
func (c *Coordinator[P]) isFresh(watermark time.Time) bool {
	target := model.DayOf(c.opts.Now()).AddDate(0, 0, -c.opts.FreshnessLagDays)
	return !watermark.Before(target)
}

// lock acquires key's slot, giving up if ctx is done first.
func (c *Coordinator[P]) lock(ctx context.Context, key model.Key) (func(), error) {
	c.mu.Lock()
	slot, ok := c.locks[key]
	if !ok {
		slot = make(chan struct{}, 1)
		c.locks[key] = slot
	}
	c.mu.Unlock()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
