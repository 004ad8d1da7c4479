package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SeriesKeeper/internal/model"
)

func TestSQLiteRecorder_LastRefreshesPerSeries(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "audit", "refresh.db"))
	require.NoError(t, err)
	defer r.Close()

	wm := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	reports := []model.RefreshReport{
		{Kind: "price", Key: model.PriceKey("BTC", "USD"), Outcome: model.OutcomeFetchedFull, Points: 10, Fetched: 12, Watermark: wm.AddDate(0, 0, -1)},
		{Kind: "metrics", Key: model.MetricKey("btc"), Outcome: model.OutcomeError, Err: "boom"},
		{Kind: "price", Key: model.PriceKey("BTC", "USD"), Outcome: model.OutcomeStale, Points: 10, Watermark: wm, Err: "timeout"},
	}
	for i := range reports {
		require.NoError(t, r.RecordRefresh(&reports[i]))
	}

	last, err := r.LastRefreshes()
	require.NoError(t, err)
	require.Len(t, last, 2)

	assert.Equal(t, "metrics", last[0].Kind)
	assert.Equal(t, model.OutcomeError, last[0].Outcome)
	assert.True(t, last[0].Watermark.IsZero())
	assert.Equal(t, "boom", last[0].Err)

	assert.Equal(t, "price", last[1].Kind)
	assert.Equal(t, model.PriceKey("BTC", "USD"), last[1].Key)
	assert.Equal(t, model.OutcomeStale, last[1].Outcome)
	assert.Equal(t, wm, last[1].Watermark)
	assert.Equal(t, 10, last[1].Points)
	assert.Equal(t, "timeout", last[1].Err)
	assert.False(t, last[1].At.IsZero())
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.RecordRefresh(&model.RefreshReport{}))
	last, err := r.LastRefreshes()
	assert.NoError(t, err)
	assert.Empty(t, last)
	assert.NoError(t, r.Close())
}
