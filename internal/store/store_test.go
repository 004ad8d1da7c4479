package store

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"SeriesKeeper/internal/merge"
	"SeriesKeeper/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFileStore_LoadMissingIsNotAnError(t *testing.T) {
	s := NewFileStore(t.TempDir(), model.PriceSchema)
	series, found, err := s.Load(model.PriceKey("BTC", "USD"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, series)
}

func TestFileStore_SaveLoadPreservesPrecision(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, model.PriceSchema)
	key := model.PriceKey("btc", "usd")
	series := model.Series[model.PricePoint]{
		{Date: day(2010, 7, 17), Open: 0.04951, High: 0.04951, Low: 0.04951, Close: 0.04951, Volume: 20},
		{Date: day(2024, 1, 2), Open: math.Pi, High: math.MaxFloat64, Low: math.SmallestNonzeroFloat64, Close: 45000.123456789, Volume: 1e-9},
	}

	require.NoError(t, s.Save(key, series))
	assert.FileExists(t, filepath.Join(dir, "BTC_USD_data.mpk"))

	got, found, err := s.Load(key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, series, got)
}

func TestFileStore_SaveReplacesAndLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, model.MetricSchema)
	key := model.MetricKey("btc")

	first := model.Series[model.MetricPoint]{{Date: day(2024, 1, 1), PriceUSD: 1}}
	second := model.Series[model.MetricPoint]{
		{Date: day(2024, 1, 1), PriceUSD: 1},
		{Date: day(2024, 1, 2), PriceUSD: 2, MeanDifficulty: 7e13},
	}
	require.NoError(t, s.Save(key, first))
	require.NoError(t, s.Save(key, second))

	got, found, err := s.Load(key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, second, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "btc_metrics_data.mpk", entries[0].Name())
}

func TestFileStore_SaveCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s := NewFileStore(dir, model.PriceSchema)
	require.NoError(t, s.Save(model.PriceKey("ETH", "USD"), nil))

	got, found, err := s.Load(model.PriceKey("ETH", "USD"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, got)
}

func TestFileStore_FailedSaveKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, model.PriceSchema)
	key := model.PriceKey("BTC", "USD")
	prev := model.Series[model.PricePoint]{{Date: day(2024, 1, 1), Close: 100}}
	require.NoError(t, s.Save(key, prev))

	// The existing data file sits in the directory path, so the write cannot start.
	broken := NewFileStore(filepath.Join(dir, "BTC_USD_data.mpk", "sub"), model.PriceSchema)
	assert.Error(t, broken.Save(key, model.Series[model.PricePoint]{{Date: day(2024, 1, 2), Close: 1}}))

	got, found, err := s.Load(key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, prev, got)
}

func TestFileStore_LoadRejectsForeignSchema(t *testing.T) {
	dir := t.TempDir()
	key := model.PriceKey("BTC", "USD")
	prices := NewFileStore(dir, model.PriceSchema)
	require.NoError(t, prices.Save(key, model.Series[model.PricePoint]{{Date: day(2024, 1, 1), Close: 1}}))

	metrics := NewFileStore(dir, model.MetricSchema)
	_, _, err := metrics.Load(key)
	assert.Error(t, err)
}

func TestFileStore_LookalikeKeysUseSeparateFiles(t *testing.T) {
	s := NewFileStore(t.TempDir(), model.PriceSchema)
	dotted, dashed := model.PriceKey("A.B", "USD"), model.PriceKey("A-B", "USD")
	require.NotEqual(t, s.Path(dotted), s.Path(dashed))

	require.NoError(t, s.Save(dotted, model.Series[model.PricePoint]{{Date: day(2024, 1, 1), Close: 111}}))
	_, found, err := s.Load(dashed)
	require.NoError(t, err)
	assert.False(t, found)

	got, found, err := s.Load(dotted)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 111.0, got[0].Close)
}

func TestFileStore_LoadRejectsFileOfAnotherKey(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, model.PriceSchema)
	btc, eth := model.PriceKey("BTC", "USD"), model.PriceKey("ETH", "USD")
	require.NoError(t, s.Save(btc, model.Series[model.PricePoint]{{Date: day(2024, 1, 1), Close: 111}}))
	require.NoError(t, os.Rename(s.Path(btc), s.Path(eth)))

	_, _, err := s.Load(eth)
	assert.ErrorContains(t, err, `"BTC/USD"`)
}

func TestFileStore_SaveRefusesMalformedSeries(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, model.PriceSchema)
	key := model.PriceKey("BTC", "USD")

	tests := []struct {
		name   string
		series model.Series[model.PricePoint]
	}{
		{"unordered with duplicate", model.Series[model.PricePoint]{
			{Date: day(2024, 1, 3), Close: 3}, {Date: day(2024, 1, 1), Close: 1}, {Date: day(2024, 1, 3), Close: 4},
		}},
		{"placeholder row", model.Series[model.PricePoint]{{Date: day(2024, 1, 1), Close: 1}, {Date: day(2024, 1, 2)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ie *merge.InvariantError
			assert.ErrorAs(t, s.Save(key, tt.series), &ie)
			_, found, err := s.Load(key)
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStore_LoadRejectsRaggedColumns(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, model.PriceSchema)
	key := model.PriceKey("BTC", "USD")

	data, err := msgpack.Marshal(&table{
		Kind:    "price",
		Key:     "BTC/USD",
		Columns: []string{"Date", "Open", "High", "Low", "Close", "Volume"},
		Date:    []int64{19723, 19724},
		Values:  [][]float64{{1, 2}, {1, 2}, {1, 2}, {1}, {1, 2}},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(key), data, 0o644))

	_, _, err = s.Load(key)
	assert.ErrorContains(t, err, "Close")
}

func TestFileStore_LoadRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, model.PriceSchema)
	key := model.PriceKey("BTC", "USD")
	require.NoError(t, os.WriteFile(s.Path(key), []byte("not msgpack at all"), 0o644))

	_, found, err := s.Load(key)
	assert.Error(t, err)
	assert.False(t, found)
}
