package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_FileStem(t *testing.T) {
	tests := []struct {
		key  Key
		stem string
		str  string
	}{
		{PriceKey("btc", "usd"), "BTC_USD_data", "BTC/USD"},
		{PriceKey("ETH", "EUR"), "ETH_EUR_data", "ETH/EUR"},
		{MetricKey("BTC"), "btc_metrics_data", "btc"},
		{Key{Symbol: "../x", Currency: "USD"}, "---x_USD_data-49f83f36", "../x/USD"},
		{PriceKey("a.b", "usd"), "A-B_USD_data-11a6a53c", "A.B/USD"},
		{PriceKey("A-B", "USD"), "A-B_USD_data", "A-B/USD"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.stem, tt.key.FileStem())
		assert.Equal(t, tt.str, tt.key.String())
	}
}

func TestKey_FileStemDistinguishesReplacedCharacters(t *testing.T) {
	keys := []Key{
		PriceKey("A.B", "USD"), PriceKey("A-B", "USD"), PriceKey("A_B", "USD"), PriceKey("A/B", "USD"),
		PriceKey("A", "B.USD"), PriceKey("A", "B-USD"), MetricKey("a.b"), MetricKey("a-b"),
	}
	seen := map[string]Key{}
	for _, k := range keys {
		stem := k.FileStem()
		prev, dup := seen[stem]
		require.False(t, dup, "%s and %s share %s", prev, k, stem)
		seen[stem] = k
	}
}

func TestDayOf_StripsTimeAndZone(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	// 2024-01-02 03:00 at UTC+8 is still 2024-01-01 in UTC.
	in := time.Date(2024, 1, 2, 3, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), DayOf(in))
}

func TestDayNumber_RoundTrip(t *testing.T) {
	d := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	n := DayNumber(d)
	assert.Equal(t, int64(19844), n)
	assert.Equal(t, d, FromDayNumber(n))
	assert.Equal(t, n, DayNumber(d.Add(23*time.Hour)))
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2010-01-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDay("01/01/2010")
	assert.Error(t, err)
}

func TestSeries_Watermark(t *testing.T) {
	var empty Series[PricePoint]
	_, ok := empty.Watermark()
	assert.False(t, ok)

	s := Series[PricePoint]{
		{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Close: 1},
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Close: 2},
	}
	wm, ok := s.Watermark()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), wm)

	c := s.Clone()
	c[0].Close = 99
	assert.Equal(t, 1.0, s[0].Close)
}

func TestIsPlaceholder(t *testing.T) {
	day := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	assert.True(t, IsPlaceholder(PricePoint{Date: day}))
	assert.False(t, IsPlaceholder(PricePoint{Date: day, Volume: 1}))
	assert.True(t, IsPlaceholder(MetricPoint{Date: day}))
	assert.False(t, IsPlaceholder(MetricPoint{Date: day, MeanDifficulty: 0.5}))
}

func TestSchemas_BuildMatchesValues(t *testing.T) {
	day := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	p := PricePoint{Date: day, Open: 1, High: 2, Low: 3, Close: 4, Volume: 5}
	assert.Equal(t, p, PriceSchema.Build(day, p.Values()))
	assert.Len(t, PriceSchema.Columns, len(p.Values()))

	m := MetricPoint{Date: day, CirculatingSupply: 1, Issuance: 2, MarketCapUSD: 3, PriceUSD: 4, MeanDifficulty: 5}
	assert.Equal(t, m, MetricSchema.Build(day, m.Values()))
	assert.Len(t, MetricSchema.Columns, len(m.Values()))
}
