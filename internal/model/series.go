package model

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

// DayLayout is the canonical text form of a calendar day.
const DayLayout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// Point is a single dated observation of a series.
type Point interface {
	Day() time.Time
	// Values returns the monitored numeric fields in schema column order.
	Values() []float64
}

// Schema describes how a point type maps to named float columns.
type Schema[P Point] struct {
	Name    string
	Columns []string
	Build   func(day time.Time, values []float64) P
}

// Series is an ordered sequence of points with strictly increasing, unique days.
type Series[P Point] []P

// Watermark returns the last day present in the series.
func (s Series[P]) Watermark() (time.Time, bool) {
	if len(s) == 0 {
		return time.Time{}, false
	}
	return DayOf(s[len(s)-1].Day()), true
}

// Clone returns a copy that shares no backing array with s.
func (s Series[P]) Clone() Series[P] {
	if s == nil {
		return nil
	}
	out := make(Series[P], len(s))
	copy(out, s)
	return out
}

// IsPlaceholder reports whether every monitored field of p is exactly zero.
// Providers emit such rows for unlisted assets and missing periods.
func IsPlaceholder(p Point) bool {
	for _, v := range p.Values() {
		if v != 0 {
			return false
		}
	}
	return true
}

// DayOf truncates t to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayNumber returns the number of days between the Unix epoch and t's UTC day.
func DayNumber(t time.Time) int64 {
	return DayOf(t).Unix() / secondsPerDay
}

// FromDayNumber is the inverse of DayNumber.
func FromDayNumber(n int64) time.Time {
	return time.Unix(n*secondsPerDay, 0).UTC()
}

// ParseDay parses a YYYY-MM-DD string as a UTC day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return t, nil
}

// Key identifies one persisted series. Currency is empty for on-chain metrics.
type Key struct {
	Symbol   string
	Currency string
}

// PriceKey builds the key of a symbol/currency price series.
func PriceKey(symbol, currency string) Key {
	return Key{Symbol: strings.ToUpper(symbol), Currency: strings.ToUpper(currency)}
}

// MetricKey builds the key of a symbol's on-chain metric series.
func MetricKey(symbol string) Key {
	return Key{Symbol: strings.ToLower(symbol)}
}

func (k Key) String() string {
	if k.Currency == "" {
		return k.Symbol
	}
	return k.Symbol + "/" + k.Currency
}

// FileStem is the deterministic base name of the key's store file. Characters
// outside [A-Za-z0-9-] are replaced, and a hash of the raw key is then appended
// so that keys differing only in replaced characters never share a file.
func (k Key) FileStem() string {
	sym, symChanged := sanitize(k.Symbol)
	var stem string
	changed := symChanged
	if k.Currency == "" {
		stem = sym + "_metrics_data"
	} else {
		cur, curChanged := sanitize(k.Currency)
		changed = changed || curChanged
		stem = sym + "_" + cur + "_data"
	}
	if changed {
		h := fnv.New32a()
		h.Write([]byte(k.Symbol + "\x00" + k.Currency))
		stem += fmt.Sprintf("-%08x", h.Sum32())
	}
	return stem
}

func sanitize(s string) (string, bool) {
	changed := false
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			changed = true
			return '-'
		}
	}, s)
	return out, changed
}
