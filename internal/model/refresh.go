package model

import "time"

// Outcome describes how a series access was served.
type Outcome string

const (
	OutcomeFresh        Outcome = "FRESH"
	OutcomeFetchedFull  Outcome = "FETCHED_FULL"
	OutcomeFetchedDelta Outcome = "FETCHED_DELTA"
	OutcomeStale        Outcome = "STALE"
	OutcomeError        Outcome = "ERROR"
)

// RefreshReport summarises a single series access.
type RefreshReport struct {
	Kind      string // schema name: "price" or "metrics"
	Key       Key
	Outcome   Outcome
	Points    int
	Fetched   int // raw rows returned by the provider
	Watermark time.Time
	Err       string
	At        time.Time
}

// Degraded reports whether the access failed or fell back to stale data.
func (r RefreshReport) Degraded() bool {
	return r.Outcome == OutcomeStale || r.Outcome == OutcomeError
}
