// Package merge combines a persisted series with a freshly fetched batch.
//
// Merge is pure: it never mutates its inputs and performs no I/O.
package merge

import (
	"fmt"
	"sort"
	"time"

	"SeriesKeeper/internal/model"
)

// InvariantError reports a series that is not strictly ordered by day or
// still contains a placeholder row. It indicates a defect, never bad input.
type InvariantError struct {
	Index  int
	Prev   time.Time
	Next   time.Time
	Reason string
}

func (e *InvariantError) Error() string {
	if e.Prev.IsZero() {
		return fmt.Sprintf("series invariant violated at %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("series invariant violated at %d: %s (%s !< %s)",
		e.Index, e.Reason, e.Prev.Format(model.DayLayout), e.Next.Format(model.DayLayout))
}

// Merge returns a new series holding existing extended by fetched.
//
// Points are ordered by UTC day. When several points share a day the one
// appearing last in existing+fetched wins, so the newer batch overrides the
// stored value. Placeholder rows are dropped; a placeholder in fetched never
// displaces a stored observation.
func Merge[P model.Point](existing model.Series[P], fetched []P) (model.Series[P], error) {
	work := make([]P, 0, len(existing)+len(fetched))
	work = append(work, existing...)
	for _, p := range fetched {
		if model.IsPlaceholder(p) {
			continue
		}
		work = append(work, p)
	}

	// Stable sort keeps concatenation order among equal days.
	sort.SliceStable(work, func(i, j int) bool {
		return model.DayNumber(work[i].Day()) < model.DayNumber(work[j].Day())
	})

	out := make(model.Series[P], 0, len(work))
	for _, p := range work {
		if n := len(out); n > 0 && model.DayNumber(out[n-1].Day()) == model.DayNumber(p.Day()) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}

	// Stored series from older versions may still carry placeholders.
	kept := out[:0]
	for _, p := range out {
		if !model.IsPlaceholder(p) {
			kept = append(kept, p)
		}
	}
	out = kept

	if err := Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks that s is strictly increasing by day and free of placeholders.
func Validate[P model.Point](s model.Series[P]) error {
	for i, p := range s {
		if model.IsPlaceholder(p) {
			return &InvariantError{Index: i, Reason: "placeholder row"}
		}
		if i == 0 {
			continue
		}
		prev, next := s[i-1].Day(), p.Day()
		if model.DayNumber(prev) >= model.DayNumber(next) {
			return &InvariantError{Index: i, Prev: model.DayOf(prev), Next: model.DayOf(next), Reason: "days not strictly increasing"}
		}
	}
	return nil
}
