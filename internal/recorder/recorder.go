package recorder

import "SeriesKeeper/internal/model"

// Recorder persists the outcome of every series access for later inspection.
type Recorder interface {
	RecordRefresh(r *model.RefreshReport) error
	// LastRefreshes returns the newest report per series, ordered by kind then key.
	LastRefreshes() ([]model.RefreshReport, error)
	Close() error
}
