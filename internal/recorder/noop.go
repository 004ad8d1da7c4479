package recorder

import "SeriesKeeper/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRefresh(_ *model.RefreshReport) error    { return nil }
func (n *NoopRecorder) LastRefreshes() ([]model.RefreshReport, error) { return nil, nil }
func (n *NoopRecorder) Close() error                                  { return nil }
