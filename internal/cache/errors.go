package cache

import (
	"fmt"

	"SeriesKeeper/internal/model"
)

// StoreError reports a failure to read or write a persisted series.
// It is always returned to the caller.
type StoreError struct {
	Key model.Key
	Op  string // "load" or "save"
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// FetchError reports a provider failure: transport error, timeout, error
// payload or a response that did not decode into points.
type FetchError struct {
	Key      model.Key
	Provider string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s from %s: %v", e.Key, e.Provider, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
