package domain

import (
	"errors"
	"fmt"
)

// ErrNotQuiescent is returned when a catalog is requested while workers may
// still be reporting.
var ErrNotQuiescent = errors.New("worker pool has not reached quiescence")

// SessionError means the store context could not be established. It is fatal
// for the run.
type SessionError struct {
	Stage string
	Err   error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session error (%s): %v", e.Stage, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// FetchError aborts the pagination of a single category.
type FetchError struct {
	Category   string
	Offset     int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %q at offset %d failed (status %d): %v", e.Category, e.Offset, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %q at offset %d failed: %v", e.Category, e.Offset, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NormalizeError is raised for pages whose items cannot be decoded at all.
type NormalizeError struct {
	Offset int
	Index  int
	Err    error
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("normalize item %d of page at offset %d: %v", e.Index, e.Offset, e.Err)
}

func (e *NormalizeError) Unwrap() error {
	return e.Err
}

// PersistError is returned by output sinks. The catalog is already computed
// when it happens.
type PersistError struct {
	Sink string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist catalog to %s: %v", e.Sink, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
