package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoData means the vendor has no rows for the requested day.
	ErrNoData = errors.New("no data for date")
	// ErrSessionExpired means the vendor rejected the session token.
	ErrSessionExpired = errors.New("session expired")
)

// FetchError is a failed remote call for one (instrument, date).
type FetchError struct {
	Instrument string
	Date       time.Time
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s %s: %v", e.Instrument, e.Date.Format("2006-01-02"), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MalformedRowError is a fetched row missing base schema fields.
type MalformedRowError struct {
	Row     int
	Missing []string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed row %d: missing %s", e.Row, strings.Join(e.Missing, ", "))
}

// PersistError is a failed write of one leg. Leg is empty for row sinks,
// which receive all legs at once.
type PersistError struct {
	Leg  Leg
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	if e.Leg == "" {
		return fmt.Sprintf("persist to %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("persist %s to %s: %v", e.Leg, e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// ConnectionError is a failed vendor login. It aborts the run.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
