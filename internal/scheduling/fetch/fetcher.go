package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoFetcher is returned when no adapter is registered for a source.
var ErrNoFetcher = errors.New("no fetcher registered")

// PayloadError reports a response that arrived but whose body could not be
// read. The endpoint answered, so it counts as degraded, never dead.
type PayloadError struct {
	StatusCode int
	Err        error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("HTTP %d: unreadable payload: %v", e.StatusCode, e.Err)
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

// WQPFetcherID is the dispatch key used for jurisdiction items.
const WQPFetcherID = "wqp"

// Request describes one pull.
type Request struct {
	SourceID string
	State    string // jurisdiction abbreviation, empty for nationwide pulls
	FIPS     string
	Start    time.Time
}

// Result is what the engine records about a pull. Payloads are not kept.
type Result struct {
	Rows int
	URL  string
}

// Fetcher pulls data for one source.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (Result, error)

	// PerState reports whether the source is pulled once per jurisdiction.
	PerState() bool
}

// Dispatcher resolves the fetcher for a source ID.
type Dispatcher interface {
	Lookup(id string) (Fetcher, bool)
}

// Table is a static Dispatcher.
type Table map[string]Fetcher

// Lookup implements Dispatcher.
func (t Table) Lookup(id string) (Fetcher, bool) {
	f, ok := t[id]
	return f, ok
}
