package domain

import "time"

// Status is the outward liveness state of a source.
type Status string

const (
	StatusLive     Status = "live"
	StatusDegraded Status = "degraded"
	StatusDead     Status = "dead"
	StatusGated    Status = "gated" // manually assigned, never probed
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusLive, StatusDegraded, StatusDead, StatusGated:
		return true
	}
	return false
}

// SourceType groups sources into catalog segments.
type SourceType string

const (
	SourceTypeFederal      SourceType = "federal"
	SourceTypeState        SourceType = "state"
	SourceTypeNOAA         SourceType = "noaa"
	SourceTypeSupplemental SourceType = "supplemental"
)

// Valid reports whether t is one of the known catalog segments.
func (t SourceType) Valid() bool {
	switch t {
	case SourceTypeFederal, SourceTypeState, SourceTypeNOAA, SourceTypeSupplemental:
		return true
	}
	return false
}

// Health holds the health and scheduling fields shared by every record kind.
// It is only mutated through backoff.Policy and the runners built on it.
type Health struct {
	Status         Status     `json:"status"`
	ErrorCount     int        `json:"error_count"`
	FirstFailure   *time.Time `json:"first_failure,omitempty"`
	LastChecked    *time.Time `json:"last_checked,omitempty"`
	LastFetch      *time.Time `json:"last_fetch,omitempty"`
	LastSuccess    *time.Time `json:"last_success,omitempty"`
	BackoffMinutes int        `json:"backoff_minutes,omitempty"`
	NextCheckAfter *time.Time `json:"next_check_after,omitempty"`
}

// Source is a federal, state, NOAA or supplemental endpoint.
type Source struct {
	ID       string     `json:"id"`
	Type     SourceType `json:"type"`
	Name     string     `json:"name,omitempty"`
	URL      string     `json:"url"`
	ProbeURL string     `json:"probe_url,omitempty"`
	Priority int        `json:"priority"`
	AltURLs  []string   `json:"alt_urls,omitempty"`
	Health
	Extra Extra `json:"-"`
}

// CheckURL returns the lightweight probe URL, falling back to URL.
func (s *Source) CheckURL() string {
	if s.ProbeURL != "" {
		return s.ProbeURL
	}
	return s.URL
}

// WQPState is one per-jurisdiction sub-source of the Water Quality Portal.
type WQPState struct {
	FIPS     string `json:"fips"`
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Health
	Extra Extra `json:"-"`
}

// WQPKey is the display key used for a jurisdiction in reports and logs.
func WQPKey(abbr string) string {
	return "wqp-" + abbr
}

// TimePtr returns a pointer to t normalized to UTC.
func TimePtr(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}
