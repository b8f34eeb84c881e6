// Package health publishes the registry state of the serve loop over HTTP.
package health

import "time"

// SystemStatus represents the aggregate state reported on /health.
type SystemStatus string

const (
	StatusOK          SystemStatus = "ok"
	StatusDegraded    SystemStatus = "degraded"
	StatusUnavailable SystemStatus = "unavailable"
)

// RecordHealth is the per-record detail served on /health/sources.
type RecordHealth struct {
	Key            string     `json:"key"`
	Kind           string     `json:"kind"`
	Status         string     `json:"status"`
	ErrorCount     int        `json:"error_count"`
	BackoffMinutes int        `json:"backoff_minutes"`
	LastChecked    *time.Time `json:"last_checked,omitempty"`
	LastSuccess    *time.Time `json:"last_success,omitempty"`
	NextCheckAfter *time.Time `json:"next_check_after,omitempty"`
}

// Snapshot is an immutable view published after each cycle.
type Snapshot struct {
	Status   SystemStatus   `json:"status"`
	CycleAt  *time.Time     `json:"cycle_at,omitempty"`
	Error    string         `json:"error,omitempty"`
	Counts   map[string]int `json:"counts"`
	Records  []RecordHealth `json:"records"`
	Sequence uint64         `json:"sequence"`
}
