// Package backoff decides when an endpoint may be checked again.
//
// Every health mutation goes through Policy.Apply, which keeps the record
// invariants intact:
//
//	live result   -> error_count 0, first_failure cleared, base interval
//	failed result -> error_count+1, first_failure stamped once,
//	                 interval = max(count tier, duration tier), capped
//
// The duration tier wins whenever it is larger, so an endpoint that has been
// down for a week is checked at most once a day even right after a restart.
package backoff

import (
	"errors"
	"fmt"
	"time"

	"github.com/pinwater/pinwatch/internal/core/domain"
)

// ErrGated is returned when a probe result is applied to a gated record.
var ErrGated = errors.New("gated sources are not probed")

// Policy holds the backoff schedule.
type Policy struct {
	Base      time.Duration // live sources
	Degraded  time.Duration // 1..DeadAfter-1 consecutive failures
	Dead      time.Duration // DeadAfter+ consecutive failures
	Dead24h   time.Duration // failing for more than 24h
	Dead7d    time.Duration // failing for more than 7 days
	Max       time.Duration
	DeadAfter int
}

// Default returns the production schedule.
func Default() Policy {
	return Policy{
		Base:      5 * time.Minute,
		Degraded:  15 * time.Minute,
		Dead:      60 * time.Minute,
		Dead24h:   360 * time.Minute,
		Dead7d:    1440 * time.Minute,
		Max:       1440 * time.Minute,
		DeadAfter: 4,
	}
}

// Compute returns the next check interval for h as of now.
func (p Policy) Compute(h *domain.Health, now time.Time) time.Duration {
	if h.ErrorCount == 0 {
		return p.Base
	}

	count := p.Degraded
	if h.ErrorCount >= p.DeadAfter {
		count = p.Dead
	}

	duration := count
	if h.FirstFailure != nil {
		down := now.Sub(*h.FirstFailure)
		switch {
		case down > 7*24*time.Hour:
			duration = p.Dead7d
		case down > 24*time.Hour:
			duration = p.Dead24h
		}
	}

	return min(max(count, duration), p.Max)
}

// Apply records a probe or fetch result on h.
func (p Policy) Apply(h *domain.Health, status domain.Status, now time.Time) error {
	if status == domain.StatusGated || h.Status == domain.StatusGated {
		return ErrGated
	}
	if !status.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}

	now = now.UTC()
	var interval time.Duration
	if status == domain.StatusLive {
		h.ErrorCount = 0
		h.FirstFailure = nil
		interval = p.Base
	} else {
		h.ErrorCount++
		if h.FirstFailure == nil {
			h.FirstFailure = domain.TimePtr(now)
		}
		interval = p.Compute(h, now)
	}

	h.Status = status
	h.BackoffMinutes = int(interval / time.Minute)
	h.LastChecked = domain.TimePtr(now)
	h.NextCheckAfter = domain.TimePtr(now.Add(interval))
	return nil
}

// ShouldSkip reports whether h is still inside its backoff window.
// Gated records are expected to be filtered by the caller.
func ShouldSkip(h *domain.Health, force bool, now time.Time) (bool, string) {
	if force || h.NextCheckAfter == nil {
		return false, ""
	}
	if !now.Before(*h.NextCheckAfter) {
		return false, ""
	}
	mins := int(h.NextCheckAfter.Sub(now) / time.Minute)
	return true, fmt.Sprintf("next check in %dm", mins)
}

// InFailureWindow reports whether h is failing and not yet due for a retry.
func InFailureWindow(h *domain.Health, now time.Time) bool {
	if h.ErrorCount == 0 {
		return false
	}
	skip, _ := ShouldSkip(h, false, now)
	return skip
}
