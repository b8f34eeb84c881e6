// Package batch selects the bounded set of records to fetch next.
package batch

import (
	"sort"
	"time"

	"github.com/pinwater/pinwatch/internal/core/domain"
	"github.com/pinwater/pinwatch/internal/scheduling/backoff"
)

// Kind tags a work item.
type Kind string

const (
	KindFederal Kind = "federal"
	KindWQP     Kind = "wqp"
)

// DefaultSentinels are sources handled out-of-band: the all-states umbrella
// (fetched through its jurisdictions) and the pre-cached assessment source.
var DefaultSentinels = []string{"wqp-portal", "epa-attains"}

// Item is one unit of fetch work. Exactly one of Source and State is set.
type Item struct {
	Kind   Kind
	Key    string // source ID or jurisdiction abbreviation
	Source *domain.Source
	State  *domain.WQPState
}

// Health returns the record's health fields.
func (it Item) Health() *domain.Health {
	if it.Source != nil {
		return &it.Source.Health
	}
	return &it.State.Health
}

// DisplayKey returns the key used in logs ("usgs-nwis", "wqp-MD").
func (it Item) DisplayKey() string {
	if it.Kind == KindWQP {
		return domain.WQPKey(it.Key)
	}
	return it.Key
}

// Scheduler picks batches. The zero value uses no sentinels.
type Scheduler struct {
	sentinels map[string]bool
	fetchable func(id string) bool
}

// NewScheduler creates a scheduler that skips the given sentinel IDs.
func NewScheduler(sentinels []string) *Scheduler {
	s := &Scheduler{sentinels: make(map[string]bool, len(sentinels))}
	for _, id := range sentinels {
		s.sentinels[id] = true
	}
	return s
}

// WithFetchable restricts the federal phase to sources accepted by fn,
// typically those with a registered fetcher.
func (s *Scheduler) WithFetchable(fn func(id string) bool) *Scheduler {
	s.fetchable = fn
	return s
}

// PickNext returns up to n items in fetch order. It never mutates reg.
//
// Federal phase: sources in registry order that were never fetched.
// If the budget runs out here the WQP phase is not consulted.
// WQP phase: jurisdictions ordered never-fetched first, then by oldest
// last_fetch, then priority, then abbreviation.
//
// Records that are failing and still inside their backoff window are held
// back in both phases.
func (s *Scheduler) PickNext(reg *domain.Registry, n int, now time.Time) []Item {
	if n <= 0 {
		return []Item{}
	}
	items := make([]Item, 0, n)

	for _, src := range reg.Sources {
		if src.Status == domain.StatusDead || src.Status == domain.StatusGated {
			continue
		}
		if s.sentinels[src.ID] || src.LastFetch != nil {
			continue
		}
		if s.fetchable != nil && !s.fetchable(src.ID) {
			continue
		}
		if backoff.InFailureWindow(&src.Health, now) {
			continue
		}
		items = append(items, Item{Kind: KindFederal, Key: src.ID, Source: src})
		if len(items) >= n {
			return items
		}
	}

	type candidate struct {
		abbr  string
		state *domain.WQPState
	}
	candidates := make([]candidate, 0, len(reg.WQPStates))
	for abbr, st := range reg.WQPStates {
		if st.Status == domain.StatusDead || st.Status == domain.StatusGated {
			continue
		}
		if backoff.InFailureWindow(&st.Health, now) {
			continue
		}
		candidates = append(candidates, candidate{abbr: abbr, state: st})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i].state, candidates[j].state
		aFetched, bFetched := a.LastFetch != nil, b.LastFetch != nil
		if aFetched != bFetched {
			return !aFetched
		}
		if aFetched && !a.LastFetch.Equal(*b.LastFetch) {
			return a.LastFetch.Before(*b.LastFetch)
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return candidates[i].abbr < candidates[j].abbr
	})

	for _, c := range candidates {
		if len(items) >= n {
			break
		}
		items = append(items, Item{Kind: KindWQP, Key: c.abbr, State: c.state})
	}
	return items
}
