// Package staleness classifies how recently each record last delivered data.
package staleness

import (
	"time"

	"github.com/pinwater/pinwatch/internal/core/domain"
)

// Bracket is a coarse age class.
type Bracket string

const (
	BracketNever        Bracket = "never"
	BracketCurrent      Bracket = "current"
	BracketTrend        Bracket = "trend-analysis"
	BracketSupplemental Bracket = "supplemental"
	BracketHistorical   Bracket = "historical"
)

// Brackets lists every bracket from freshest to oldest, then never.
var Brackets = []Bracket{BracketCurrent, BracketTrend, BracketSupplemental, BracketHistorical, BracketNever}

// Label returns the human-facing name of the bracket.
func (b Bracket) Label() string {
	if b == BracketCurrent {
		return "decision-grade"
	}
	return string(b)
}

// ClassifyAge maps days since last success to a bracket. nil means never.
func ClassifyAge(days *int) Bracket {
	switch {
	case days == nil:
		return BracketNever
	case *days < 730:
		return BracketCurrent
	case *days < 1825:
		return BracketTrend
	case *days < 3650:
		return BracketSupplemental
	default:
		return BracketHistorical
	}
}

// DaysSince returns whole days elapsed from t to now, or nil when t is nil.
func DaysSince(t *time.Time, now time.Time) *int {
	if t == nil {
		return nil
	}
	days := int(now.Sub(*t) / (24 * time.Hour))
	return &days
}

// Entry is one record in a report list.
type Entry struct {
	Key         string
	Status      domain.Status
	Days        *int
	LastSuccess *time.Time
	Bracket     Bracket
}

// Report is a read-only view of registry staleness.
type Report struct {
	ThresholdDays int
	Dead          []Entry
	Stale         []Entry
	Never         []Entry
	Brackets      map[Bracket]int
	Total         int
}

// Build partitions every record. Dead wins over never-fetched, which wins
// over stale. Sources come first in registry order, then jurisdictions by
// abbreviation.
func Build(reg *domain.Registry, thresholdDays int, now time.Time) Report {
	r := Report{
		ThresholdDays: thresholdDays,
		Dead:          []Entry{},
		Stale:         []Entry{},
		Never:         []Entry{},
		Brackets:      make(map[Bracket]int, len(Brackets)),
	}
	for _, b := range Brackets {
		r.Brackets[b] = 0
	}

	add := func(key string, h *domain.Health) {
		days := DaysSince(h.LastSuccess, now)
		e := Entry{
			Key:         key,
			Status:      h.Status,
			Days:        days,
			LastSuccess: h.LastSuccess,
			Bracket:     ClassifyAge(days),
		}
		r.Brackets[e.Bracket]++
		r.Total++

		switch {
		case h.Status == domain.StatusDead:
			r.Dead = append(r.Dead, e)
		case days == nil:
			r.Never = append(r.Never, e)
		case *days > thresholdDays:
			r.Stale = append(r.Stale, e)
		}
	}

	for _, src := range reg.Sources {
		add(src.ID, &src.Health)
	}
	for _, abbr := range reg.StateAbbrs() {
		add(domain.WQPKey(abbr), &reg.WQPStates[abbr].Health)
	}
	return r
}
