package domain

import (
	"sort"
	"strings"
	"time"
)

// Meta carries registry-level bookkeeping.
type Meta struct {
	Updated *time.Time `json:"updated,omitempty"`
}

// Registry is the whole persisted catalog. It is loaded, mutated in memory
// and saved back as one document.
type Registry struct {
	Meta      Meta                 `json:"meta"`
	Sources   []*Source            `json:"sources"`
	WQPStates map[string]*WQPState `json:"wqp_states"`
	Extra     Extra                `json:"-"`
}

// NewRegistry returns an empty registry with initialized collections.
func NewRegistry() *Registry {
	return &Registry{
		Sources:   make([]*Source, 0),
		WQPStates: make(map[string]*WQPState),
	}
}

// FindSource returns the source with the given ID, or nil.
func (r *Registry) FindSource(id string) *Source {
	for _, s := range r.Sources {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// FindState resolves a jurisdiction by abbreviation. Both "MD" and "wqp-MD"
// forms are accepted, case-insensitively.
func (r *Registry) FindState(key string) (string, *WQPState) {
	abbr := strings.ToUpper(strings.TrimPrefix(strings.ToLower(key), "wqp-"))
	if st, ok := r.WQPStates[abbr]; ok {
		return abbr, st
	}
	return "", nil
}

// StateAbbrs returns jurisdiction abbreviations in sorted order.
func (r *Registry) StateAbbrs() []string {
	abbrs := make([]string, 0, len(r.WQPStates))
	for abbr := range r.WQPStates {
		abbrs = append(abbrs, abbr)
	}
	sort.Strings(abbrs)
	return abbrs
}

// Clone returns a deep copy of the registry.
func (r *Registry) Clone() *Registry {
	out := &Registry{
		Meta:      Meta{Updated: cloneTime(r.Meta.Updated)},
		Sources:   make([]*Source, 0, len(r.Sources)),
		WQPStates: make(map[string]*WQPState, len(r.WQPStates)),
		Extra:     r.Extra.clone(),
	}
	for _, s := range r.Sources {
		c := *s
		c.Health = s.Health.clone()
		c.Extra = s.Extra.clone()
		if s.AltURLs != nil {
			c.AltURLs = append([]string(nil), s.AltURLs...)
		}
		out.Sources = append(out.Sources, &c)
	}
	for abbr, st := range r.WQPStates {
		c := *st
		c.Health = st.Health.clone()
		c.Extra = st.Extra.clone()
		out.WQPStates[abbr] = &c
	}
	return out
}

// CountByStatus tallies records of both kinds by status.
func (r *Registry) CountByStatus() map[Status]int {
	counts := make(map[Status]int)
	for _, s := range r.Sources {
		counts[s.Status]++
	}
	for _, st := range r.WQPStates {
		counts[st.Status]++
	}
	return counts
}

func (h Health) clone() Health {
	h.FirstFailure = cloneTime(h.FirstFailure)
	h.LastChecked = cloneTime(h.LastChecked)
	h.LastFetch = cloneTime(h.LastFetch)
	h.LastSuccess = cloneTime(h.LastSuccess)
	h.NextCheckAfter = cloneTime(h.NextCheckAfter)
	return h
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
