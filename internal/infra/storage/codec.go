package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pinwater/pinwatch/internal/core/domain"
)

// Encode serializes reg as an indented JSON document.
func Encode(reg *domain.Registry) ([]byte, error) {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode registry: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a registry document. Any structural problem is reported as
// ErrCorruptRegistry.
func Decode(data []byte) (*domain.Registry, error) {
	reg := domain.NewRegistry()
	if err := json.Unmarshal(data, reg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRegistry, err)
	}
	if err := normalize(reg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRegistry, err)
	}
	return reg, nil
}

func normalize(reg *domain.Registry) error {
	if reg.Meta.Updated != nil {
		reg.Meta.Updated = domain.TimePtr(*reg.Meta.Updated)
	}
	if reg.Sources == nil {
		reg.Sources = make([]*domain.Source, 0)
	}
	if reg.WQPStates == nil {
		reg.WQPStates = make(map[string]*domain.WQPState)
	}

	seen := make(map[string]bool, len(reg.Sources))
	for i, s := range reg.Sources {
		if s == nil {
			return fmt.Errorf("source #%d is null", i)
		}
		if s.ID == "" {
			return fmt.Errorf("source #%d has no id", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate source id %q", s.ID)
		}
		seen[s.ID] = true
		if err := checkHealth(&s.Health); err != nil {
			return fmt.Errorf("source %s: %w", s.ID, err)
		}
	}
	for abbr, st := range reg.WQPStates {
		if st == nil {
			return fmt.Errorf("wqp state %s is null", abbr)
		}
		if err := checkHealth(&st.Health); err != nil {
			return fmt.Errorf("wqp state %s: %w", abbr, err)
		}
	}
	return nil
}

func checkHealth(h *domain.Health) error {
	for _, t := range []**time.Time{&h.FirstFailure, &h.LastChecked, &h.LastFetch, &h.LastSuccess, &h.NextCheckAfter} {
		if *t != nil {
			*t = domain.TimePtr(**t)
		}
	}
	if h.Status == "" {
		h.Status = domain.StatusLive
	}
	if !h.Status.Valid() {
		return fmt.Errorf("unknown status %q", h.Status)
	}
	if h.ErrorCount < 0 {
		return fmt.Errorf("negative error_count %d", h.ErrorCount)
	}
	return nil
}
