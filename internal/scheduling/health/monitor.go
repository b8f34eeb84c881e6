package health

import (
	"sync"
	"time"

	"github.com/pinwater/pinwatch/internal/core/domain"
)

// Monitor holds the latest published snapshot.
type Monitor struct {
	mu       sync.RWMutex
	snapshot *Snapshot
	seq      uint64
}

// NewMonitor creates a monitor with no completed cycle.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// Publish builds a snapshot from reg. A nil reg or non-nil cycleErr marks
// the service unavailable but keeps the previous records for inspection.
func (m *Monitor) Publish(reg *domain.Registry, cycleErr error, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	snap := &Snapshot{
		CycleAt:  domain.TimePtr(now),
		Counts:   map[string]int{},
		Records:  []RecordHealth{},
		Sequence: m.seq,
	}

	if cycleErr != nil || reg == nil {
		snap.Status = StatusUnavailable
		if cycleErr != nil {
			snap.Error = cycleErr.Error()
		}
		if m.snapshot != nil {
			snap.Counts = m.snapshot.Counts
			snap.Records = m.snapshot.Records
		}
		m.snapshot = snap
		return
	}

	for status, n := range reg.CountByStatus() {
		snap.Counts[string(status)] = n
	}
	for _, src := range reg.Sources {
		snap.Records = append(snap.Records, record(src.ID, "source", &src.Health))
	}
	for _, abbr := range reg.StateAbbrs() {
		snap.Records = append(snap.Records, record(domain.WQPKey(abbr), "wqp", &reg.WQPStates[abbr].Health))
	}

	snap.Status = StatusOK
	if snap.Counts[string(domain.StatusDead)] > 0 {
		snap.Status = StatusDegraded
	}
	m.snapshot = snap
}

// Snapshot returns the latest snapshot, or nil before the first cycle.
func (m *Monitor) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

func record(key, kind string, h *domain.Health) RecordHealth {
	return RecordHealth{
		Key:            key,
		Kind:           kind,
		Status:         string(h.Status),
		ErrorCount:     h.ErrorCount,
		BackoffMinutes: h.BackoffMinutes,
		LastChecked:    copyTime(h.LastChecked),
		LastSuccess:    copyTime(h.LastSuccess),
		NextCheckAfter: copyTime(h.NextCheckAfter),
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
