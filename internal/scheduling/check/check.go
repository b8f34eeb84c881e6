// Package check runs health probes over registry records and applies the
// results through the backoff policy.
package check

import (
	"context"
	"log/slog"
	"time"

	"github.com/pinwater/pinwatch/internal/core/domain"
	"github.com/pinwater/pinwatch/internal/infra/probe"
	"github.com/pinwater/pinwatch/internal/scheduling/backoff"
	"github.com/pinwater/pinwatch/internal/scheduling/metrics"
	"github.com/pinwater/pinwatch/internal/scheduling/throttle"
)

// AllWQP selects every jurisdiction.
const AllWQP = "all-wqp"

// Prober checks one URL.
type Prober interface {
	Probe(ctx context.Context, url string, mode probe.Mode) probe.Outcome
}

// Options controls one check run.
type Options struct {
	Fast    bool     // HEAD with the short timeout
	Force   bool     // ignore backoff windows
	WQPOnly bool     // all jurisdictions, no sources
	Targets []string // source IDs, "XX"/"wqp-XX" or AllWQP; empty means everything
}

// Outcome is the result for one record.
type Outcome struct {
	Key        string
	Kind       string // "source" or "wqp"
	Previous   domain.Status
	Status     domain.Status
	Skipped    bool
	Reason     string
	StatusCode int
	LatencyMS  *float64
	Err        string
}

// Changed reports whether the status moved.
func (o Outcome) Changed() bool {
	return !o.Skipped && o.Previous != o.Status
}

// Summary counts outcomes by category.
type Summary struct {
	Live     int
	Degraded int
	Dead     int
	Gated    int
	Skipped  int
	Unknown  []string
}

// Checked is the number of records actually probed.
func (s Summary) Checked() int {
	return s.Live + s.Degraded + s.Dead
}

// Total is every record visited, including skipped and gated ones.
func (s Summary) Total() int {
	return s.Checked() + s.Gated + s.Skipped
}

// OK reports whether every target resolved.
func (s Summary) OK() bool {
	return len(s.Unknown) == 0
}

func (s *Summary) add(status domain.Status) {
	switch status {
	case domain.StatusLive:
		s.Live++
	case domain.StatusDegraded:
		s.Degraded++
	case domain.StatusDead:
		s.Dead++
	case domain.StatusGated:
		s.Gated++
	}
}

// Report is the full result of a run.
type Report struct {
	Outcomes []Outcome
	Summary  Summary
}

// Runner probes records sequentially.
type Runner struct {
	prober      Prober
	policy      backoff.Policy
	pacer       *throttle.Pacer
	wqpTemplate string
	now         func() time.Time
}

// NewRunner creates a Runner. An empty wqpTemplate selects probe.DefaultWQPTemplate.
func NewRunner(prober Prober, policy backoff.Policy, pacer *throttle.Pacer, wqpTemplate string) *Runner {
	return &Runner{
		prober:      prober,
		policy:      policy,
		pacer:       pacer,
		wqpTemplate: wqpTemplate,
		now:         time.Now,
	}
}

// WithClock overrides the clock.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

type target struct {
	key    string
	source *domain.Source
	abbr   string
	state  *domain.WQPState
}

// resolve expands opts into an ordered, de-duplicated target list. Unknown
// identifiers are returned separately.
func resolve(reg *domain.Registry, opts Options) ([]target, []string) {
	var targets []target
	var unknown []string
	seen := make(map[string]bool)

	addSource := func(src *domain.Source) {
		if seen[src.ID] {
			return
		}
		seen[src.ID] = true
		targets = append(targets, target{key: src.ID, source: src})
	}
	addState := func(abbr string) {
		key := domain.WQPKey(abbr)
		if seen[key] {
			return
		}
		seen[key] = true
		targets = append(targets, target{key: key, abbr: abbr, state: reg.WQPStates[abbr]})
	}
	addAllStates := func() {
		for _, abbr := range reg.StateAbbrs() {
			addState(abbr)
		}
	}

	switch {
	case len(opts.Targets) > 0:
		for _, id := range opts.Targets {
			if id == AllWQP {
				addAllStates()
				continue
			}
			if src := reg.FindSource(id); src != nil {
				addSource(src)
				continue
			}
			if abbr, st := reg.FindState(id); st != nil {
				addState(abbr)
				continue
			}
			unknown = append(unknown, id)
		}
		if opts.WQPOnly {
			addAllStates()
		}
	case opts.WQPOnly:
		addAllStates()
	default:
		for _, src := range reg.Sources {
			addSource(src)
		}
		addAllStates()
	}
	return targets, unknown
}

// Run probes every resolved target, mutating reg in place. Unknown targets
// are reported in the summary and do not stop the run. The returned error is
// non-nil only when ctx is cancelled; the partial report is still valid.
func (r *Runner) Run(ctx context.Context, reg *domain.Registry, opts Options) (Report, error) {
	targets, unknown := resolve(reg, opts)
	report := Report{Outcomes: make([]Outcome, 0, len(targets))}
	report.Summary.Unknown = unknown
	for _, id := range unknown {
		slog.Warn("Unknown source", "source", id)
	}

	mode := probe.ModeFull
	if opts.Fast {
		mode = probe.ModeFast
	}

	for _, t := range targets {
		var h *domain.Health
		var url string
		family := throttle.FamilyProbe
		kind := "source"
		if t.source != nil {
			h, url = &t.source.Health, t.source.CheckURL()
		} else {
			h, url = &t.state.Health, probe.WQPURL(r.wqpTemplate, t.state.FIPS)
			family, kind = throttle.FamilyWQPProbe, "wqp"
		}

		out := Outcome{Key: t.key, Kind: kind, Previous: h.Status, Status: h.Status}

		if h.Status == domain.StatusGated {
			report.Summary.add(domain.StatusGated)
			report.Outcomes = append(report.Outcomes, out)
			continue
		}

		if skip, reason := backoff.ShouldSkip(h, opts.Force, r.now()); skip {
			out.Skipped, out.Reason = true, reason
			report.Summary.Skipped++
			report.Outcomes = append(report.Outcomes, out)
			metrics.ProbesSkipped.WithLabelValues(kind).Inc()
			slog.Debug("Skipped", "source", t.key, "reason", reason)
			continue
		}

		if err := r.pacer.Wait(ctx, family); err != nil {
			return report, err
		}
		res := r.prober.Probe(ctx, url, mode)
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if err := r.policy.Apply(h, res.Status, r.now()); err != nil {
			return report, err
		}
		out.Status = h.Status
		out.StatusCode = res.StatusCode
		out.LatencyMS = res.LatencyMS()
		out.Err = res.Err
		report.Summary.add(h.Status)
		report.Outcomes = append(report.Outcomes, out)
		metrics.ProbesTotal.WithLabelValues(kind, string(h.Status)).Inc()
		if res.Responded() {
			metrics.ProbeLatency.WithLabelValues(kind, mode.String()).Observe(res.Latency.Seconds())
		}

		attrs := []any{"source", t.key, "status", h.Status, "mode", mode}
		if out.LatencyMS != nil {
			attrs = append(attrs, "latency_ms", int(*out.LatencyMS))
		}
		if res.Err != "" {
			attrs = append(attrs, "error", res.Err)
		}
		if out.Changed() {
			attrs = append(attrs, "previous", out.Previous)
		}
		slog.Info("Checked", attrs...)
	}

	return report, nil
}
