package fetch

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/pinwater/pinwatch/internal/core/domain"
	"github.com/pinwater/pinwatch/internal/scheduling/batch"
)

// Targets names the records a targeted run pulls. Source, Segment and the
// jurisdiction selectors may be combined; each record is pulled at most once.
type Targets struct {
	Source    string            // a single source ID
	State     string            // limits a per-state Source to one jurisdiction
	Segment   domain.SourceType // every source of one catalog segment
	States    []string          // WQP jurisdictions by abbreviation
	AllStates bool              // every WQP jurisdiction
}

// Empty reports whether no record was named.
func (t Targets) Empty() bool {
	return t.Source == "" && t.Segment == "" && len(t.States) == 0 && !t.AllStates
}

type target struct {
	item batch.Item
	skip string
}

// RunTargets pulls the named records regardless of schedule. Dead, gated and
// sentinel records are reported as skipped. Names missing from the registry
// are collected in Report.Unknown; the rest of the run still proceeds.
func (r *Runner) RunTargets(ctx context.Context, reg *domain.Registry, t Targets, opts Options) (Report, error) {
	var report Report
	only := ""
	if t.State != "" {
		abbr, st := reg.FindState(t.State)
		if st == nil {
			slog.Warn("Unknown jurisdiction", "state", t.State)
			report.Unknown = append(report.Unknown, t.State)
			return report, nil
		}
		only = abbr
	}

	targets, unknown := r.resolve(reg, t)
	report.Unknown = append(report.Unknown, unknown...)
	report.Items = make([]ItemResult, 0, len(targets))

	for _, tg := range targets {
		it := tg.item
		if tg.skip != "" {
			slog.Info("Skipping", "source", it.DisplayKey(), "reason", tg.skip)
			report.add(ItemResult{Key: it.DisplayKey(), Kind: it.Kind, Status: it.Health().Status, Skipped: true, Reason: tg.skip})
			continue
		}
		if opts.DryRun {
			report.add(ItemResult{Key: it.DisplayKey(), Kind: it.Kind, Status: it.Health().Status, Planned: true})
			continue
		}
		res, err := r.runItem(ctx, reg, it, opts.Start, only)
		if err != nil {
			return report, err
		}
		report.add(res)
	}
	return report, nil
}

// resolve expands t into items in run order: the named source, then the
// segment by priority, then jurisdictions by abbreviation.
func (r *Runner) resolve(reg *domain.Registry, t Targets) ([]target, []string) {
	var (
		out     []target
		unknown []string
		seen    = make(map[string]bool)
	)
	addSource := func(src *domain.Source) {
		if seen[src.ID] {
			return
		}
		seen[src.ID] = true
		out = append(out, target{
			item: batch.Item{Kind: batch.KindFederal, Key: src.ID, Source: src},
			skip: r.skipSource(src),
		})
	}
	addState := func(abbr string, st *domain.WQPState) {
		key := domain.WQPKey(abbr)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, target{
			item: batch.Item{Kind: batch.KindWQP, Key: abbr, State: st},
			skip: skipStatus(st.Status),
		})
	}

	if t.Source != "" {
		if src := reg.FindSource(t.Source); src != nil {
			addSource(src)
		} else {
			slog.Warn("Unknown source", "source", t.Source)
			unknown = append(unknown, t.Source)
		}
	}

	if t.Segment != "" {
		var segment []*domain.Source
		for _, src := range reg.Sources {
			if src.Type == t.Segment {
				segment = append(segment, src)
			}
		}
		sort.SliceStable(segment, func(i, j int) bool {
			return segment[i].Priority < segment[j].Priority
		})
		for _, src := range segment {
			addSource(src)
		}
	}

	abbrs := t.States
	if t.AllStates {
		abbrs = reg.StateAbbrs()
	}
	for _, name := range abbrs {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		abbr, st := reg.FindState(name)
		if st == nil {
			slog.Warn("Unknown jurisdiction", "state", name)
			unknown = append(unknown, name)
			continue
		}
		addState(abbr, st)
	}
	return out, unknown
}

func (r *Runner) skipSource(src *domain.Source) string {
	if r.sentinels[src.ID] {
		if src.ID == "wqp-portal" {
			return "pulled per jurisdiction, use --states"
		}
		return "handled out of band"
	}
	return skipStatus(src.Status)
}

func skipStatus(status domain.Status) string {
	switch status {
	case domain.StatusDead:
		return "dead"
	case domain.StatusGated:
		return "gated"
	}
	return ""
}
