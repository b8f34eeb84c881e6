// Package fetch runs the next batch of data pulls and records their outcome
// on the registry.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pinwater/pinwatch/internal/core/domain"
	"github.com/pinwater/pinwatch/internal/infra/probe"
	"github.com/pinwater/pinwatch/internal/scheduling/backoff"
	"github.com/pinwater/pinwatch/internal/scheduling/batch"
	"github.com/pinwater/pinwatch/internal/scheduling/metrics"
	"github.com/pinwater/pinwatch/internal/scheduling/throttle"
)

// Options controls one batch run.
type Options struct {
	N      int
	Start  time.Time
	DryRun bool
}

// ItemResult is the outcome for one batch item.
type ItemResult struct {
	Key       string
	Kind      batch.Kind
	Status    domain.Status
	Rows      int
	Attempts  int // pulls issued, more than one for per-state sources
	Succeeded int
	Err       string
	NoFetcher bool
	Planned   bool   // dry run: selected but not pulled
	Skipped   bool   // targeted run: named but not eligible
	Reason    string // why a targeted item was skipped
}

// Report summarizes a batch run.
type Report struct {
	Items     []ItemResult
	Fetched   int
	Failed    int
	NoFetcher int
	Skipped   int
	Rows      int
	Unknown   []string // targeted IDs missing from the registry
}

// Empty reports whether the scheduler found nothing to do.
func (r Report) Empty() bool {
	return len(r.Items) == 0
}

func (r *Report) add(res ItemResult) {
	r.Items = append(r.Items, res)
	kind := string(res.Kind)
	switch {
	case res.Planned:
	case res.Skipped:
		r.Skipped++
	case res.NoFetcher:
		r.NoFetcher++
		metrics.FetchesTotal.WithLabelValues(kind, "no_fetcher").Inc()
	case res.Status == domain.StatusLive:
		r.Fetched++
		r.Rows += res.Rows
		metrics.FetchesTotal.WithLabelValues(kind, "success").Inc()
		metrics.FetchRows.WithLabelValues(kind).Add(float64(res.Rows))
	default:
		r.Failed++
		metrics.FetchesTotal.WithLabelValues(kind, "failure").Inc()
	}
}

// Runner executes batches.
type Runner struct {
	scheduler  *batch.Scheduler
	sentinels  map[string]bool
	dispatcher Dispatcher
	policy     backoff.Policy
	pacer      *throttle.Pacer
	now        func() time.Time
}

// NewRunner creates a Runner. Sources without a fetcher are left out of
// the federal phase.
func NewRunner(sentinels []string, dispatcher Dispatcher, policy backoff.Policy, pacer *throttle.Pacer) *Runner {
	scheduler := batch.NewScheduler(sentinels).WithFetchable(func(id string) bool {
		_, ok := dispatcher.Lookup(id)
		return ok
	})
	skip := make(map[string]bool, len(sentinels))
	for _, id := range sentinels {
		skip[id] = true
	}
	return &Runner{
		scheduler:  scheduler,
		sentinels:  skip,
		dispatcher: dispatcher,
		policy:     policy,
		pacer:      pacer,
		now:        time.Now,
	}
}

// WithClock overrides the clock.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Plan returns the next batch without pulling anything.
func (r *Runner) Plan(reg *domain.Registry, n int) []batch.Item {
	return r.scheduler.PickNext(reg, n, r.now())
}

// Run picks the next batch and pulls each item in order. The only error is
// context cancellation; results gathered so far are applied and returned.
func (r *Runner) Run(ctx context.Context, reg *domain.Registry, opts Options) (Report, error) {
	items := r.Plan(reg, opts.N)
	report := Report{Items: make([]ItemResult, 0, len(items))}

	for _, it := range items {
		if opts.DryRun {
			report.add(ItemResult{Key: it.DisplayKey(), Kind: it.Kind, Status: it.Health().Status, Planned: true})
			continue
		}

		res, err := r.runItem(ctx, reg, it, opts.Start, "")
		if err != nil {
			return report, err
		}
		report.add(res)
	}
	return report, nil
}

// runItem pulls one item and applies the outcome. A non-empty only limits a
// per-state source to that jurisdiction.
func (r *Runner) runItem(ctx context.Context, reg *domain.Registry, it batch.Item, start time.Time, only string) (ItemResult, error) {
	res := ItemResult{Key: it.DisplayKey(), Kind: it.Kind}
	h := it.Health()

	id := it.Key
	if it.Kind == batch.KindWQP {
		id = WQPFetcherID
	}
	f, ok := r.dispatcher.Lookup(id)
	if !ok {
		slog.Warn("No fetcher registered", "source", res.Key)
		res.NoFetcher = true
		res.Status = h.Status
		res.Err = ErrNoFetcher.Error()
		return res, nil
	}

	var reqs []Request
	switch {
	case it.Kind == batch.KindWQP:
		reqs = []Request{{SourceID: id, State: it.Key, FIPS: it.State.FIPS, Start: start}}
	case f.PerState() && only != "":
		reqs = []Request{{SourceID: id, State: only, FIPS: reg.WQPStates[only].FIPS, Start: start}}
	case f.PerState():
		for _, abbr := range reg.StateAbbrs() {
			reqs = append(reqs, Request{SourceID: id, State: abbr, FIPS: reg.WQPStates[abbr].FIPS, Start: start})
		}
	default:
		reqs = []Request{{SourceID: id, Start: start}}
	}

	var lastErr error
	for _, req := range reqs {
		if err := r.pacer.Wait(ctx, throttle.FamilyFetch); err != nil {
			return res, err
		}
		out, err := f.Fetch(ctx, req)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		res.Attempts++
		if err != nil {
			lastErr = err
			slog.Warn("Fetch failed", "source", res.Key, "state", req.State, "error", err)
			continue
		}
		res.Succeeded++
		res.Rows += out.Rows
		slog.Debug("Fetched", "source", res.Key, "state", req.State, "rows", out.Rows)
	}

	now := r.now()
	if res.Succeeded > 0 || len(reqs) == 0 {
		if err := r.policy.Apply(h, domain.StatusLive, now); err != nil {
			return res, fmt.Errorf("failed to record fetch for %s: %w", res.Key, err)
		}
		h.LastFetch = domain.TimePtr(now)
		h.LastSuccess = domain.TimePtr(now)
		res.Status = h.Status
		slog.Info("Fetch complete", "source", res.Key, "rows", res.Rows, "pulls", res.Attempts)
		return res, nil
	}

	status, msg := classify(lastErr)
	if err := r.policy.Apply(h, status, now); err != nil {
		return res, fmt.Errorf("failed to record fetch for %s: %w", res.Key, err)
	}
	res.Status = h.Status
	res.Err = msg
	return res, nil
}

// classify maps a failed pull to a liveness status. An unreadable 2xx body
// only degrades the record.
func classify(err error) (domain.Status, string) {
	var payloadErr *PayloadError
	if errors.As(err, &payloadErr) {
		return domain.StatusDegraded, fmt.Sprintf("HTTP %d: unreadable payload", payloadErr.StatusCode)
	}
	return probe.ClassifyError(err)
}
