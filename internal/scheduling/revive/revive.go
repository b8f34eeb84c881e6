// Package revive tries alternate endpoints for dead records.
package revive

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

// Prober checks one URL.
type Prober interface {
	Probe(ctx context.Context, url string, mode probe.Mode) probe.Outcome
}

// Result lists what happened to each dead record.
type Result struct {
	Promoted     []string
	NonRevivable []string
	StillDead    []string
}

// Count returns the number of promoted records.
func (r Result) Count() int {
	return len(r.Promoted)
}

// Reviver promotes dead records whose alternate answers.
type Reviver struct {
	prober      Prober
	policy      backoff.Policy
	pacer       *throttle.Pacer
	wqpTemplate string
	now         func() time.Time
}

// New creates a Reviver. An empty wqpTemplate selects probe.DefaultWQPTemplate.
func New(prober Prober, policy backoff.Policy, pacer *throttle.Pacer, wqpTemplate string) *Reviver {
	return &Reviver{
		prober:      prober,
		policy:      policy,
		pacer:       pacer,
		wqpTemplate: wqpTemplate,
		now:         time.Now,
	}
}

// WithClock overrides the clock.
func (r *Reviver) WithClock(now func() time.Time) *Reviver {
	r.now = now
	return r
}

// Run walks dead sources, then dead jurisdictions. Failed attempts leave the
// record untouched. The only error is context cancellation; the partial
// result is still returned.
func (r *Reviver) Run(ctx context.Context, reg *domain.Registry) (Result, error) {
	res := Result{Promoted: []string{}, NonRevivable: []string{}, StillDead: []string{}}

	for _, src := range reg.Sources {
		if src.Status != domain.StatusDead {
			continue
		}
		if len(src.AltURLs) == 0 {
			slog.Info("No alternate URLs", "source", src.ID)
			res.NonRevivable = append(res.NonRevivable, src.ID)
			continue
		}

		revived := false
		for _, alt := range src.AltURLs {
			ok, err := r.try(ctx, src.ID, alt)
			if err != nil {
				return res, err
			}
			if !ok {
				continue
			}
			if err := r.policy.Apply(&src.Health, domain.StatusLive, r.now()); err != nil {
				return res, err
			}
			src.URL = alt
			slog.Info("Source revived via alternate URL", "source", src.ID, "url", alt)
			res.Promoted = append(res.Promoted, src.ID)
			metrics.RevivalsTotal.WithLabelValues("source").Inc()
			revived = true
			break
		}
		if !revived {
			res.StillDead = append(res.StillDead, src.ID)
		}
	}

	for _, abbr := range reg.StateAbbrs() {
		st := reg.WQPStates[abbr]
		if st.Status != domain.StatusDead {
			continue
		}
		key := domain.WQPKey(abbr)
		ok, err := r.try(ctx, key, r.WQPURL(st.FIPS))
		if err != nil {
			return res, err
		}
		if !ok {
			res.StillDead = append(res.StillDead, key)
			continue
		}
		if err := r.policy.Apply(&st.Health, domain.StatusLive, r.now()); err != nil {
			return res, err
		}
		slog.Info("Jurisdiction revived", "source", key)
		res.Promoted = append(res.Promoted, key)
		metrics.RevivalsTotal.WithLabelValues("wqp").Inc()
	}

	return res, nil
}

// WQPURL renders the minimal jurisdiction query.
func (r *Reviver) WQPURL(fips string) string {
	return probe.WQPURL(r.wqpTemplate, fips)
}

func (r *Reviver) try(ctx context.Context, key, url string) (bool, error) {
	if err := r.pacer.Wait(ctx, throttle.FamilyRevive); err != nil {
		return false, err
	}
	slog.Debug("Trying alternate", "source", key, "url", url)

	out := r.prober.Probe(ctx, url, probe.ModeFull)
	if out.Status == domain.StatusLive {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	slog.Info("Still dead", "source", key, "url", url, "error", out.Err)
	return false, nil
}
