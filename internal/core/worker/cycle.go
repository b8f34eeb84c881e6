// Package worker runs the serve-mode cycle: a fast health pass followed by
// one fetch batch, repeated on an interval.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pinwater/pinwatch/internal/infra/storage"
	"github.com/pinwater/pinwatch/internal/scheduling/check"
	"github.com/pinwater/pinwatch/internal/scheduling/fetch"
	"github.com/pinwater/pinwatch/internal/scheduling/health"
	"github.com/pinwater/pinwatch/internal/scheduling/metrics"
	"github.com/pinwater/pinwatch/internal/scheduling/throttle"
)

// Settings are the cycle parameters that may change between cycles.
type Settings struct {
	Interval  time.Duration
	BatchSize int
	Fast      bool
	Start     time.Time
	Pacing    throttle.Config
}

// Cycle drives check and fetch passes against the persisted registry.
type Cycle struct {
	store   storage.RegistryStore
	checker *check.Runner
	fetcher *fetch.Runner
	pacer   *throttle.Pacer
	monitor *health.Monitor
	now     func() time.Time

	mu       sync.Mutex
	settings Settings
	pacing   *throttle.Config // pending, applied at the start of the next cycle
}

// NewCycle creates a new Cycle worker.
func NewCycle(
	store storage.RegistryStore,
	checker *check.Runner,
	fetcher *fetch.Runner,
	pacer *throttle.Pacer,
	monitor *health.Monitor,
	settings Settings,
) *Cycle {
	return &Cycle{
		store:    store,
		checker:  checker,
		fetcher:  fetcher,
		pacer:    pacer,
		monitor:  monitor,
		now:      time.Now,
		settings: settings,
	}
}

// Settings returns the current settings.
func (c *Cycle) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Reload replaces the settings. Pacing changes take effect when the next
// cycle starts; a cycle in progress keeps its intervals.
func (c *Cycle) Reload(s Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.Pacing != c.settings.Pacing {
		pacing := s.Pacing
		c.pacing = &pacing
	}
	c.settings = s
}

// Start runs the cycle loop until ctx is cancelled. Cycles never overlap.
func (c *Cycle) Start(ctx context.Context) {
	interval := c.Settings().Interval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial cycle
	c.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runLogged(ctx)
			if next := c.Settings().Interval; next != interval {
				slog.Info("Cycle interval changed", "from", interval, "to", next)
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

func (c *Cycle) runLogged(ctx context.Context) {
	if err := c.RunOnce(ctx); err != nil && ctx.Err() == nil {
		slog.Error("Cycle failed", "error", err)
	}
}

// RunOnce loads the registry, runs a health pass and one fetch batch, then
// saves. Results applied before a cancellation are still saved.
func (c *Cycle) RunOnce(ctx context.Context) error {
	s := c.Settings()
	c.applyPacing()

	reg, err := c.store.Load(ctx)
	if err != nil {
		c.monitor.Publish(nil, err, c.now())
		return fmt.Errorf("failed to load registry: %w", err)
	}

	checkReport, runErr := c.checker.Run(ctx, reg, check.Options{Fast: s.Fast})
	var fetchReport fetch.Report
	if runErr == nil && s.BatchSize > 0 {
		fetchReport, runErr = c.fetcher.Run(ctx, reg, fetch.Options{N: s.BatchSize, Start: s.Start})
	}

	now := c.now()
	if err := c.store.Save(context.WithoutCancel(ctx), reg); err != nil {
		metrics.RegistrySaveErrors.Inc()
		c.monitor.Publish(nil, err, now)
		return err
	}
	c.monitor.Publish(reg, nil, now)
	metrics.RecordRegistry(reg, now)
	metrics.RecordRun("serve", now)

	sum := checkReport.Summary
	slog.Info("Cycle complete",
		"live", sum.Live,
		"degraded", sum.Degraded,
		"dead", sum.Dead,
		"skipped", sum.Skipped,
		"fetched", fetchReport.Fetched,
		"failed", fetchReport.Failed,
		"rows", fetchReport.Rows,
	)
	return runErr
}

func (c *Cycle) applyPacing() {
	c.mu.Lock()
	pending := c.pacing
	c.pacing = nil
	c.mu.Unlock()

	if pending == nil {
		return
	}
	for family, interval := range pending.Intervals() {
		c.pacer.Set(family, interval)
	}
	slog.Info("Pacing updated", "probe", pending.Probe, "wqp_probe", pending.WQPProbe, "fetch", pending.Fetch, "revive", pending.Revive)
}
