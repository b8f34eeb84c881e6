package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pinwater/pinwatch/internal/core/domain"
	"github.com/pinwater/pinwatch/internal/infra/probe"
	"github.com/pinwater/pinwatch/internal/infra/storage"
	"github.com/pinwater/pinwatch/internal/infra/storage/memory"
	"github.com/pinwater/pinwatch/internal/scheduling/backoff"
	"github.com/pinwater/pinwatch/internal/scheduling/batch"
	"github.com/pinwater/pinwatch/internal/scheduling/check"
	"github.com/pinwater/pinwatch/internal/scheduling/fetch"
	"github.com/pinwater/pinwatch/internal/scheduling/health"
	"github.com/pinwater/pinwatch/internal/scheduling/throttle"
)

type liveProber struct {
	modes []probe.Mode
}

func (p *liveProber) Probe(ctx context.Context, url string, mode probe.Mode) probe.Outcome {
	p.modes = append(p.modes, mode)
	return probe.Outcome{Status: domain.StatusLive, StatusCode: 200, Latency: time.Millisecond}
}

type countingFetcher struct {
	calls int
}

func (f *countingFetcher) PerState() bool { return false }

func (f *countingFetcher) Fetch(ctx context.Context, req fetch.Request) (fetch.Result, error) {
	f.calls++
	return fetch.Result{Rows: 12}, nil
}

type failingStore struct {
	loadErr error
}

func (s failingStore) Load(ctx context.Context) (*domain.Registry, error) {
	return nil, s.loadErr
}

func (s failingStore) Save(ctx context.Context, reg *domain.Registry) error {
	return errors.New("unexpected save")
}

func seededStore(t *testing.T) *storage.Store {
	t.Helper()
	reg := domain.NewRegistry()
	reg.Sources = []*domain.Source{
		{ID: "usgs-nwis", URL: "https://nwis.example.org", Health: domain.Health{Status: domain.StatusLive}},
	}
	reg.WQPStates["MD"] = &domain.WQPState{FIPS: "24", Health: domain.Health{Status: domain.StatusLive}}

	store := storage.NewStore(memory.NewMemoryStorage())
	if err := store.Save(context.Background(), reg); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store
}

func newCycle(store storage.RegistryStore, prober *liveProber, fetcher fetch.Fetcher, monitor *health.Monitor, s Settings) *Cycle {
	pacer := throttle.Unpaced()
	checker := check.NewRunner(prober, backoff.Default(), pacer, "")
	fetchRunner := fetch.NewRunner(batch.DefaultSentinels, fetch.Table{"usgs-nwis": fetcher}, backoff.Default(), pacer)
	return NewCycle(store, checker, fetchRunner, pacer, monitor, s)
}

func TestRunOnce(t *testing.T) {
	store := seededStore(t)
	prober := &liveProber{}
	fetcher := &countingFetcher{}
	monitor := health.NewMonitor()

	c := newCycle(store, prober, fetcher, monitor, Settings{Interval: time.Minute, BatchSize: 1, Fast: true})
	if err := c.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(prober.modes) != 2 {
		t.Fatalf("probes = %d, want 2", len(prober.modes))
	}
	for _, m := range prober.modes {
		if m != probe.ModeFast {
			t.Errorf("mode = %s, want fast", m)
		}
	}
	if fetcher.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", fetcher.calls)
	}

	reg, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	src := reg.FindSource("usgs-nwis")
	if src.LastChecked == nil || src.LastFetch == nil || src.LastSuccess == nil {
		t.Errorf("saved health = %+v", src.Health)
	}

	snap := monitor.Snapshot()
	if snap == nil || snap.Status != health.StatusOK || snap.Sequence != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(snap.Records) != 2 {
		t.Errorf("records = %d, want 2", len(snap.Records))
	}
}

func TestRunOnce_ZeroBatchSkipsFetch(t *testing.T) {
	fetcher := &countingFetcher{}
	c := newCycle(seededStore(t), &liveProber{}, fetcher, health.NewMonitor(), Settings{Interval: time.Minute})
	if err := c.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if fetcher.calls != 0 {
		t.Errorf("fetch calls = %d, want 0", fetcher.calls)
	}
}

func TestRunOnce_LoadFailure(t *testing.T) {
	monitor := health.NewMonitor()
	c := newCycle(failingStore{loadErr: storage.ErrCorruptRegistry}, &liveProber{}, &countingFetcher{}, monitor, Settings{Interval: time.Minute})

	err := c.RunOnce(context.Background())
	if !errors.Is(err, storage.ErrCorruptRegistry) {
		t.Fatalf("err = %v, want ErrCorruptRegistry", err)
	}
	snap := monitor.Snapshot()
	if snap == nil || snap.Status != health.StatusUnavailable || snap.Error == "" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestReload(t *testing.T) {
	c := newCycle(seededStore(t), &liveProber{}, &countingFetcher{}, health.NewMonitor(), Settings{Interval: time.Minute, BatchSize: 1})

	next := Settings{Interval: time.Hour, BatchSize: 4, Pacing: throttle.Config{Fetch: time.Second}}
	c.Reload(next)

	if got := c.Settings(); got != next {
		t.Errorf("settings = %+v, want %+v", got, next)
	}
	if c.pacing == nil || c.pacing.Fetch != time.Second {
		t.Fatalf("pending pacing = %+v", c.pacing)
	}

	c.applyPacing()
	if c.pacing != nil {
		t.Error("pending pacing should be cleared once applied")
	}
}
