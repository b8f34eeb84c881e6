package storage_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pinwater/pinwatch/internal/core/domain"
	"github.com/pinwater/pinwatch/internal/infra/storage"
	"github.com/pinwater/pinwatch/internal/infra/storage/memory"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func sampleRegistry() *domain.Registry {
	reg := domain.NewRegistry()
	failed := fixedNow.Add(-26 * time.Hour)
	next := fixedNow.Add(6 * time.Hour)
	reg.Sources = []*domain.Source{
		{
			ID:       "usgs-nwis",
			Type:     domain.SourceTypeFederal,
			Name:     "USGS NWIS",
			URL:      "https://waterservices.usgs.gov/nwis/iv/",
			Priority: 1,
			Health: domain.Health{
				Status:         domain.StatusLive,
				LastChecked:    domain.TimePtr(fixedNow),
				LastFetch:      domain.TimePtr(fixedNow.Add(-48 * time.Hour)),
				LastSuccess:    domain.TimePtr(fixedNow.Add(-48 * time.Hour)),
				BackoffMinutes: 5,
			},
		},
		{
			ID:       "ca-ceden",
			Type:     domain.SourceTypeState,
			URL:      "https://ceden.example.org/api",
			Priority: 2,
			AltURLs:  []string{"https://mirror.example.org/ceden"},
			Health: domain.Health{
				Status:         domain.StatusDead,
				ErrorCount:     5,
				FirstFailure:   &failed,
				LastChecked:    domain.TimePtr(fixedNow),
				BackoffMinutes: 360,
				NextCheckAfter: &next,
			},
		},
		{
			ID:     "private-lab",
			Type:   domain.SourceTypeSupplemental,
			URL:    "https://lab.example.org",
			Health: domain.Health{Status: domain.StatusGated},
		},
	}
	reg.WQPStates["MD"] = &domain.WQPState{FIPS: "24", Name: "Maryland", Priority: 1, Health: domain.Health{Status: domain.StatusLive}}
	reg.WQPStates["VA"] = &domain.WQPState{FIPS: "51", Name: "Virginia", Priority: 2, Health: domain.Health{Status: domain.StatusDegraded, ErrorCount: 1, FirstFailure: &failed}}
	return reg
}

func newStore(backend storage.Backend) *storage.Store {
	return storage.NewStore(backend).WithClock(func() time.Time { return fixedNow })
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewMemoryStorage()
	store := newStore(backend)

	if err := store.Save(ctx, sampleRegistry()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	first := backend.Bytes()

	reg, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := store.Save(ctx, reg); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	if !bytes.Equal(first, backend.Bytes()) {
		t.Errorf("round trip changed document:\n%s\n---\n%s", first, backend.Bytes())
	}
}

func TestStore_SaveStampsUpdated(t *testing.T) {
	ctx := context.Background()
	store := newStore(memory.NewMemoryStorage())
	reg := sampleRegistry()

	if err := store.Save(ctx, reg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if reg.Meta.Updated == nil || !reg.Meta.Updated.Equal(fixedNow) {
		t.Errorf("meta.updated = %v, want %v", reg.Meta.Updated, fixedNow)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Meta.Updated == nil || !loaded.Meta.Updated.Equal(fixedNow) {
		t.Errorf("loaded meta.updated = %v", loaded.Meta.Updated)
	}
}

func TestStore_TimestampsUseZSuffix(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewMemoryStorage()
	store := newStore(backend)

	if err := store.Save(ctx, sampleRegistry()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !bytes.Contains(backend.Bytes(), []byte(`"updated": "2025-03-14T09:26:53Z"`)) {
		t.Errorf("expected UTC Z timestamp in document:\n%s", backend.Bytes())
	}
	// Absent timestamps are omitted, never written as sentinels.
	if bytes.Contains(backend.Bytes(), []byte("0001-01-01")) {
		t.Error("zero time leaked into document")
	}
}

func TestStore_NotFound(t *testing.T) {
	store := newStore(memory.NewMemoryStorage())

	if _, err := store.Load(context.Background()); !errors.Is(err, storage.ErrRegistryNotFound) {
		t.Errorf("expected ErrRegistryNotFound, got %v", err)
	}
	exists, err := store.Exists(context.Background())
	if err != nil || exists {
		t.Errorf("Exists = (%v, %v), want (false, nil)", exists, err)
	}
}

func TestStore_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", "{not json"},
		{"truncated", `{"meta": {}, "sources": [`},
		{"wrong shape", `{"sources": {"a": 1}}`},
		{"unknown status", `{"sources": [{"id": "a", "status": "sleepy"}]}`},
		{"duplicate id", `{"sources": [{"id": "a"}, {"id": "a"}]}`},
		{"null source", `{"sources": [null]}`},
		{"bad timestamp", `{"sources": [{"id": "a", "last_fetch": "yesterday"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := memory.NewMemoryStorageWith([]byte(tt.doc))
			store := newStore(backend)

			_, err := store.Load(context.Background())
			if !errors.Is(err, storage.ErrCorruptRegistry) {
				t.Fatalf("expected ErrCorruptRegistry, got %v", err)
			}
			if string(backend.Bytes()) != tt.doc {
				t.Error("corrupt document must not be rewritten")
			}
			exists, err := store.Exists(context.Background())
			if err != nil || !exists {
				t.Errorf("Exists = (%v, %v), want (true, nil)", exists, err)
			}
		})
	}
}

func TestDecode_Defaults(t *testing.T) {
	reg, err := storage.Decode([]byte(`{"sources": [{"id": "a", "url": "https://a", "last_fetch": null}]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if reg.WQPStates == nil {
		t.Error("wqp_states should be initialized")
	}
	src := reg.FindSource("a")
	if src == nil {
		t.Fatal("source a missing")
	}
	if src.Status != domain.StatusLive {
		t.Errorf("missing status should default to live, got %q", src.Status)
	}
	if src.LastFetch != nil {
		t.Error("null last_fetch should decode as absent")
	}
}

func TestDecode_NormalizesOffsetsToUTC(t *testing.T) {
	doc := `{"meta": {"updated": "2025-01-01T05:00:00-05:00"}, "sources": [{"id": "a", "url": "https://a", "last_success": "2025-01-01T02:00:00+02:00"}]}`
	reg, err := storage.Decode([]byte(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	data, err := storage.Encode(reg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Contains(data, []byte(`"last_success": "2025-01-01T00:00:00Z"`)) {
		t.Errorf("last_success not rewritten in UTC:\n%s", data)
	}
	if !bytes.Contains(data, []byte(`"updated": "2025-01-01T10:00:00Z"`)) {
		t.Errorf("meta.updated not rewritten in UTC:\n%s", data)
	}
	if bytes.Contains(data, []byte("+02:00")) || bytes.Contains(data, []byte("-05:00")) {
		t.Errorf("offset survived round trip:\n%s", data)
	}
}

func TestStore_KeepsUnknownFields(t *testing.T) {
	doc := `{
  "meta": {"updated": "2025-01-01T00:00:00Z"},
  "notes": "hand edited",
  "sources": [{"id": "a", "url": "https://a", "status": "live", "owner": {"team": "pin"}, "license": "CC0"}],
  "wqp_states": {"MD": {"fips": "24", "name": "Maryland", "status": "live", "contact": "mde@example.org"}}
}`
	ctx := context.Background()
	backend := memory.NewMemoryStorageWith([]byte(doc))
	store := newStore(backend)

	reg, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	reg.FindSource("a").ErrorCount = 2
	if err := store.Save(ctx, reg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	saved := backend.Bytes()
	for _, want := range []string{`"notes": "hand edited"`, `"team": "pin"`, `"license": "CC0"`, `"contact": "mde@example.org"`, `"error_count": 2`} {
		if !bytes.Contains(saved, []byte(want)) {
			t.Errorf("saved document lost %s:\n%s", want, saved)
		}
	}

	again, err := storage.Decode(saved)
	if err != nil {
		t.Fatalf("Decode saved: %v", err)
	}
	if string(again.FindSource("a").Extra["license"]) != `"CC0"` {
		t.Errorf("extra = %v", again.FindSource("a").Extra)
	}
}

// pingBackend is a memory backend with a connection check.
type pingBackend struct {
	*memory.MemoryStorage
	err error
}

func (b pingBackend) Ping(ctx context.Context) error { return b.err }

func TestStore_Ping(t *testing.T) {
	down := errors.New("connection refused")
	tests := []struct {
		name    string
		backend storage.Backend
		want    error
	}{
		{"backend without check", memory.NewMemoryStorage(), nil},
		{"reachable", pingBackend{MemoryStorage: memory.NewMemoryStorage()}, nil},
		{"unreachable", pingBackend{MemoryStorage: memory.NewMemoryStorage(), err: down}, down},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := newStore(tt.backend).Ping(context.Background()); !errors.Is(err, tt.want) {
				t.Errorf("Ping = %v, want %v", err, tt.want)
			}
		})
	}
}
