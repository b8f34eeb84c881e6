package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/pinwater/pinwatch/internal/core/config"
	"github.com/pinwater/pinwatch/internal/core/domain"
	"github.com/pinwater/pinwatch/internal/infra/storage"
	"github.com/pinwater/pinwatch/internal/infra/storage/file"
	"github.com/pinwater/pinwatch/internal/infra/storage/memory"
	"github.com/pinwater/pinwatch/internal/infra/storage/objectstore"
	"github.com/pinwater/pinwatch/internal/infra/storage/postgres"
	redisstore "github.com/pinwater/pinwatch/internal/infra/storage/redis"
	"github.com/pinwater/pinwatch/internal/infra/storage/sqlite"
	"github.com/pinwater/pinwatch/internal/scheduling/metrics"
)

// openBackend connects to the backend selected in cfg.
func openBackend(ctx context.Context, cfg config.StoreConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return file.NewFileStorage(cfg.File)
	case config.BackendMemory:
		return memory.NewMemoryStorage(), nil
	case config.BackendSQLite:
		return sqlite.NewDB(ctx, cfg.SQLite)
	case config.BackendPostgres:
		return postgres.NewDB(ctx, cfg.Postgres)
	case config.BackendRedis:
		return redisstore.NewClient(cfg.Redis)
	case config.BackendObjectStore:
		return objectstore.NewClient(ctx, cfg.ObjectStore)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// mustOpenStore opens the configured store or exits.
func mustOpenStore(ctx context.Context) *storage.Store {
	backend, err := openBackend(ctx, cfg.Store)
	if err != nil {
		slog.Error("Failed to open registry store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	slog.Debug("Registry store opened", "backend", cfg.Store.Backend)
	return storage.NewStore(backend)
}

// mustLoad loads the registry or exits. A corrupt registry is never saved over.
func mustLoad(ctx context.Context, store *storage.Store) *domain.Registry {
	reg, err := store.Load(ctx)
	switch {
	case err == nil:
		return reg
	case errors.Is(err, storage.ErrRegistryNotFound):
		slog.Error("No registry found, run `pinwatch seed` first", "backend", cfg.Store.Backend)
	case errors.Is(err, storage.ErrCorruptRegistry):
		slog.Error("Registry is corrupt, refusing to continue", "error", err)
	default:
		slog.Error("Failed to load registry", "error", err)
	}
	_ = store.Close()
	os.Exit(1)
	return nil
}

// mustSave persists reg or exits.
func mustSave(ctx context.Context, store *storage.Store, reg *domain.Registry) {
	if err := store.Save(context.WithoutCancel(ctx), reg); err != nil {
		metrics.RegistrySaveErrors.Inc()
		slog.Error("Failed to save registry", "error", err)
		_ = store.Close()
		os.Exit(1)
	}
	slog.Debug("Registry saved", "updated", reg.Meta.Updated)
}

// finish records run metrics and pushes them when a gateway is configured.
func finish(ctx context.Context, command string, reg *domain.Registry) {
	now := timeNow()
	if reg != nil {
		metrics.RecordRegistry(reg, now)
	}
	metrics.RecordRun(command, now)
	instance, _ := os.Hostname()
	if err := metrics.Push(context.WithoutCancel(ctx), cfg.Metrics, instance); err != nil {
		slog.Warn("Failed to push metrics", "error", err)
	}
}
