package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pinwater/pinwatch/internal/infra/storage"
)

func TestDB_WriteRead(t *testing.T) {
	ctx := context.Background()
	db, err := NewDB(ctx, Config{Path: filepath.Join(t.TempDir(), "registry.db")})
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer db.Close()

	if _, err := db.Read(ctx); !errors.Is(err, storage.ErrRegistryNotFound) {
		t.Fatalf("expected ErrRegistryNotFound, got %v", err)
	}

	for _, doc := range []string{`{"sources": []}`, `{"sources": [{"id": "a"}]}`} {
		if err := db.Write(ctx, []byte(doc)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		got, err := db.Read(ctx)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if string(got) != doc {
			t.Errorf("Read = %s, want %s", got, doc)
		}
	}

	var rows int
	if err := db.db.Get(&rows, `SELECT COUNT(*) FROM registry_document`); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 1 {
		t.Errorf("expected a single document row, got %d", rows)
	}
}

func TestNewDB_RequiresPath(t *testing.T) {
	if _, err := NewDB(context.Background(), Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestDB_Ping(t *testing.T) {
	ctx := context.Background()
	db, err := NewDB(ctx, Config{Path: filepath.Join(t.TempDir(), "registry.db")})
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	if err := db.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
	_ = db.Close()
	if err := db.Ping(ctx); err == nil {
		t.Error("expected error after Close")
	}
}
