// Package sqlite stores the registry document in a single-row SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/pinwater/pinwatch/internal/infra/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Config holds SQLite connection configuration.
type Config struct {
	Path string `yaml:"path"`
}

// DB wraps the SQLite connection.
type DB struct {
	db *sqlx.DB
}

// NewDB opens the database and applies migrations.
func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	connStr := cfg.Path
	if cfg.Path == ":memory:" {
		connStr = "file::memory:?cache=shared"
	}

	db, err := sqlx.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; the whole document is replaced per save.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if cfg.Path != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate db: %w", err)
	}
	return nil
}

func (d *DB) Read(ctx context.Context) ([]byte, error) {
	var body string
	err := d.db.GetContext(ctx, &body, `SELECT body FROM registry_document WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrRegistryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}
	return []byte(body), nil
}

func (d *DB) Write(ctx context.Context, doc []byte) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO registry_document (id, body, updated_at)
		VALUES (1, ?, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		ON CONFLICT (id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		string(doc),
	)
	if err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}
	return nil
}

// Ping checks if the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) Close() error {
	return d.db.Close()
}
