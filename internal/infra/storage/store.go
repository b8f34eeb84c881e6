package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pinwater/pinwatch/internal/core/domain"
)

// Store implements RegistryStore on top of a Backend.
type Store struct {
	backend Backend
	now     func() time.Time
}

// NewStore wraps backend with the registry codec.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend, now: time.Now}
}

// WithClock overrides the clock used to stamp meta.updated.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Load reads and decodes the registry.
func (s *Store) Load(ctx context.Context) (*domain.Registry, error) {
	data, err := s.backend.Read(ctx)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Save stamps meta.updated on reg and writes the whole document.
func (s *Store) Save(ctx context.Context, reg *domain.Registry) error {
	reg.Meta.Updated = domain.TimePtr(s.now())
	data, err := Encode(reg)
	if err != nil {
		return err
	}
	if err := s.backend.Write(ctx, data); err != nil {
		return fmt.Errorf("failed to save registry: %w", err)
	}
	return nil
}

// Exists reports whether a registry has been persisted. A corrupt document
// still counts as existing.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	_, err := s.backend.Read(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrRegistryNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Ping checks the backend connection. Backends without a check always pass.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.backend.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
