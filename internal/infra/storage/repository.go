package storage

import (
	"context"
	"errors"

	"github.com/pinwater/pinwatch/internal/core/domain"
)

var (
	// ErrRegistryNotFound is returned when no registry has been persisted yet.
	ErrRegistryNotFound = errors.New("registry not found")

	// ErrCorruptRegistry is returned when the persisted registry cannot be decoded.
	ErrCorruptRegistry = errors.New("corrupt registry")
)

// RegistryStore loads and saves the whole registry document.
type RegistryStore interface {
	// Load reads the persisted registry.
	Load(ctx context.Context) (*domain.Registry, error)

	// Save stamps meta.updated and replaces the persisted registry atomically.
	Save(ctx context.Context, reg *domain.Registry) error
}

// Backend persists the encoded registry document as an opaque blob.
type Backend interface {
	// Read returns the stored document, or ErrRegistryNotFound.
	Read(ctx context.Context) ([]byte, error)

	// Write replaces the stored document. Readers never observe a partial write.
	Write(ctx context.Context, doc []byte) error

	// Close releases backend resources.
	Close() error
}

// Pinger is implemented by backends that can check their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}
