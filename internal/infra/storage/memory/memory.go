package memory

import (
	"context"
	"sync"

	"github.com/pinwater/pinwatch/internal/infra/storage"
)

// MemoryStorage keeps the encoded registry in process memory.
type MemoryStorage struct {
	mu  sync.RWMutex
	doc []byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// NewMemoryStorageWith returns a store pre-loaded with doc.
func NewMemoryStorageWith(doc []byte) *MemoryStorage {
	m := &MemoryStorage{}
	m.doc = append([]byte(nil), doc...)
	return m
}

func (m *MemoryStorage) Read(ctx context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.doc == nil {
		return nil, storage.ErrRegistryNotFound
	}
	return append([]byte(nil), m.doc...), nil
}

func (m *MemoryStorage) Write(ctx context.Context, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = append([]byte(nil), doc...)
	return nil
}

// Bytes returns the last written document.
func (m *MemoryStorage) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.doc...)
}

func (m *MemoryStorage) Close() error {
	return nil
}
