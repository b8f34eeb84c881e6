package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/pinwater/pinwatch/internal/infra/storage"
)

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()

	if _, err := m.Read(ctx); !errors.Is(err, storage.ErrRegistryNotFound) {
		t.Fatalf("empty read err = %v, want ErrRegistryNotFound", err)
	}

	doc := []byte(`{"meta":{}}`)
	if err := m.Write(ctx, doc); err != nil {
		t.Fatalf("Write: %v", err)
	}
	doc[0] = 'X'

	got, err := m.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != `{"meta":{}}` {
		t.Errorf("Read = %s, store must keep its own copy", got)
	}

	got[0] = 'Y'
	if string(m.Bytes()) != `{"meta":{}}` {
		t.Error("Read must return a copy")
	}
}

func TestNewMemoryStorageWith(t *testing.T) {
	m := NewMemoryStorageWith([]byte("abc"))
	got, err := m.Read(context.Background())
	if err != nil || string(got) != "abc" {
		t.Errorf("Read = %q, %v", got, err)
	}
}
