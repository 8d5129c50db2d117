package seen

import (
	"context"
	"sync"
)

// MemoryStore keeps keys for the life of the process only.
type MemoryStore struct {
	mu   sync.Mutex
	keys []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out, nil
}

func (m *MemoryStore) Add(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.keys = append(m.keys, key)
	return nil
}

func (m *MemoryStore) Prune(_ context.Context, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if keep < 0 {
		keep = 0
	}
	if len(m.keys) > keep {
		m.keys = append([]string(nil), m.keys[len(m.keys)-keep:]...)
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }
