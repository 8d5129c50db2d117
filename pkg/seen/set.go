// Package seen tracks which inbound messages have already been answered.
package seen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

const (
	DefaultCeiling = 1000
	DefaultRetain  = 500
)

// Store persists message keys in insertion order.
type Store interface {
	// Load returns every stored key, oldest first.
	Load(ctx context.Context) ([]string, error)
	Add(ctx context.Context, key string) error
	// Prune keeps only the newest keep keys.
	Prune(ctx context.Context, keep int) error
	Close() error
}

// Set is the bounded seen-message set. Once the number of keys exceeds the
// ceiling, only the newest retain keys are kept.
type Set struct {
	mu      sync.RWMutex
	order   []string
	index   map[string]struct{}
	ceiling int
	retain  int
	store   Store
	log     *slog.Logger
}

// Options configures a Set.
type Options struct {
	Ceiling int
	Retain  int
	Store   Store
	Logger  *slog.Logger
}

// New builds a Set and restores any keys held by opts.Store.
func New(ctx context.Context, opts Options) (*Set, error) {
	ceiling := opts.Ceiling
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	retain := opts.Retain
	if retain <= 0 {
		retain = DefaultRetain
	}
	if retain > ceiling {
		return nil, fmt.Errorf("retain %d exceeds ceiling %d", retain, ceiling)
	}

	store := opts.Store
	if store == nil {
		store = NewMemoryStore()
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Set{
		index:   make(map[string]struct{}),
		ceiling: ceiling,
		retain:  retain,
		store:   store,
		log:     log.With("component", "seen"),
	}

	keys, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load seen keys: %w", err)
	}
	for _, key := range keys {
		if _, ok := s.index[key]; ok {
			continue
		}
		s.index[key] = struct{}{}
		s.order = append(s.order, key)
	}
	if len(s.order) > 0 {
		s.log.Info("Restored seen messages", "count", len(s.order))
	}
	if err := s.evictLocked(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// Seen reports whether key was recorded.
func (s *Set) Seen(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.index[key]
	return ok
}

// Record marks key as handled and applies eviction. Recording a known key is
// a no-op.
func (s *Set) Record(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("empty message key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[key]; ok {
		return nil
	}

	if err := s.store.Add(ctx, key); err != nil {
		return fmt.Errorf("persist seen key: %w", err)
	}
	s.index[key] = struct{}{}
	s.order = append(s.order, key)

	return s.evictLocked(ctx)
}

// Len is the number of keys currently held.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Close releases the backing store.
func (s *Set) Close() error {
	return s.store.Close()
}

func (s *Set) evictLocked(ctx context.Context) error {
	if len(s.order) <= s.ceiling {
		return nil
	}

	dropped := len(s.order) - s.retain
	for _, key := range s.order[:dropped] {
		delete(s.index, key)
	}
	kept := make([]string, s.retain)
	copy(kept, s.order[dropped:])
	s.order = kept

	s.log.Debug("Evicted seen messages", "dropped", dropped, "kept", len(kept))

	if err := s.store.Prune(ctx, s.retain); err != nil {
		return fmt.Errorf("prune seen keys: %w", err)
	}
	return nil
}
