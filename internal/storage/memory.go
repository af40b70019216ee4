package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"bizreview/internal/core"
	"bizreview/internal/fixedcosts"
	"bizreview/internal/labour"
)

// MemoryStore keeps the encoded document, so loaded values never alias
// the stored one.
type MemoryStore[T any] struct {
	mu   sync.RWMutex
	data []byte
}

func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{}
}

func (s *MemoryStore[T]) Load(ctx context.Context) (T, error) {
	var out T
	if err := ctx.Err(); err != nil {
		return out, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return out, nil
	}
	if err := json.Unmarshal(s.data, &out); err != nil {
		return out, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

func (s *MemoryStore[T]) Save(ctx context.Context, value T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

type MemorySnapshotStore struct {
	mu    sync.RWMutex
	byKey map[string][]byte
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{byKey: make(map[string][]byte)}
}

func (s *MemorySnapshotStore) LoadSnapshot(ctx context.Context, month core.MonthKey) (core.Groups, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	data, ok := s.byKey[month.String()]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	var groups core.Groups
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, false, fmt.Errorf("decode snapshot %s: %w", month, err)
	}
	return groups, true, nil
}

func (s *MemorySnapshotStore) SaveSnapshot(ctx context.Context, month core.MonthKey, groups core.Groups) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(groups)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", month, err)
	}
	s.mu.Lock()
	s.byKey[month.String()] = data
	s.mu.Unlock()
	return nil
}

func (s *MemorySnapshotStore) ListSnapshots(ctx context.Context) ([]core.MonthKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	keys := make([]string, 0, len(s.byKey))
	for k := range s.byKey {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	return parseMonthKeys(keys)
}

// NewMemoryDocuments returns an in-process backend, used by tests and the
// memory data backend.
func NewMemoryDocuments() Documents {
	return Documents{
		Overrides:     NewMemoryStore[core.OverrideTable](),
		Distributions: NewMemoryStore[core.DistributionTable](),
		Labour:        NewMemoryStore[labour.Allocations](),
		FixedCosts:    NewMemoryStore[fixedcosts.Document](),
		Snapshots:     NewMemorySnapshotStore(),
	}
}

func parseMonthKeys(keys []string) ([]core.MonthKey, error) {
	sort.Strings(keys)
	out := make([]core.MonthKey, 0, len(keys))
	for _, k := range keys {
		m, err := core.ParseMonthKey(k)
		if err != nil {
			return nil, fmt.Errorf("snapshot key: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}
