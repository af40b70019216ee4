package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"bizreview/internal/core"
	"bizreview/internal/fixedcosts"
	"bizreview/internal/labour"
)

// FileStore keeps one pretty-printed JSON document per file. Writes go
// to a temporary file in the same directory and are renamed into place.
type FileStore[T any] struct {
	mu   sync.Mutex
	path string
}

func NewFileStore[T any](dir, name string) *FileStore[T] {
	return &FileStore[T]{path: filepath.Join(dir, name+".json")}
}

func (s *FileStore[T]) Path() string { return s.path }

func (s *FileStore[T]) Load(ctx context.Context) (T, error) {
	var out T
	if err := ctx.Err(); err != nil {
		return out, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := readJSON(s.path, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func (s *FileStore[T]) Save(ctx context.Context, value T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path, value)
}

// FileSnapshotStore writes one file per month under dir.
type FileSnapshotStore struct {
	mu  sync.Mutex
	dir string
}

func NewFileSnapshotStore(dir string) *FileSnapshotStore {
	return &FileSnapshotStore{dir: dir}
}

func (s *FileSnapshotStore) path(month core.MonthKey) string {
	return filepath.Join(s.dir, month.String()+".json")
}

func (s *FileSnapshotStore) LoadSnapshot(ctx context.Context, month core.MonthKey) (core.Groups, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var groups core.Groups
	found, err := readJSON(s.path(month), &groups)
	if err != nil {
		return nil, false, fmt.Errorf("snapshot %s: %w", month, err)
	}
	return groups, found, nil
}

func (s *FileSnapshotStore) SaveSnapshot(ctx context.Context, month core.MonthKey, groups core.Groups) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path(month), groups)
}

func (s *FileSnapshotStore) ListSnapshots(ctx context.Context) ([]core.MonthKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []core.MonthKey{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		key := strings.TrimSuffix(name, ".json")
		if _, err := core.ParseMonthKey(key); err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return parseMonthKeys(keys)
}

// NewFileDocuments lays the documents out under dir, snapshots in dir/snapshots.
func NewFileDocuments(dir string) Documents {
	return Documents{
		Overrides:     NewFileStore[core.OverrideTable](dir, DocOverrides),
		Distributions: NewFileStore[core.DistributionTable](dir, DocDistributions),
		Labour:        NewFileStore[labour.Allocations](dir, DocLabour),
		FixedCosts:    NewFileStore[fixedcosts.Document](dir, DocFixedCosts),
		Snapshots:     NewFileSnapshotStore(filepath.Join(dir, "snapshots")),
	}
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
