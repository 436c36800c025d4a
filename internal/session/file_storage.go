package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStorage keeps the area in a single JSON object on disk.  It is meant
// for one CLI process at a time and has no change feed.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

var (
	_ Storage = (*FileStorage)(nil)
	_ Batcher = (*FileStorage)(nil)
)

// NewFileStorage returns storage persisted at path.  The file is created on
// first write with 0600 permissions.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (f *FileStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := items[key]
	return v, ok, nil
}

func (f *FileStorage) SetItem(ctx context.Context, key, value string) error {
	return f.Apply(ctx, []Op{{Key: key, Value: value}})
}

func (f *FileStorage) RemoveItem(ctx context.Context, key string) error {
	return f.Apply(ctx, []Op{{Key: key, Remove: true}})
}

// Apply rewrites the file once for the whole batch via rename, so a reader
// sees either the old or the new object.
func (f *FileStorage) Apply(_ context.Context, ops []Op) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	items, err := f.load()
	if err != nil {
		return err
	}
	for _, op := range ops {
		if op.Remove {
			delete(items, op.Key)
		} else {
			items[op.Key] = op.Value
		}
	}
	return f.save(items)
}

func (f *FileStorage) load() (map[string]string, error) {
	items := map[string]string{}
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return items, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read storage file: %w", err)
	}
	if len(b) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(b, &items); err != nil {
		// a corrupt file is an empty area; the next write replaces it
		return map[string]string{}, nil
	}
	return items, nil
}

func (f *FileStorage) save(items map[string]string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir storage dir: %w", err)
	}
	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal storage: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".storage-*")
	if err != nil {
		return fmt.Errorf("create temp storage: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp storage: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp storage: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp storage: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("rename storage: %w", err)
	}
	return nil
}
