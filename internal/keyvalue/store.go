// Package keyvalue provides the path-addressable JSON persistence surface
// used by the index cache and the vector store. Payloads live under a
// single root directory guarded by a file lock so only one process writes
// at a time.
package keyvalue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// lockFileName is the advisory lock file under the store root.
const lockFileName = ".lock"

// Store is a file-backed JSON key-value store rooted at a directory.
// Keys are relative paths.
type Store struct {
	root string
	lock *flock.Flock
}

// Open creates the root directory if needed and acquires the writer lock.
// It fails if another process holds the lock.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root %s: %w", root, err)
	}

	lock := flock.New(filepath.Join(root, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("store %s is locked by another process", root)
	}

	return &Store{root: root, lock: lock}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// ReadJSON reads and decodes the payload at key into v.
// A missing key returns an error satisfying os.IsNotExist / fs.ErrNotExist.
func (s *Store) ReadJSON(key string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.root, key))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// WriteJSON encodes v and writes it at key atomically (temp file + rename).
// Parent directories are created as needed.
func (s *Store) WriteJSON(key string, v any) error {
	path := filepath.Join(s.root, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", key, err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a payload exists at key.
func (s *Store) Exists(key string) bool {
	_, err := os.Stat(filepath.Join(s.root, key))
	return err == nil
}

// Remove deletes the payload at key. Removing a missing key is not an
// error.
func (s *Store) Remove(key string) error {
	err := os.Remove(filepath.Join(s.root, key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Mkdir creates a subdirectory under the root.
func (s *Store) Mkdir(key string) error {
	return os.MkdirAll(filepath.Join(s.root, key), 0o755)
}

// List returns the file names directly under a subdirectory. A missing
// directory yields an empty list.
func (s *Store) List(key string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Close releases the writer lock.
func (s *Store) Close() error {
	if s.lock != nil {
		return s.lock.Unlock()
	}
	return nil
}
