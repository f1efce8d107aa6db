package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store answers existence questions about concrete artifact paths.
//
// Implemented by DirStore (production, filesystem backed) and MemStore
// (tests). Resolution and execution take a Store rather than touching the
// filesystem directly so both stay testable without real directories.
type Store interface {
	// Exists reports whether path is present. For output artifacts the
	// path must be a directory; a plain file at an output path does not
	// satisfy the artifact contract.
	Exists(path string) (bool, error)

	// SourceExists reports whether a source input is present. Source
	// inputs are ordinary paths the pipeline consumes but never
	// produces (weight files, datasets); a plain file satisfies them,
	// so the directory requirement of Exists does not apply.
	SourceExists(path string) (bool, error)

	// Remove deletes the artifact at path, if any. Used by force-rebuild
	// so a failing re-run cannot leave a stale "satisfied" artifact.
	Remove(path string) error
}

// DirStore is the filesystem-backed Store. Paths are resolved relative
// to Root, the invocation root.
type DirStore struct {
	Root string
}

// Exists implements Store.
func (s *DirStore) Exists(path string) (bool, error) {
	info, err := os.Stat(s.resolve(path))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.IsDir(), nil
}

// SourceExists implements Store. Any stat-able path counts.
func (s *DirStore) SourceExists(path string) (bool, error) {
	_, err := os.Stat(s.resolve(path))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return true, nil
}

// Remove implements Store.
func (s *DirStore) Remove(path string) error {
	if err := os.RemoveAll(s.resolve(path)); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func (s *DirStore) resolve(path string) string {
	if s.Root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.Root, path)
}

// MemStore is an in-memory Store for tests.
//
// Thread-safe: executor tests exercise it from concurrent workers.
type MemStore struct {
	mu    sync.Mutex
	paths map[string]struct{} // directory artifacts
	files map[string]struct{} // plain-file sources
}

// NewMemStore creates a MemStore pre-populated with the given paths as
// directory artifacts.
func NewMemStore(paths ...string) *MemStore {
	s := &MemStore{
		paths: make(map[string]struct{}, len(paths)),
		files: make(map[string]struct{}),
	}
	for _, p := range paths {
		s.paths[p] = struct{}{}
	}
	return s
}

// Exists implements Store.
func (s *MemStore) Exists(path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.paths[path]
	return ok, nil
}

// SourceExists implements Store. Files and directories both count.
func (s *MemStore) SourceExists(path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.paths[path]; ok {
		return true, nil
	}
	_, ok := s.files[path]
	return ok, nil
}

// Remove implements Store.
func (s *MemStore) Remove(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.paths, path)
	delete(s.files, path)
	return nil
}

// Put records path as present. Test hook standing in for a command that
// produced its artifact.
func (s *MemStore) Put(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths[path] = struct{}{}
}

// PutFile records path as a plain file: visible to SourceExists but not
// to the directory-artifact check.
func (s *MemStore) PutFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = struct{}{}
}
