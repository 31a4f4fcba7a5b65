// Package prefs persists small operator preferences between sessions.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ViewMode controls how the product grid is presented.
type ViewMode string

const (
	ViewGrid ViewMode = "grid"
	ViewList ViewMode = "list"
)

// Store is a file-backed preference store. Writes go through a temp file
// rename so a crash never leaves a half-written file behind.
type Store struct {
	path string

	mu     sync.Mutex
	values map[string]string
}

// Open loads preferences from path, starting empty when the file is missing.
func Open(path string) (*Store, error) {
	s := &Store{path: path, values: map[string]string{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read preferences: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.values); err != nil {
			return nil, fmt.Errorf("parse preferences: %w", err)
		}
	}
	return s, nil
}

// Get returns the stored value for key, or fallback when unset.
func (s *Store) Get(key, fallback string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.values[key]; ok {
		return v
	}
	return fallback
}

// Set stores the value and flushes to disk.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.flushLocked()
}

// View returns the persisted view mode, defaulting to the grid.
func (s *Store) View() ViewMode {
	switch ViewMode(s.Get("viewMode", string(ViewGrid))) {
	case ViewList:
		return ViewList
	default:
		return ViewGrid
	}
}

// SetView persists the view mode.
func (s *Store) SetView(mode ViewMode) error {
	if mode != ViewGrid && mode != ViewList {
		return fmt.Errorf("prefs: unknown view mode %q", mode)
	}
	return s.Set("viewMode", string(mode))
}

func (s *Store) flushLocked() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".prefs-*")
	if err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := os.Rename(name, s.path); err != nil {
		os.Remove(name)
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}
