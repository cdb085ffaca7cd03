package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store persists an EngineState as a single human-readable JSON document.
// Saves are full-file atomic rewrites, intentionally synchronous so the
// on-disk record never diverges from the in-memory record across a crash
// between two in-memory mutations.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the stored state for maker. If the file is missing, or the
// stored schema version or maker identity does not match, a fresh empty
// state is fabricated and persisted; a mismatch is "different logical bot
// instance", not corruption. Unparseable files and I/O failures are
// returned as errors for operator attention.
func (s *Store) Load(maker string) (*EngineState, bool, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s.fresh(maker)
		}
		return nil, false, fmt.Errorf("read state %s: %w", s.path, err)
	}

	var st EngineState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, false, fmt.Errorf("parse state %s: %w", s.path, err)
	}
	if st.SchemaVersion != SchemaVersion || !strings.EqualFold(st.Maker, maker) {
		return s.fresh(maker)
	}
	return &st, false, nil
}

func (s *Store) fresh(maker string) (*EngineState, bool, error) {
	st := NewEngineState(maker)
	if err := s.Save(st); err != nil {
		return nil, false, err
	}
	return st, true, nil
}

// Save rewrites the whole state file atomically (temp file + rename) and
// stamps UpdatedAt.
func (s *Store) Save(st *EngineState) error {
	st.UpdatedAt = time.Now().UTC()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
