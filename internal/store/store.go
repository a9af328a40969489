// Package store owns the on-disk representation of conversation records:
// one .vcon file per conversation plus a SQLite journal of completed
// exports.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/soyeahso/vconscribe/internal/logging"
	"github.com/soyeahso/vconscribe/internal/vcon"
)

// ErrNotFound reports that no record file exists at the given path. Only
// this condition should cause callers to create a fresh record.
var ErrNotFound = errors.New("store: record not found")

// CorruptError reports that a record file exists but cannot be parsed.
// Callers must not silently discard such files; see Quarantine.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("store: corrupt record %s: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// quarantineSuffix marks record files set aside after a parse failure.
const quarantineSuffix = ".corrupt"

// Store reads and writes conversation records under a single directory.
// All access to a given record file must go through WithLock so that
// ingestion and the export sweep never read-modify-write the same file
// concurrently.
type Store struct {
	dir   string
	locks *pathLocks
	log   *logging.Logger
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string, log *logging.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: creating directory %s: %w", dir, err)
	}
	return &Store{
		dir:   dir,
		locks: newPathLocks(),
		log:   log.Sub("store"),
	}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// PathFor returns the record file path for a conversation. The name is
// derived from the room's display name and its transport id so records
// stay addressable even if the display name changes later.
func (s *Store) PathFor(roomName, roomID string) string {
	return filepath.Join(s.dir, sanitizeName(roomName)+":"+sanitizeName(roomID)+".vcon")
}

// sanitizeName strips characters that cannot appear in a file name.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	return strings.ReplaceAll(name, "\x00", "")
}

// WithLock runs fn while holding the mutex for the given record path.
func (s *Store) WithLock(path string, fn func() error) error {
	unlock := s.locks.lock(path)
	defer unlock()
	return fn()
}

// Load reads and parses the record at path. Returns ErrNotFound if the
// file is missing and a *CorruptError if the content does not parse.
func (s *Store) Load(path string) (*vcon.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("store: reading %s: %w", path, err)
	}

	var rec vcon.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	return &rec, nil
}

// Save serializes the record and writes it to path. The write goes to a
// temp file in the same directory and is renamed into place, so a failed
// write never replaces a previously valid file with a partial one.
func (s *Store) Save(path string, rec *vcon.Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encoding %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("store: create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("store: write temp for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("store: sync temp for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		return fmt.Errorf("store: chmod temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("store: rename temp for %s: %w", path, err)
	}

	s.log.Debug().Str("path", path).Int("bytes", len(data)).Msg("record saved")
	return nil
}

// List enumerates all record files in the store. One-shot, order
// unspecified. Quarantined files are excluded.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("store: listing %s: %w", s.dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".vcon") {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, e.Name()))
	}
	return paths, nil
}

// Delete removes the record file at path.
func (s *Store) Delete(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("store: deleting %s: %w", path, err)
	}
	s.log.Debug().Str("path", path).Msg("record deleted")
	return nil
}

// Quarantine renames an unreadable record file out of the way so a fresh
// record can be created at its path without losing the original bytes.
func (s *Store) Quarantine(path string) error {
	dest := path + quarantineSuffix
	if err := os.Rename(path, dest); err != nil {
		return fmt.Errorf("store: quarantining %s: %w", path, err)
	}
	s.log.Warn().Str("path", path).Str("quarantined", dest).Msg("unreadable record quarantined")
	return nil
}
