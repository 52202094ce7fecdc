// Package progress persists the set of documents a batch run has completed,
// so an interrupted run can resume without redoing finished work. The record
// is a plain text file with one completed document identifier per line.
package progress

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNothingToResume is returned when a resume is requested but no progress
// record exists.
var ErrNothingToResume = errors.New("progress: no progress record to resume from")

// Store reads and writes the durable progress record.
// It is a single-writer store: concurrent batch runs against the same
// record are not supported and must be prevented by the caller.
type Store struct {
	path string
}

// NewStore creates a Store backed by the file at path.
// The file is created lazily on the first append.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the record's file path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a progress record is present on disk.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the set of completed document identifiers.
// A missing record yields an empty set, not an error.
func (s *Store) Load() (map[string]bool, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, fmt.Errorf("progress: open record: %w", err)
	}
	defer func() { _ = f.Close() }()

	completed := map[string]bool{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if id := strings.TrimSpace(scanner.Text()); id != "" {
			completed[id] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("progress: read record: %w", err)
	}

	return completed, nil
}

// Append durably records one completed document identifier.
// The record file is created on the first call and the write is synced
// before returning, so a crash after Append never loses the checkpoint.
func (s *Store) Append(id string) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("progress: open record for append: %w", err)
	}

	if _, err := fmt.Fprintln(f, id); err != nil {
		_ = f.Close()
		return fmt.Errorf("progress: append %q: %w", id, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("progress: sync record: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("progress: close record: %w", err)
	}

	return nil
}

// Clear deletes the progress record. Called on clean batch completion.
// A missing record is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("progress: remove record: %w", err)
	}
	return nil
}

// RequireRecord verifies that a record exists before a resume-only run.
// It returns ErrNothingToResume when the record is absent.
func (s *Store) RequireRecord() error {
	if !s.Exists() {
		return fmt.Errorf("%w: %s", ErrNothingToResume, s.path)
	}
	return nil
}
