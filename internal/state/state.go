package state

import (
	"encoding/json" // For JSON encoding and decoding of the state file
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileName is the name of the unpack state file inside a destination directory.
const FileName = ".kas-unpack.json"

// ArchiveState records an archive that has been extracted.
// It stores the archive's checksum so an unchanged archive is not extracted again.
type ArchiveState struct {
	Source    string    `json:"source"`    // Path or URL the archive was taken from
	SHA256    string    `json:"sha256"`    // Checksum of the archive content
	Root      string    `json:"root"`      // Top-level directory created by the extraction
	Extracted time.Time `json:"extracted"` // Time of the extraction
}

// State holds the unpack state of one destination directory.
// Archives are keyed by their source. It is safe for concurrent use by
// the tasks of a single unpack run.
type State struct {
	mu       sync.Mutex
	Archives map[string]ArchiveState `json:"archives"`
}

// Load loads the state file of dir.
// A missing file yields an empty state; a corrupt one is an error.
func Load(dir string) (*State, error) {
	st := &State{Archives: make(map[string]ArchiveState)}

	file, err := os.ReadFile(filepath.Join(dir, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading unpack state: %w", err)
	}
	if err := json.Unmarshal(file, st); err != nil {
		return nil, fmt.Errorf("parsing unpack state %s: %w", filepath.Join(dir, FileName), err)
	}

	// JSON may contain null for the map
	if st.Archives == nil {
		st.Archives = make(map[string]ArchiveState)
	}
	return st, nil
}

// Get returns the recorded state of source.
func (s *State) Get(source string) (ArchiveState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.Archives[source]
	return a, ok
}

// Put records the state of an extracted archive.
func (s *State) Put(a ArchiveState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Archives[a.Source] = a
}

// Save writes the state file of dir, pretty-printed.
func (s *State) Save(dir string) error {
	// Tasks of one run save concurrently; the lock also serializes the writes
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding unpack state: %w", err)
	}

	// Write the JSON bytes with mode 0644 (read/write owner, read others)
	if err := os.WriteFile(filepath.Join(dir, FileName), file, 0o644); err != nil {
		return fmt.Errorf("writing unpack state: %w", err)
	}
	return nil
}
