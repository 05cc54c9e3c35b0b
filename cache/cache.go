// Package cache implements the persistent archive metadata cache.
//
// The cache remembers facts that are expensive to recompute from a
// container, such as the true uncompressed size of a gzip member or the
// scanned index of a tar file. Entries are keyed by the container's own
// name and size plus a short SIG tag naming the driver that owns the blob,
// so several drivers can cache facts about the same file.
//
// The whole store is loaded at startup and rewritten on Commit when it has
// been modified. There is no journal: a crash in the middle of a write can
// leave a torn file, which is discarded on the next load.
package cache

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"slices"
	"sort"
	"sync"

	"github.com/meigma/arcvfs/vfs"
)

// Limits applied to entries, both on Add and when loading a file.
const (
	MaxNameLen = 4096
	MaxSIGLen  = 64
	MaxBlobLen = 16 << 20
)

var (
	// ErrNotFound is returned by Get and Remove for unknown keys.
	ErrNotFound = errors.New("cache: not found")

	// ErrTooLarge is returned by Add when a field exceeds its limit.
	ErrTooLarge = fmt.Errorf("cache: %w", vfs.ErrLimit)
)

// Entry is one cached record.
type Entry struct {
	Name string
	Size uint64
	SIG  string
	Blob []byte
}

// Store is the in-memory metadata cache. It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries []Entry // ascending by Size
	dirty   bool
	path    string
	mode    os.FileMode
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for load and commit diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithFileMode sets the permissions of the cache file written by Commit.
func WithFileMode(mode os.FileMode) Option {
	return func(s *Store) {
		s.mode = mode
	}
}

// New returns an empty store that is not backed by a file. Commit on such a
// store only clears the dirty flag.
func New(opts ...Option) *Store {
	s := &Store{mode: 0o600}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open loads the store persisted at path. A missing file yields an empty
// store. A file with a bad signature or a torn tail is discarded with a
// warning and also yields an empty store.
func Open(path string, opts ...Option) (*Store, error) {
	s := New(opts...)
	s.path = path

	data, err := os.ReadFile(path) //nolint:gosec // cache path is chosen by the caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log().Debug("metadata cache not found, starting empty", "path", path)
			return s, nil
		}
		return nil, fmt.Errorf("cache: read %s: %w", path, err)
	}

	entries, err := decode(data)
	if err != nil {
		s.log().Warn("discarding metadata cache", "path", path, "error", err)
		return s, nil
	}
	// Files written by other tools may not honour the ordering.
	slices.SortStableFunc(entries, func(a, b Entry) int {
		switch {
		case a.Size < b.Size:
			return -1
		case a.Size > b.Size:
			return 1
		default:
			return 0
		}
	})
	s.entries = entries
	s.log().Debug("metadata cache loaded", "path", path, "entries", len(entries))
	return s, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (s *Store) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Path returns the backing file, or "" for an in-memory store.
func (s *Store) Path() string {
	return s.path
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Dirty reports whether the store has changes that Commit would write.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// All iterates over copies of the entries in ascending size order.
func (s *Store) All() iter.Seq[Entry] {
	s.mu.Lock()
	snapshot := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		e.Blob = bytes.Clone(e.Blob)
		snapshot[i] = e
	}
	s.mu.Unlock()

	return func(yield func(Entry) bool) {
		for _, e := range snapshot {
			if !yield(e) {
				return
			}
		}
	}
}

// search returns the index of the first entry with Size >= size and, if an
// entry matching (name, size, sig) exists, its index.
func (s *Store) search(name string, size uint64, sig string) (first, match int) {
	first = sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].Size >= size
	})
	for i := first; i < len(s.entries) && s.entries[i].Size == size; i++ {
		if s.entries[i].Name == name && s.entries[i].SIG == sig {
			return first, i
		}
	}
	return first, -1
}

// Add stores blob under (name, size, sig). Re-adding an identical blob is a
// no-op; a different blob replaces the existing one in place.
func (s *Store) Add(name string, size uint64, sig string, blob []byte) error {
	if len(name) > MaxNameLen || len(sig) > MaxSIGLen || len(blob) > MaxBlobLen {
		return ErrTooLarge
	}
	if bytes.IndexByte([]byte(name), 0) >= 0 || bytes.IndexByte([]byte(sig), 0) >= 0 {
		return fmt.Errorf("cache: %w: NUL in key", vfs.ErrMalformed)
	}

	if len(blob) == 0 {
		blob = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	first, match := s.search(name, size, sig)
	if match >= 0 {
		if bytes.Equal(s.entries[match].Blob, blob) {
			return nil
		}
		s.entries[match].Blob = bytes.Clone(blob)
		s.dirty = true
		return nil
	}

	s.entries = slices.Insert(s.entries, first, Entry{
		Name: name,
		Size: size,
		SIG:  sig,
		Blob: bytes.Clone(blob),
	})
	s.dirty = true
	return nil
}

// Get returns a copy of the blob stored under (name, size, sig).
func (s *Store) Get(name string, size uint64, sig string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, match := s.search(name, size, sig)
	if match < 0 {
		return nil, ErrNotFound
	}
	return bytes.Clone(s.entries[match].Blob), nil
}

// Remove deletes the entry stored under (name, size, sig).
func (s *Store) Remove(name string, size uint64, sig string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, match := s.search(name, size, sig)
	if match < 0 {
		return ErrNotFound
	}
	s.entries = slices.Delete(s.entries, match, match+1)
	s.dirty = true
	return nil
}
