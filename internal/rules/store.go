package rules

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"
)

// Snapshot is an immutable view of every loaded rubric.
type Snapshot struct {
	LoadedAt time.Time
	Degraded bool    // Some source failed or had rejected rules
	Errors   []error // Load errors in source order

	catalogs      map[string]*Catalog
	names         []string
	defaultRubric string
}

// Catalog returns the named rubric. An empty name selects the default rubric.
func (s *Snapshot) Catalog(name string) (*Catalog, bool) {
	if name == "" {
		name = s.defaultRubric
	}
	c, ok := s.catalogs[name]
	return c, ok
}

// Names returns the rubric names, sorted.
func (s *Snapshot) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Default returns the default rubric name.
func (s *Snapshot) Default() string {
	return s.defaultRubric
}

// Store holds the current snapshot. Readers never lock; Reload swaps the
// snapshot wholesale.
type Store struct {
	paths         []string
	defaultRubric string
	log           *slog.Logger

	current atomic.Pointer[Snapshot]
	reloads atomic.Int64
}

// NewStore creates a store for the given catalog files. Call Reload to load them.
// defaultRubric may be empty, in which case the first path's rubric is the default.
func NewStore(paths []string, defaultRubric string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		paths:         append([]string(nil), paths...),
		defaultRubric: defaultRubric,
		log:           log.With("component", "rules"),
	}
	s.current.Store(&Snapshot{catalogs: map[string]*Catalog{}, Degraded: len(paths) > 0})
	return s
}

// Paths returns the watched catalog files.
func (s *Store) Paths() []string {
	return append([]string(nil), s.paths...)
}

// Snapshot returns the current snapshot. It is never nil.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Reloads returns how many times Reload has swapped in a new snapshot.
func (s *Store) Reloads() int64 {
	return s.reloads.Load()
}

// Reload loads every catalog and atomically replaces the snapshot.
// A snapshot is always installed; the returned error joins every load
// error so callers can report degraded state.
func (s *Store) Reload() (*Snapshot, error) {
	snap := &Snapshot{
		LoadedAt: time.Now(),
		catalogs: make(map[string]*Catalog, len(s.paths)),
	}

	for _, path := range s.paths {
		cat, err := Load(path, s.log)
		if err != nil {
			snap.Degraded = true
			snap.Errors = append(snap.Errors, err)
			s.log.Warn("Catalog load degraded", "path", path, "error", err)
		}
		if cat == nil {
			continue
		}
		if _, dup := snap.catalogs[cat.Name]; dup {
			err := &OntologyLoadError{Source: path, Err: fmt.Errorf("rubric %q already loaded", cat.Name)}
			snap.Degraded = true
			snap.Errors = append(snap.Errors, err)
			s.log.Warn("Duplicate rubric skipped", "path", path, "rubric", cat.Name)
			continue
		}
		snap.catalogs[cat.Name] = cat
		if snap.defaultRubric == "" && s.defaultRubric == "" {
			snap.defaultRubric = cat.Name
		}
	}
	if s.defaultRubric != "" {
		snap.defaultRubric = s.defaultRubric
	}

	for name := range snap.catalogs {
		snap.names = append(snap.names, name)
	}
	sort.Strings(snap.names)

	s.current.Store(snap)
	s.reloads.Add(1)

	s.log.Info("Rule catalogs loaded",
		"rubrics", len(snap.catalogs),
		"default", snap.defaultRubric,
		"degraded", snap.Degraded)

	return snap, errors.Join(snap.Errors...)
}
