// Package store provides the durable fingerprint -> occurrence record mapping.
//
// Every mutation goes through Store.Upsert, which re-reads the persisted state,
// applies the change, and writes it back. There is no long-lived cache between
// mutations, which keeps the staleness window small when several processes share
// one backing file. Backend failures never reach the caller: the store logs once
// and carries on in memory for the rest of the process.
package store

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/setevik/faultwatch/internal/fault"
	"github.com/setevik/faultwatch/internal/metrics"
)

// Backend names accepted by Open.
const (
	KindFile   = "file"
	KindSQLite = "sqlite"
	KindMemory = "memory"
)

// Options controls garbage collection.
type Options struct {
	// Retention is how long a record survives after its last occurrence.
	Retention time.Duration
	// GCInterval is the minimum time between opportunistic sweeps. Zero sweeps
	// on every access.
	GCInterval time.Duration
	// KeepPending protects records with suppressed occurrences that a shutdown
	// summary has not reported yet.
	KeepPending bool
	Metrics     *metrics.Metrics
}

// Store is the fingerprint -> occurrence record mapping.
type Store struct {
	mu       sync.Mutex
	backend  Backend
	opts     Options
	cache    *Snapshot
	degraded bool
}

// New wraps a backend. Call Load to read existing state.
func New(backend Backend, opts Options) *Store {
	return &Store{
		backend: backend,
		opts:    opts,
		cache:   newSnapshot(),
	}
}

// Open creates a store of the given kind at path and loads it. A backend that
// cannot be opened leaves the store in memory-only mode rather than failing.
func Open(kind, path string, opts Options) (*Store, error) {
	var (
		backend Backend
		err     error
	)
	switch kind {
	case KindFile, "":
		backend, err = NewFileBackend(path)
	case KindSQLite:
		backend, err = OpenSQLite(path)
	case KindMemory:
		backend = NewMemoryBackend()
	default:
		return nil, fmt.Errorf("unknown stats backend %q", kind)
	}

	if err != nil {
		s := New(NewMemoryBackend(), opts)
		s.degrade(path, err)
		return s, nil
	}

	s := New(backend, opts)
	s.Load()
	return s, nil
}

// Load reads the backing resource into memory. An absent resource yields an
// empty store.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		return
	}
	snap, err := s.backend.Load()
	if err != nil {
		s.degrade(s.backend.Location(), err)
		return
	}
	s.cache = snap
}

// Get returns the record for a fingerprint as of the last read or write.
func (s *Store) Get(fp string) (fault.Occurrence, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.cache.Faults[fp]
	if !ok {
		return fault.Occurrence{}, false
	}
	return o.Clone(), true
}

// Upsert is the single mutation path. It loads the current record for fp,
// creating a default one if absent, applies mutate, and persists the result.
// created reports whether the record did not exist before.
func (s *Store) Upsert(fp string, now time.Time, mutate func(o *fault.Occurrence, created bool)) (result fault.Occurrence, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.update(now, true, func(snap *Snapshot) bool {
		o, ok := snap.Faults[fp]
		if !ok {
			o = fault.Occurrence{Fingerprint: fp}
		}
		mutate(&o, !ok)
		snap.Faults[fp] = o
		result, created = o.Clone(), !ok
		return true
	})
	return result, created
}

// Update applies mutate to an existing record for fp and persists it. A
// fingerprint that is not in the persisted state, because another process
// flushed it or a sweep removed it, is left absent and ok is false.
func (s *Store) Update(fp string, now time.Time, mutate func(o *fault.Occurrence)) (result fault.Occurrence, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.update(now, true, func(snap *Snapshot) bool {
		o, found := snap.Faults[fp]
		if !found {
			result, ok = fault.Occurrence{}, false
			return false
		}
		mutate(&o)
		snap.Faults[fp] = o
		result, ok = o.Clone(), true
		return true
	})
	return result, ok
}

// All returns every record, ordered by fingerprint, after an opportunistic sweep.
func (s *Store) All(now time.Time) []fault.Occurrence {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.update(now, true, func(*Snapshot) bool { return false })
	return s.cache.sorted()
}

// Flush removes every record.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.update(time.Time{}, false, func(snap *Snapshot) bool {
		snap.Faults = make(map[string]fault.Occurrence)
		return true
	})
}

// GC sweeps records whose last occurrence is at or before now - retention and
// returns how many were removed.
func (s *Store) GC(now time.Time, retention time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	s.update(now, false, func(snap *Snapshot) bool {
		removed = s.sweep(snap, now, retention)
		snap.LastGC = now.UTC()
		return true
	})
	return removed
}

// Degraded reports whether the store has fallen back to memory-only mode.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Location describes the backing resource.
func (s *Store) Location() string {
	return s.backend.Location()
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// update runs fn against fresh persisted state, optionally preceded by an
// opportunistic sweep. Callers hold s.mu.
func (s *Store) update(now time.Time, gc bool, fn func(*Snapshot) bool) {
	apply := func(snap *Snapshot) bool {
		changed := false
		if gc {
			changed = s.maybeGC(snap, now)
		}
		return fn(snap) || changed
	}

	if s.degraded {
		apply(s.cache)
		return
	}

	var applied *Snapshot
	err := s.backend.Update(func(snap *Snapshot) bool {
		changed := apply(snap)
		applied = snap
		return changed
	})
	if applied != nil {
		s.cache = applied.clone()
	}
	if err != nil {
		s.degrade(s.backend.Location(), err)
		if applied == nil {
			apply(s.cache)
		}
	}
}

func (s *Store) degrade(location string, err error) {
	if !s.degraded {
		slog.Warn("stats store unavailable, continuing in memory",
			"location", location,
			"error", err,
		)
		s.opts.Metrics.Degraded()
	}
	s.degraded = true
}
