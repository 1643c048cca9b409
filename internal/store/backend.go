package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/setevik/faultwatch/internal/fault"
)

// Snapshot is the persisted document: every occurrence record keyed by
// fingerprint, plus the time of the last garbage collection sweep.
type Snapshot struct {
	LastGC time.Time                   `json:"last_gc"`
	Faults map[string]fault.Occurrence `json:"faults"`
}

func newSnapshot() *Snapshot {
	return &Snapshot{Faults: make(map[string]fault.Occurrence)}
}

func (s *Snapshot) clone() *Snapshot {
	c := &Snapshot{
		LastGC: s.LastGC,
		Faults: make(map[string]fault.Occurrence, len(s.Faults)),
	}
	for fp, o := range s.Faults {
		c.Faults[fp] = o.Clone()
	}
	return c
}

// sorted returns copies of every record ordered by fingerprint.
func (s *Snapshot) sorted() []fault.Occurrence {
	out := make([]fault.Occurrence, 0, len(s.Faults))
	for _, o := range s.Faults {
		out = append(out, o.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Fingerprint < out[j].Fingerprint
	})
	return out
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	snap := newSnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, err
	}
	if snap.Faults == nil {
		snap.Faults = make(map[string]fault.Occurrence)
	}
	for fp, o := range snap.Faults {
		if o.Fingerprint == "" {
			o.Fingerprint = fp
			snap.Faults[fp] = o
		}
	}
	return snap, nil
}

func encodeSnapshot(snap *Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding stats: %w", err)
	}
	return append(data, '\n'), nil
}

// Backend is the durable medium behind a Store.
type Backend interface {
	// Load returns the persisted snapshot. An absent resource yields an empty
	// snapshot, not an error.
	Load() (*Snapshot, error)

	// Update re-reads the persisted snapshot, passes it to fn, and persists it
	// again if fn reports a change. The read-modify-write runs under whatever
	// mutual exclusion the medium offers.
	Update(fn func(*Snapshot) bool) error

	// Location describes where the data lives, for logs.
	Location() string

	Close() error
}

// MemoryBackend keeps the snapshot in process memory only.
type MemoryBackend struct {
	mu   sync.Mutex
	snap *Snapshot
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{snap: newSnapshot()}
}

func (m *MemoryBackend) Load() (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.clone(), nil
}

func (m *MemoryBackend) Update(fn func(*Snapshot) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snap.clone()
	if fn(snap) {
		m.snap = snap
	}
	return nil
}

func (m *MemoryBackend) Location() string { return "memory" }

func (m *MemoryBackend) Close() error { return nil }
