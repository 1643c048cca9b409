// Package stats bridges the fault pipeline and the occurrence store.
package stats

import (
	"time"

	"github.com/setevik/faultwatch/internal/fault"
	"github.com/setevik/faultwatch/internal/metrics"
	"github.com/setevik/faultwatch/internal/store"
)

// Engine records fault occurrences and answers queries about them.
type Engine struct {
	store     *store.Store
	retention time.Duration
	metrics   *metrics.Metrics
}

// New creates an Engine over st. retention is the default window used by GC.
func New(st *store.Store, retention time.Duration, m *metrics.Metrics) *Engine {
	return &Engine{store: st, retention: retention, metrics: m}
}

// Record fingerprints f, annotates it, and counts the occurrence. The returned
// bool reports whether this was the first occurrence of the fingerprint.
func (e *Engine) Record(f *fault.Fault, now time.Time) (fault.Occurrence, bool, error) {
	if err := f.Validate(); err != nil {
		e.metrics.Invalid()
		return fault.Occurrence{}, false, err
	}

	info := f.Info()
	f.Fingerprint = fault.Fingerprint(info)

	rec, created := e.store.Upsert(f.Fingerprint, now, func(o *fault.Occurrence, created bool) {
		if created {
			o.Info = info
			o.FirstSeenAt = now.UTC()
		}
		o.Count++
		o.LastSeenAt = now.UTC()
	})

	f.IsFirstOccurrence = created
	e.metrics.Recorded(created)
	return rec, created, nil
}

// Update applies mutate to the existing record for fp. It never creates a
// record; ok is false when fp is no longer stored.
func (e *Engine) Update(fp string, now time.Time, mutate func(o *fault.Occurrence)) (fault.Occurrence, bool) {
	return e.store.Update(fp, now, mutate)
}

// Find looks up a record by fingerprint.
func (e *Engine) Find(fp string) (fault.Occurrence, bool) {
	return e.store.Get(fp)
}

// FindFault looks up the record a fault resolves to.
func (e *Engine) FindFault(f *fault.Fault) (fault.Occurrence, bool) {
	return e.store.Get(fault.Fingerprint(f.Info()))
}

// SummaryCandidates returns the records that were notified at least window
// before now and have occurrences that no notification has reported since.
func (e *Engine) SummaryCandidates(now time.Time, window time.Duration) []fault.Occurrence {
	var out []fault.Occurrence
	for _, o := range e.store.All(now) {
		if !o.PendingSummary() {
			continue
		}
		if o.NotifiedWithin(now, window) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// All returns every record ordered by fingerprint.
func (e *Engine) All(now time.Time) []fault.Occurrence {
	return e.store.All(now)
}

// GC sweeps records outside the retention window and returns how many were removed.
func (e *Engine) GC(now time.Time) int {
	return e.store.GC(now, e.retention)
}

// Flush clears every record.
func (e *Engine) Flush() {
	e.store.Flush()
}
