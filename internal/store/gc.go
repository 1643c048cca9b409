package store

import (
	"log/slog"
	"time"
)

// maybeGC sweeps when the last sweep is at least GCInterval old. It reports
// whether the snapshot changed.
func (s *Store) maybeGC(snap *Snapshot, now time.Time) bool {
	if now.IsZero() || s.opts.Retention <= 0 {
		return false
	}
	if !snap.LastGC.IsZero() && now.Sub(snap.LastGC) < s.opts.GCInterval {
		return false
	}
	s.sweep(snap, now, s.opts.Retention)
	snap.LastGC = now.UTC()
	return true
}

// sweep deletes records last seen at or before now - retention. Records still
// waiting to appear in a shutdown summary survive when KeepPending is set.
func (s *Store) sweep(snap *Snapshot, now time.Time, retention time.Duration) int {
	cutoff := now.Add(-retention)
	removed := 0
	for fp, o := range snap.Faults {
		if o.LastSeenAt.After(cutoff) {
			continue
		}
		if s.opts.KeepPending && o.PendingSummary() {
			continue
		}
		delete(snap.Faults, fp)
		removed++
	}

	if removed > 0 {
		slog.Debug("garbage collected fault stats",
			"removed", removed,
			"remaining", len(snap.Faults),
			"retention", retention,
		)
	}
	return removed
}
