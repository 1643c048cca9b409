package fault

import "time"

// Info is the immutable classification snapshot captured at first occurrence.
type Info struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Message  string   `json:"message" yaml:"message"`
	File     string   `json:"file" yaml:"file"`
	Line     int      `json:"line" yaml:"line"`
}

// Notification tracks the throttle state of a fingerprint.
type Notification struct {
	LastNotifiedAt        *time.Time `json:"last_notified_at" yaml:"last_notified_at"`
	SuppressedSinceNotify int        `json:"suppressed_since_notify" yaml:"suppressed_since_notify"`
	LastNotifiedTo        string     `json:"last_notified_to,omitempty" yaml:"last_notified_to,omitempty"`
}

// Occurrence holds the persistent statistics for one fingerprint.
type Occurrence struct {
	Fingerprint  string       `json:"fingerprint" yaml:"fingerprint"`
	Info         Info         `json:"info" yaml:"info"`
	FirstSeenAt  time.Time    `json:"first_seen_at" yaml:"first_seen_at"`
	LastSeenAt   time.Time    `json:"last_seen_at" yaml:"last_seen_at"`
	Count        int          `json:"count" yaml:"count"`
	Notification Notification `json:"notification" yaml:"notification"`
}

// Clone returns a deep copy, so callers never alias store-owned state.
func (o Occurrence) Clone() Occurrence {
	if o.Notification.LastNotifiedAt != nil {
		ts := *o.Notification.LastNotifiedAt
		o.Notification.LastNotifiedAt = &ts
	}
	return o
}

// NotifiedWithin reports whether the last notification happened less than window before now.
func (o Occurrence) NotifiedWithin(now time.Time, window time.Duration) bool {
	last := o.Notification.LastNotifiedAt
	return last != nil && now.Sub(*last) < window
}

// PendingSummary reports whether occurrences were suppressed since the last
// notification and have not been reported yet.
func (o Occurrence) PendingSummary() bool {
	return o.Notification.LastNotifiedAt != nil && o.Notification.SuppressedSinceNotify > 0
}

// MarkNotified resets the throttle state after a notification was delivered.
func (o *Occurrence) MarkNotified(now time.Time, to string) {
	ts := now.UTC()
	o.Notification.LastNotifiedAt = &ts
	o.Notification.SuppressedSinceNotify = 0
	o.Notification.LastNotifiedTo = to
}
