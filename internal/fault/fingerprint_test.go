package fault

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintDeterministic(t *testing.T) {
	info := Info{Severity: SevWarning, Message: "Division by zero", File: "/app/calc.go", Line: 42}

	fp := Fingerprint(info)
	assert.Len(t, fp, 64)
	assert.Equal(t, fp, Fingerprint(info))
}

func TestFingerprintIgnoresOccurrenceNoise(t *testing.T) {
	f1 := New(SevWarning, "Division by zero", "/app/calc.go", 42)
	f1.Variables = map[string]any{"a": 1}
	f1.Timestamp = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	f2 := New(SevWarning, "Division by zero", "/app/calc.go", 42)
	f2.Variables = map[string]any{"a": 2, "b": "x"}
	f2.Backtrace = []Frame{{File: "/app/calc.go", Line: 42}}
	f2.Throw = true

	assert.Equal(t, Fingerprint(f1.Info()), Fingerprint(f2.Info()))
}

func TestFingerprintDistinguishesClassification(t *testing.T) {
	base := Info{Severity: SevWarning, Message: "Division by zero", File: "/app/calc.go", Line: 42}
	fp := Fingerprint(base)

	variants := []Info{
		{Severity: SevError, Message: base.Message, File: base.File, Line: base.Line},
		{Severity: base.Severity, Message: "Division by one", File: base.File, Line: base.Line},
		{Severity: base.Severity, Message: base.Message, File: "/app/other.go", Line: base.Line},
		{Severity: base.Severity, Message: base.Message, File: base.File, Line: 43},
	}
	for _, v := range variants {
		assert.NotEqual(t, fp, Fingerprint(v), "%+v", v)
	}
}

func TestFingerprintFieldBoundaries(t *testing.T) {
	a := Info{Severity: SevError, Message: "ab", File: "c", Line: 1}
	b := Info{Severity: SevError, Message: "a", File: "bc", Line: 1}
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestNormalizeMessage(t *testing.T) {
	assert.Equal(t, "Division by zero", NormalizeMessage("  Division \t by\n zero  "))

	// "é" precomposed vs "e" + combining acute.
	assert.Equal(t, NormalizeMessage("caf\u00e9"), NormalizeMessage("cafe\u0301"))

	a := Info{Severity: SevNotice, Message: "cafe\u0301  closed", File: "f.go", Line: 1}
	b := Info{Severity: SevNotice, Message: "caf\u00e9 closed", File: "f.go", Line: 1}
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestOccurrenceCloneDoesNotAlias(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	o := Occurrence{Notification: Notification{LastNotifiedAt: &ts}}

	c := o.Clone()
	*c.Notification.LastNotifiedAt = ts.Add(time.Hour)

	assert.Equal(t, ts, *o.Notification.LastNotifiedAt)
}

func TestOccurrenceThrottleHelpers(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var o Occurrence

	assert.False(t, o.NotifiedWithin(now, time.Hour))
	assert.False(t, o.PendingSummary())

	o.MarkNotified(now.Add(-30*time.Minute), "ops@example.com")
	assert.True(t, o.NotifiedWithin(now, time.Hour))
	assert.False(t, o.NotifiedWithin(now, 30*time.Minute))
	assert.Equal(t, "ops@example.com", o.Notification.LastNotifiedTo)

	o.Notification.SuppressedSinceNotify = 2
	assert.True(t, o.PendingSummary())

	o.MarkNotified(now, "ops@example.com")
	assert.Equal(t, 0, o.Notification.SuppressedSinceNotify)
	assert.False(t, o.PendingSummary())
}
