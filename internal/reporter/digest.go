package reporter

import (
	"fmt"
	"strings"
	"time"

	"github.com/setevik/faultwatch/internal/fault"
)

// SummaryEntry is one throttled fingerprint in a shutdown summary.
type SummaryEntry struct {
	Fingerprint string
	Info        fault.Info
	Suppressed  int
	Since       time.Time
}

// Summary holds everything suppressed since its last individual notification.
type Summary struct {
	Instance string
	To       string
	Time     time.Time
	Entries  []SummaryEntry
}

// BuildSummary turns summary candidates into a Summary.
func BuildSummary(instance, to string, now time.Time, candidates []fault.Occurrence) Summary {
	s := Summary{Instance: instance, To: to, Time: now}
	for _, o := range candidates {
		e := SummaryEntry{
			Fingerprint: o.Fingerprint,
			Info:        o.Info,
			Suppressed:  o.Notification.SuppressedSinceNotify,
		}
		if o.Notification.LastNotifiedAt != nil {
			e.Since = *o.Notification.LastNotifiedAt
		}
		s.Entries = append(s.Entries, e)
	}
	return s
}

// Severity returns the highest severity among the entries.
func (s Summary) Severity() fault.Severity {
	highest := fault.SevUnknown
	for _, e := range s.Entries {
		if e.Info.Severity > highest {
			highest = e.Info.Severity
		}
	}
	return highest
}

// RenderSummary builds the consolidated shutdown notification.
func (r *TextRenderer) RenderSummary(s Summary) Message {
	var b strings.Builder

	fmt.Fprintf(&b, "This summary sent via %s\n\n", r.instance(s.Instance))

	for _, e := range s.Entries {
		fmt.Fprintf(&b, "File: %s\n", e.Info.File)
		fmt.Fprintf(&b, "Line: %d\n", e.Info.Line)
		fmt.Fprintf(&b, "Fault: %s: %s\n", e.Info.Severity.Label(), e.Info.Message)
		fmt.Fprintf(&b, "Has occurred %d times since %s\n", e.Suppressed, r.formatTime(e.Since))
		b.WriteString("\n")
	}

	return Message{
		To:       s.To,
		Subject:  "Fault summary: " + r.instance(s.Instance),
		Body:     b.String(),
		Severity: s.Severity(),
		Kind:     KindSummary,
	}
}
