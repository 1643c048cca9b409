package reporter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/setevik/faultwatch/internal/config"
	"github.com/setevik/faultwatch/internal/fault"
)

// Report is the structured content of a single-fault notification.
type Report struct {
	Instance string
	To       string
	Time     time.Time
	Fault    *fault.Fault
	// Occurrence is the record as it stood before this notification reset it,
	// so it still carries the suppressed count and the previous notification time.
	Occurrence fault.Occurrence
}

// Renderer turns structured notification content into messages.
type Renderer interface {
	RenderReport(r Report) Message
	RenderSummary(s Summary) Message
}

// TraceFrame is a backtrace frame as handed to a BacktraceDumper. The fault's
// variables are attached to the first frame.
type TraceFrame struct {
	fault.Frame
	Vars map[string]any
}

// BacktraceDumper renders a backtrace as plain text.
type BacktraceDumper func(frames []TraceFrame) string

// TextRenderer renders plain-text notifications.
type TextRenderer struct {
	Instance    string
	DateFormat  string
	Location    *time.Location
	ShouldTrace func(fault.Severity) bool
	Dumper      BacktraceDumper
}

// NewTextRenderer creates a TextRenderer from the [instance] and [notify]
// config sections.
func NewTextRenderer(cfg *config.Config) *TextRenderer {
	return &TextRenderer{
		Instance:    cfg.Instance.ID,
		DateFormat:  cfg.Notify.DateFormat,
		ShouldTrace: cfg.ShouldTrace,
	}
}

// RenderReport builds the notification for one fault.
func (r *TextRenderer) RenderReport(rep Report) Message {
	f := rep.Fault
	suppressed := rep.Occurrence.Notification.SuppressedSinceNotify

	subject := fmt.Sprintf("Fault: %s: %s", r.instance(rep.Instance), firstLine(f.Message))
	if suppressed > 0 {
		subject += fmt.Sprintf(" (%dx)", suppressed)
	}

	var b strings.Builder
	if last := rep.Occurrence.Notification.LastNotifiedAt; suppressed > 0 && last != nil {
		fmt.Fprintf(&b, "Fault has occurred %d times since last notification (%s).\n\n",
			suppressed, r.formatTime(*last))
	}

	fmt.Fprintf(&b, "datetime: %s\n", r.formatTime(rep.Time))
	fmt.Fprintf(&b, "severity: %s\n", f.Severity.Label())
	fmt.Fprintf(&b, "message: %s\n", f.Message)
	fmt.Fprintf(&b, "file: %s\n", f.File)
	fmt.Fprintf(&b, "line: %d\n", f.Line)
	fmt.Fprintf(&b, "host: %s\n", r.instance(rep.Instance))
	if f.Fingerprint != "" {
		fmt.Fprintf(&b, "fingerprint: %s\n", f.Fingerprint)
	}
	if rep.Occurrence.Count > 0 {
		fmt.Fprintf(&b, "occurrences: %d since %s\n", rep.Occurrence.Count, r.formatTime(rep.Occurrence.FirstSeenAt))
	}

	if r.ShouldTrace != nil && r.ShouldTrace(f.Severity) {
		b.WriteString("\n")
		if trace := r.backtrace(f); trace != "" {
			b.WriteString("backtrace:\n")
			b.WriteString(trace)
		} else {
			b.WriteString("no backtrace\n")
		}
	}

	return Message{
		To:       rep.To,
		Subject:  subject,
		Body:     b.String(),
		Severity: f.Severity,
		Kind:     KindReport,
	}
}

// backtrace returns the rendered backtrace, or "" when there is too little of
// one to be useful.
func (r *TextRenderer) backtrace(f *fault.Fault) string {
	if len(f.Backtrace) < 2 {
		return ""
	}
	frames := make([]TraceFrame, len(f.Backtrace))
	for i, fr := range f.Backtrace {
		frames[i] = TraceFrame{Frame: fr}
	}
	if len(f.Variables) > 0 {
		frames[0].Vars = f.Variables
	}

	dump := r.Dumper
	if dump == nil {
		dump = DumpBacktrace
	}
	return dump(frames)
}

// DumpBacktrace is the default BacktraceDumper.
func DumpBacktrace(frames []TraceFrame) string {
	var b strings.Builder
	for i, fr := range frames {
		fn := fr.Function
		if fn == "" {
			fn = "{main}"
		}
		fmt.Fprintf(&b, "#%d %s at %s:%d\n", i, fn, fr.File, fr.Line)

		keys := make([]string, 0, len(fr.Vars))
		for k := range fr.Vars {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "    $%s = %v\n", k, fr.Vars[k])
		}
	}
	return b.String()
}

func (r *TextRenderer) instance(override string) string {
	if override != "" {
		return override
	}
	return r.Instance
}

func (r *TextRenderer) formatTime(t time.Time) string {
	layout := r.DateFormat
	if layout == "" {
		layout = "2006-01-02 15:04:05 MST"
	}
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(layout)
}

func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}
