package reporter

import (
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setevik/faultwatch/internal/config"
	"github.com/setevik/faultwatch/internal/fault"
)

var (
	reportTime   = time.Date(2026, 2, 19, 14, 32, 5, 0, time.UTC)
	firstSeen    = time.Date(2026, 2, 19, 8, 0, 0, 0, time.UTC)
	lastNotified = time.Date(2026, 2, 19, 8, 30, 0, 0, time.UTC)
)

func testRenderer() *TextRenderer {
	return &TextRenderer{
		Instance:    "web-1",
		DateFormat:  "2006-01-02 15:04:05 MST",
		Location:    time.UTC,
		ShouldTrace: func(fault.Severity) bool { return true },
	}
}

func divisionFault() *fault.Fault {
	return &fault.Fault{
		Severity:    fault.SevError,
		Message:     "Division by zero",
		File:        "/var/www/app/calc.go",
		Line:        17,
		Fingerprint: "5f2c9a",
		Variables:   map[string]any{"op": "div", "divisor": 0},
		Backtrace: []fault.Frame{
			{File: "/var/www/app/calc.go", Line: 17, Function: "calc.Divide"},
			{File: "/var/www/app/main.go", Line: 9, Function: "main.main"},
		},
	}
}

func throttledOccurrence() fault.Occurrence {
	ts := lastNotified
	return fault.Occurrence{
		Fingerprint: "5f2c9a",
		FirstSeenAt: firstSeen,
		LastSeenAt:  reportTime,
		Count:       4,
		Notification: fault.Notification{
			LastNotifiedAt:        &ts,
			SuppressedSinceNotify: 3,
		},
	}
}

func golden(msg Message) []byte {
	return []byte("Subject: " + msg.Subject + "\n\n" + msg.Body)
}

func TestRenderReportGolden(t *testing.T) {
	msg := testRenderer().RenderReport(Report{
		To:         "ops@example.com",
		Time:       reportTime,
		Fault:      divisionFault(),
		Occurrence: throttledOccurrence(),
	})

	assert.Equal(t, "ops@example.com", msg.To)
	assert.Equal(t, fault.SevError, msg.Severity)
	assert.Equal(t, KindReport, msg.Kind)

	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "report", golden(msg))
}

func TestRenderReportFirstNotification(t *testing.T) {
	f := divisionFault()
	msg := testRenderer().RenderReport(Report{
		Time:       reportTime,
		Fault:      f,
		Occurrence: fault.Occurrence{Count: 1, FirstSeenAt: reportTime},
	})

	assert.Equal(t, "Fault: web-1: Division by zero", msg.Subject)
	assert.True(t, strings.HasPrefix(msg.Body, "datetime: "), "no throttle header expected:\n%s", msg.Body)
}

func TestRenderReportTraceMask(t *testing.T) {
	r := testRenderer()
	r.ShouldTrace = func(sev fault.Severity) bool { return sev >= fault.SevError }

	f := divisionFault()
	f.Severity = fault.SevWarning
	msg := r.RenderReport(Report{Time: reportTime, Fault: f})
	assert.NotContains(t, msg.Body, "backtrace")

	f.Severity = fault.SevFatal
	msg = r.RenderReport(Report{Time: reportTime, Fault: f})
	assert.Contains(t, msg.Body, "\nbacktrace:\n#0 calc.Divide")
}

func TestRenderReportShortBacktrace(t *testing.T) {
	f := divisionFault()
	f.Backtrace = f.Backtrace[:1]

	msg := testRenderer().RenderReport(Report{Time: reportTime, Fault: f})
	assert.True(t, strings.HasSuffix(msg.Body, "\nno backtrace\n"), msg.Body)
}

func TestRenderReportCustomDumper(t *testing.T) {
	var got []TraceFrame
	r := testRenderer()
	r.Dumper = func(frames []TraceFrame) string {
		got = frames
		return "custom\n"
	}

	msg := r.RenderReport(Report{Time: reportTime, Fault: divisionFault()})

	assert.True(t, strings.HasSuffix(msg.Body, "backtrace:\ncustom\n"))
	require.Len(t, got, 2)
	assert.Equal(t, map[string]any{"op": "div", "divisor": 0}, got[0].Vars)
	assert.Nil(t, got[1].Vars)
}

func TestRenderReportMultilineSubject(t *testing.T) {
	f := divisionFault()
	f.Message = "query failed\nSELECT 1"

	msg := testRenderer().RenderReport(Report{Time: reportTime, Fault: f})
	assert.Equal(t, "Fault: web-1: query failed", msg.Subject)
	assert.Contains(t, msg.Body, "message: query failed\nSELECT 1\n")
}

func TestNewTextRendererFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Instance.ID = "batch-7"
	cfg.Notify.TraceMask = []string{"fatal"}

	r := NewTextRenderer(cfg)
	assert.Equal(t, "batch-7", r.Instance)
	assert.True(t, r.ShouldTrace(fault.SevFatal))
	assert.False(t, r.ShouldTrace(fault.SevError))
}
