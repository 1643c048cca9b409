package reporter

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setevik/faultwatch/internal/fault"
)

func summaryCandidates() []fault.Occurrence {
	first := lastNotified
	second := time.Date(2026, 2, 19, 9, 15, 0, 0, time.UTC)
	return []fault.Occurrence{
		{
			Fingerprint: "5f2c9a",
			Info:        fault.Info{Severity: fault.SevError, Message: "Division by zero", File: "/var/www/app/calc.go", Line: 17},
			Count:       4,
			Notification: fault.Notification{
				LastNotifiedAt:        &first,
				SuppressedSinceNotify: 3,
			},
		},
		{
			Fingerprint: "9e01bb",
			Info:        fault.Info{Severity: fault.SevFatal, Message: "out of memory", File: "/var/www/app/cache.go", Line: 230},
			Count:       2,
			Notification: fault.Notification{
				LastNotifiedAt:        &second,
				SuppressedSinceNotify: 1,
			},
		},
	}
}

func TestBuildSummary(t *testing.T) {
	s := BuildSummary("web-1", "ops@example.com", reportTime, summaryCandidates())

	assert.Equal(t, "web-1", s.Instance)
	assert.Equal(t, "ops@example.com", s.To)
	require.Len(t, s.Entries, 2)
	assert.Equal(t, 3, s.Entries[0].Suppressed)
	assert.Equal(t, lastNotified, s.Entries[0].Since)
	assert.Equal(t, "9e01bb", s.Entries[1].Fingerprint)
	assert.Equal(t, fault.SevFatal, s.Severity())
}

func TestBuildSummaryEmpty(t *testing.T) {
	s := BuildSummary("web-1", "", reportTime, nil)
	assert.Empty(t, s.Entries)
	assert.Equal(t, fault.SevUnknown, s.Severity())
}

func TestRenderSummaryGolden(t *testing.T) {
	s := BuildSummary("", "ops@example.com", reportTime, summaryCandidates())
	msg := testRenderer().RenderSummary(s)

	assert.Equal(t, KindSummary, msg.Kind)
	assert.Equal(t, "ops@example.com", msg.To)
	assert.Equal(t, fault.SevFatal, msg.Severity)

	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "summary", golden(msg))
}
