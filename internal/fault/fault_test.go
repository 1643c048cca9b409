package fault

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	f := New(SevWarning, "Division by zero", "/app/calc.go", 42)

	assert.NotEmpty(t, f.ID)
	assert.Equal(t, SevWarning, f.Severity)
	assert.Equal(t, "Division by zero", f.Message)
	assert.Equal(t, "/app/calc.go", f.File)
	assert.Equal(t, 42, f.Line)
	assert.WithinDuration(t, time.Now(), f.Timestamp, time.Second)
}

func TestNewUniqueIDs(t *testing.T) {
	f1 := New(SevError, "a", "x.go", 1)
	f2 := New(SevError, "a", "x.go", 1)
	assert.NotEqual(t, f1.ID, f2.ID)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		fault *Fault
		ok    bool
	}{
		{"valid", &Fault{Severity: SevError, Message: "boom", File: "a.go", Line: 3}, true},
		{"line zero", &Fault{Severity: SevNotice, Message: "boom", File: "a.go"}, true},
		{"nil", nil, false},
		{"unknown severity", &Fault{Message: "boom", File: "a.go", Line: 3}, false},
		{"blank message", &Fault{Severity: SevError, Message: "  ", File: "a.go", Line: 3}, false},
		{"no file", &Fault{Severity: SevError, Message: "boom", Line: 3}, false},
		{"negative line", &Fault{Severity: SevError, Message: "boom", File: "a.go", Line: -1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fault.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}

func TestSeverityOrdering(t *testing.T) {
	assert.Less(t, SevNotice, SevWarning)
	assert.Less(t, SevWarning, SevError)
	assert.Less(t, SevError, SevFatal)
}

func TestSeverityLabel(t *testing.T) {
	tests := []struct {
		sev   Severity
		label string
	}{
		{SevNotice, "Notice"},
		{SevWarning, "Warning"},
		{SevError, "Error"},
		{SevFatal, "Fatal Error"},
		{Severity(99), "severity(99)"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.label, tt.sev.Label())
	}
}

func TestParseSeverity(t *testing.T) {
	sev, err := ParseSeverity(" WARNING ")
	require.NoError(t, err)
	assert.Equal(t, SevWarning, sev)

	_, err = ParseSeverity("catastrophic")
	assert.Error(t, err)
}

func TestFaultJSONInput(t *testing.T) {
	line := `{"severity":"fatal","message":"nil map write","file":"/srv/app/main.go","line":17,` +
		`"throw":true,"variables":{"user":"bob"},"backtrace":[{"file":"/srv/app/main.go","line":17,"function":"main.run"}]}`

	var f Fault
	require.NoError(t, json.Unmarshal([]byte(line), &f))

	assert.Equal(t, SevFatal, f.Severity)
	assert.Equal(t, "nil map write", f.Message)
	assert.Equal(t, 17, f.Line)
	assert.True(t, f.Throw)
	assert.False(t, f.Suppressed)
	assert.Equal(t, "bob", f.Variables["user"])
	require.Len(t, f.Backtrace, 1)
	assert.Equal(t, "main.run", f.Backtrace[0].Function)
	assert.NoError(t, f.Validate())
}

func TestFaultJSONRejectsUnknownSeverity(t *testing.T) {
	var f Fault
	err := json.Unmarshal([]byte(`{"severity":"bogus","message":"m","file":"f","line":1}`), &f)
	assert.Error(t, err)
}
