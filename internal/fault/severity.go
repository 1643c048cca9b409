package fault

import (
	"fmt"
	"strings"
)

// Severity orders faults by how badly they disrupt the host: Notice < Warning < Error < Fatal.
type Severity int

const (
	SevUnknown Severity = iota
	SevNotice
	SevWarning
	SevError
	SevFatal
)

var severityNames = map[Severity]string{
	SevNotice:  "notice",
	SevWarning: "warning",
	SevError:   "error",
	SevFatal:   "fatal",
}

var severityLabels = map[Severity]string{
	SevNotice:  "Notice",
	SevWarning: "Warning",
	SevError:   "Error",
	SevFatal:   "Fatal Error",
}

// ParseSeverity parses a severity name, ignoring case.
func ParseSeverity(s string) (Severity, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for sev, n := range severityNames {
		if n == name {
			return sev, nil
		}
	}
	return SevUnknown, fmt.Errorf("unknown severity %q", s)
}

// Valid reports whether s is one of the defined severities.
func (s Severity) Valid() bool {
	_, ok := severityNames[s]
	return ok
}

func (s Severity) String() string {
	if n, ok := severityNames[s]; ok {
		return n
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Label returns a human-readable label for the severity.
func (s Severity) Label() string {
	if l, ok := severityLabels[s]; ok {
		return l
	}
	return s.String()
}

func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot marshal %s", s)
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	sev, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = sev
	return nil
}
