// Package fault defines the fault record consumed from the host process and the
// per-fingerprint occurrence record derived from it.
package fault

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalid is returned when a fault is missing required classification fields.
var ErrInvalid = errors.New("invalid fault")

// Frame is a single backtrace frame supplied by the host.
type Frame struct {
	File     string `json:"file" yaml:"file"`
	Line     int    `json:"line" yaml:"line"`
	Function string `json:"function,omitempty" yaml:"function,omitempty"`
}

// Fault is a single fault occurrence reported by the host process. The host owns
// it; the pipeline only fills in the annotation fields during dispatch.
type Fault struct {
	ID         string         `json:"id,omitempty"`
	Timestamp  time.Time      `json:"timestamp,omitempty"`
	Severity   Severity       `json:"severity"`
	Message    string         `json:"message"`
	File       string         `json:"file"`
	Line       int            `json:"line"`
	Variables  map[string]any `json:"variables,omitempty"`
	Backtrace  []Frame        `json:"backtrace,omitempty"`
	Throw      bool           `json:"throw,omitempty"`
	Suppressed bool           `json:"suppressed,omitempty"`

	// Annotations.
	Fingerprint       string      `json:"fingerprint,omitempty"`
	IsFirstOccurrence bool        `json:"is_first_occurrence,omitempty"`
	ShouldNotify      bool        `json:"should_notify,omitempty"`
	Stats             *Occurrence `json:"stats,omitempty"`
}

// New creates a Fault with a generated ID stamped with the current time.
func New(sev Severity, message, file string, line int) *Fault {
	return &Fault{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Severity:  sev,
		Message:   message,
		File:      file,
		Line:      line,
	}
}

// Info returns the classification snapshot used for fingerprinting and display.
func (f *Fault) Info() Info {
	return Info{
		Severity: f.Severity,
		Message:  f.Message,
		File:     f.File,
		Line:     f.Line,
	}
}

// Validate checks that the classification fields are usable.
func (f *Fault) Validate() error {
	switch {
	case f == nil:
		return fmt.Errorf("%w: nil fault", ErrInvalid)
	case !f.Severity.Valid():
		return fmt.Errorf("%w: %s", ErrInvalid, f.Severity)
	case strings.TrimSpace(f.Message) == "":
		return fmt.Errorf("%w: empty message", ErrInvalid)
	case f.File == "":
		return fmt.Errorf("%w: empty file", ErrInvalid)
	case f.Line < 0:
		return fmt.Errorf("%w: negative line %d", ErrInvalid, f.Line)
	}
	return nil
}
