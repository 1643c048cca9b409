// Package source feeds fault records from the host process into the pipeline.
package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/setevik/faultwatch/internal/fault"
)

// Source is the interface for receiving faults. Implementations include
// JSON-lines readers, host subprocesses, and test mocks.
type Source interface {
	// Faults returns a channel of faults. The channel is closed when the
	// input ends, the source is stopped, or the context is cancelled.
	Faults(ctx context.Context) (<-chan *fault.Fault, error)

	// Stop signals the source to shut down.
	Stop()
}

// maxLine bounds a single JSON fault record; backtraces with captured
// variables can be large.
const maxLine = 1024 * 1024

// scan decodes one fault per line from r and forwards them to ch until the
// input ends or ctx is done. Unparseable lines are logged and skipped.
func scan(ctx context.Context, r io.Reader, ch chan<- *fault.Fault, origin string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		f, err := parseFault(line)
		if err != nil {
			slog.Warn("skipping unparseable fault line", "source", origin, "error", err)
			continue
		}

		select {
		case ch <- f:
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil {
		slog.Warn("fault scanner error", "source", origin, "error", err)
	}
}

// parseFault decodes a single JSON fault record, filling in the ID and
// timestamp when the host left them out.
func parseFault(data []byte) (*fault.Fault, error) {
	var f fault.Fault
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding fault: %w", err)
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	return &f, nil
}
