package source

import (
	"context"
	"log/slog"
	"time"

	"github.com/setevik/faultwatch/internal/fault"
)

// Supervised wraps a Source factory with automatic restart when the source
// ends or fails to start.
type Supervised struct {
	factory     func() Source
	restartWait time.Duration
	maxRestarts int
}

// NewSupervised creates a supervised wrapper around a source factory.
// After a source ends, it waits restartWait before creating a new one.
// maxRestarts of 0 means unlimited restarts.
func NewSupervised(factory func() Source, restartWait time.Duration, maxRestarts int) *Supervised {
	return &Supervised{
		factory:     factory,
		restartWait: restartWait,
		maxRestarts: maxRestarts,
	}
}

// Faults starts the supervision loop. The returned channel receives faults
// across restarts and is closed when the context is cancelled or max restarts
// are exceeded.
func (s *Supervised) Faults(ctx context.Context) (<-chan *fault.Fault, error) {
	out := make(chan *fault.Fault, 64)

	go func() {
		defer close(out)

		restarts := 0
		for {
			if s.maxRestarts > 0 && restarts > s.maxRestarts {
				slog.Error("fault source exceeded max restarts", "max", s.maxRestarts)
				return
			}

			src := s.factory()
			faults, err := src.Faults(ctx)
			if err != nil {
				slog.Error("failed to start fault source", "error", err, "restart_count", restarts)
			} else {
				if !forward(ctx, faults, out) {
					src.Stop()
					return
				}
				slog.Warn("fault source stopped, restarting", "restart_count", restarts)
				src.Stop()
			}
			restarts++

			select {
			case <-ctx.Done():
				return
			case <-time.After(s.restartWait):
			}
		}
	}()

	return out, nil
}

// forward copies faults from in to out until in closes. It returns false if
// ctx was cancelled first.
func forward(ctx context.Context, in <-chan *fault.Fault, out chan<- *fault.Fault) bool {
	for {
		select {
		case f, ok := <-in:
			if !ok {
				return true
			}
			select {
			case out <- f:
			case <-ctx.Done():
				return false
			}
		case <-ctx.Done():
			return false
		}
	}
}

func (s *Supervised) Stop() {
	// Stopping is handled via context cancellation.
}
