// Package pipeline runs each fault through the stats and throttle engines in
// a fixed order and sends the shutdown summary when input ends.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/setevik/faultwatch/internal/fault"
	"github.com/setevik/faultwatch/internal/source"
	"github.com/setevik/faultwatch/internal/stats"
	"github.com/setevik/faultwatch/internal/throttle"
)

// Pipeline owns one stats engine and one throttle engine. Handle calls are
// serialized; each fault completes both passes before the next one starts.
type Pipeline struct {
	stats    *stats.Engine
	throttle *throttle.Engine
	now      func() time.Time

	mu       sync.Mutex
	shutdown bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline.
func New(st *stats.Engine, th *throttle.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		stats:    st,
		throttle: th,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle records f, decides whether to notify, and annotates f with the
// outcome. The only error it returns wraps fault.ErrInvalid; store and
// transport failures are logged and absorbed.
func (p *Pipeline) Handle(ctx context.Context, f *fault.Fault) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()

	rec, _, err := p.stats.Record(f, now)
	if err != nil {
		return err
	}

	rec = p.throttle.Prepare(f, rec, now)
	p.throttle.Decide(ctx, f, rec, now)

	if final, ok := p.stats.Find(f.Fingerprint); ok {
		rec = final
	}
	f.Stats = &rec

	slog.Debug("fault handled",
		"fingerprint", f.Fingerprint,
		"severity", f.Severity,
		"first", f.IsFirstOccurrence,
		"notified", f.ShouldNotify,
		"count", rec.Count,
	)
	return nil
}

// Shutdown sends the summary of suppressed faults. Only the first call has
// any effect.
func (p *Pipeline) Shutdown(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shutdown {
		return
	}
	p.shutdown = true
	p.throttle.Shutdown(ctx, p.now())
}

// Run handles faults from src until it closes or ctx is cancelled, then
// calls Shutdown with a context that outlives ctx.
func (p *Pipeline) Run(ctx context.Context, src source.Source) error {
	faults, err := src.Faults(ctx)
	if err != nil {
		return err
	}
	defer src.Stop()

	handled, rejected := 0, 0
loop:
	for {
		select {
		case f, ok := <-faults:
			if !ok {
				break loop
			}
			if err := p.Handle(ctx, f); err != nil {
				rejected++
				slog.Warn("rejected fault", "id", f.ID, "error", err)
				continue
			}
			handled++
		case <-ctx.Done():
			break loop
		}
	}

	slog.Info("fault input ended", "handled", handled, "rejected", rejected)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	p.Shutdown(shutdownCtx)
	return nil
}
