// Package throttle decides when a fault is worth a notification and sends the
// shutdown summary of everything it held back.
//
// Each fault passes through Prepare and then Decide, in that order. Prepare
// settles eligibility and counts occurrences that arrive inside the throttle
// window; Decide sends the notification when the window allows it and resets
// the fingerprint's throttle state once the transport accepts it.
package throttle

import (
	"context"
	"log/slog"
	"time"

	"github.com/setevik/faultwatch/internal/config"
	"github.com/setevik/faultwatch/internal/fault"
	"github.com/setevik/faultwatch/internal/metrics"
	"github.com/setevik/faultwatch/internal/reporter"
	"github.com/setevik/faultwatch/internal/stats"
)

// Options configures an Engine.
type Options struct {
	Instance    string
	Destination string
	// Window is the minimum time between two notifications for one
	// fingerprint. Zero disables throttling.
	Window time.Duration
	// Summary enables the shutdown summary.
	Summary bool
	// Mask reports whether a severity is eligible for notification.
	Mask func(fault.Severity) bool
}

// OptionsFromConfig builds Options from the [instance] and [notify] sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Instance:    cfg.Instance.ID,
		Destination: cfg.Notify.Destination,
		Window:      cfg.ThrottleWindow(),
		Summary:     cfg.Notify.Summary,
		Mask:        cfg.ShouldNotify,
	}
}

// BeforeSendFunc may rewrite a rendered report before it is sent.
type BeforeSendFunc func(f *fault.Fault, msg *reporter.Message)

// Engine holds the notification policy.
type Engine struct {
	stats    *stats.Engine
	renderer reporter.Renderer
	sender   reporter.Sender
	opts     Options
	metrics  *metrics.Metrics

	// BeforeSend, when set, runs on every single-fault report before it is
	// handed to the sender.
	BeforeSend BeforeSendFunc
}

// New creates an Engine.
func New(st *stats.Engine, renderer reporter.Renderer, sender reporter.Sender, opts Options, m *metrics.Metrics) *Engine {
	return &Engine{
		stats:    st,
		renderer: renderer,
		sender:   sender,
		opts:     opts,
		metrics:  m,
	}
}

// Prepare sets f.ShouldNotify to the fault's eligibility and counts the
// occurrence as suppressed when the fingerprint was notified inside the
// window. It returns the possibly updated record.
func (e *Engine) Prepare(f *fault.Fault, rec fault.Occurrence, now time.Time) fault.Occurrence {
	f.ShouldNotify = e.eligible(f)

	if f.IsFirstOccurrence || e.opts.Window <= 0 {
		return rec
	}
	if rec.NotifiedWithin(now, e.opts.Window) {
		if updated, ok := e.stats.Update(rec.Fingerprint, now, func(o *fault.Occurrence) {
			o.Notification.SuppressedSinceNotify++
		}); ok {
			rec = updated
		}
	}
	return rec
}

// Decide sends a notification for f when it is eligible, not about to be
// thrown, and outside the throttle window. It reports whether a notification
// was delivered.
func (e *Engine) Decide(ctx context.Context, f *fault.Fault, rec fault.Occurrence, now time.Time) bool {
	reason := ""
	switch {
	case f.Throw:
		reason = metrics.ReasonThrow
	case !f.ShouldNotify:
		reason = metrics.ReasonIneligible
	case e.opts.Window > 0 && rec.NotifiedWithin(now, e.opts.Window):
		reason = metrics.ReasonThrottled
	}
	if reason != "" {
		f.ShouldNotify = false
		e.metrics.Suppress(reason)
		slog.Debug("notification suppressed", "fingerprint", f.Fingerprint, "reason", reason)
		return false
	}

	msg := e.renderer.RenderReport(reporter.Report{
		Instance:   e.opts.Instance,
		To:         e.opts.Destination,
		Time:       now,
		Fault:      f,
		Occurrence: rec,
	})
	if e.BeforeSend != nil {
		e.BeforeSend(f, &msg)
	}

	if err := e.sender.Send(ctx, msg); err != nil {
		e.metrics.Failed()
		slog.Error("failed to send fault notification",
			"fingerprint", f.Fingerprint,
			"to", msg.To,
			"error", err,
		)
		return false
	}

	if _, ok := e.stats.Update(rec.Fingerprint, now, func(o *fault.Occurrence) {
		o.MarkNotified(now, msg.To)
	}); !ok {
		slog.Debug("fault record removed before notification was recorded", "fingerprint", f.Fingerprint)
	}
	e.metrics.Sent()
	slog.Info("fault notification sent",
		"fingerprint", f.Fingerprint,
		"severity", f.Severity,
		"suppressed", rec.Notification.SuppressedSinceNotify,
	)
	return true
}

// Shutdown sends one summary covering every fingerprint that was throttled
// since its last notification and has gone quiet for a full window. It
// reports whether a summary was delivered.
func (e *Engine) Shutdown(ctx context.Context, now time.Time) bool {
	if !e.opts.Summary || e.opts.Destination == "" {
		return false
	}

	candidates := e.stats.SummaryCandidates(now, e.opts.Window)
	if len(candidates) == 0 {
		return false
	}

	summary := reporter.BuildSummary(e.opts.Instance, e.opts.Destination, now, candidates)
	msg := e.renderer.RenderSummary(summary)
	if err := e.sender.Send(ctx, msg); err != nil {
		e.metrics.Failed()
		slog.Error("failed to send fault summary", "entries", len(candidates), "error", err)
		return false
	}

	for _, o := range candidates {
		e.stats.Update(o.Fingerprint, now, func(o *fault.Occurrence) {
			o.Notification.SuppressedSinceNotify = 0
		})
	}
	removed := e.stats.GC(now)
	e.metrics.Summary()
	slog.Info("fault summary sent", "entries", len(candidates), "expired", removed)
	return true
}

func (e *Engine) eligible(f *fault.Fault) bool {
	if f.Suppressed || e.opts.Destination == "" {
		return false
	}
	return e.opts.Mask == nil || e.opts.Mask(f.Severity)
}
