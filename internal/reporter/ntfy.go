package reporter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/setevik/faultwatch/internal/config"
	"github.com/setevik/faultwatch/internal/fault"
)

// NtfySender posts notifications to an ntfy topic URL given as the message
// destination.
type NtfySender struct {
	cfg    *config.Config
	client *http.Client
}

// NewNtfy creates a new NtfySender.
func NewNtfy(cfg *config.Config) *NtfySender {
	return &NtfySender{
		cfg: cfg,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Send posts msg to msg.To.
func (s *NtfySender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("ntfy: no destination")
	}

	priority := s.priority(msg)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, msg.To, strings.NewReader(msg.Body))
	if err != nil {
		return fmt.Errorf("creating ntfy request: %w", err)
	}

	req.Header.Set("Title", msg.Subject)
	req.Header.Set("Priority", priority)
	req.Header.Set("Tags", Tags(msg))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}

	slog.Debug("ntfy notification sent", "subject", msg.Subject, "priority", priority)
	return nil
}

func (s *NtfySender) priority(msg Message) string {
	if msg.Kind == KindSummary {
		return "low"
	}
	return s.cfg.NtfyPriority(msg.Severity)
}

// severityTags maps severities to ntfy tag names.
var severityTags = map[fault.Severity]string{
	fault.SevFatal:   "skull,fault",
	fault.SevError:   "rotating_light,fault",
	fault.SevWarning: "warning,fault",
	fault.SevNotice:  "information_source,fault",
}

// Tags returns the ntfy tags string for a message.
func Tags(msg Message) string {
	switch msg.Kind {
	case KindSummary:
		return "bar_chart,summary"
	case KindTest:
		return "white_check_mark,test"
	}
	if tags, ok := severityTags[msg.Severity]; ok {
		return tags
	}
	return "warning"
}
