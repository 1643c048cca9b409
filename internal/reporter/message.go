// Package reporter renders fault notifications and delivers them over a transport.
package reporter

import (
	"context"

	"github.com/setevik/faultwatch/internal/fault"
)

// Kind distinguishes the shape of a notification.
type Kind int

const (
	KindReport Kind = iota
	KindSummary
	KindTest
)

// Message is a rendered notification ready for a transport.
type Message struct {
	To       string
	Subject  string
	Body     string
	Severity fault.Severity
	Kind     Kind
}

// Sender delivers a message. Implementations return an error on failure and
// never panic; the caller decides whether to log or drop.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
