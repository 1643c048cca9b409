package reporter

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"os"
	"strings"
	"time"

	"github.com/setevik/faultwatch/internal/config"
)

// SMTPSender mails plain-text notifications to the message destination.
type SMTPSender struct {
	addr string
	from string
	auth smtp.Auth

	// timeout bounds a delivery when ctx carries no deadline.
	timeout time.Duration
	dialer  net.Dialer

	sendMail func(ctx context.Context, to []string, msg []byte) error
}

// NewSMTP creates an SMTPSender from the [smtp] config section.
func NewSMTP(cfg *config.Config) *SMTPSender {
	s := &SMTPSender{
		addr:    cfg.SMTP.Addr,
		from:    cfg.SMTP.From,
		timeout: 30 * time.Second,
	}
	s.sendMail = s.deliver
	if s.from == "" {
		host, _ := os.Hostname()
		if host == "" {
			host = "localhost"
		}
		s.from = "faultwatch@" + host
	}
	if cfg.SMTP.Username != "" {
		host, _, err := net.SplitHostPort(s.addr)
		if err != nil {
			host = s.addr
		}
		s.auth = smtp.PlainAuth("", cfg.SMTP.Username, cfg.SMTP.Password, host)
	}
	return s
}

// Send mails msg to the comma-separated addresses in msg.To.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	to := splitAddrs(msg.To)
	if len(to) == 0 {
		return fmt.Errorf("smtp: no destination")
	}

	if err := s.sendMail(ctx, to, s.compose(to, msg)); err != nil {
		return fmt.Errorf("sending mail via %s: %w", s.addr, err)
	}

	slog.Debug("mail notification sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

// deliver runs one SMTP session. The connection deadline follows ctx, and
// cancelling ctx aborts a session that is blocked on the relay.
func (s *SMTPSender) deliver(ctx context.Context, to []string, msg []byte) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	conn, err := s.dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	host, _, err := net.SplitHostPort(s.addr)
	if err != nil {
		host = s.addr
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if s.auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(s.auth); err != nil {
				return err
			}
		}
	}

	if err := c.Mail(s.from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (s *SMTPSender) compose(to []string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", headerValue(msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(EscapeNUL(msg.Body))
	return []byte(b.String())
}

// EscapeNUL replaces NUL bytes with a visible \x00 so mail transfer agents do
// not truncate the body.
func EscapeNUL(s string) string {
	return strings.ReplaceAll(s, "\x00", `\x00`)
}

func headerValue(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

func splitAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
