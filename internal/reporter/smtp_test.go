package reporter

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setevik/faultwatch/internal/config"
	"github.com/setevik/faultwatch/internal/fault"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
	auth smtp.Auth
}

func stubSMTP(cfg *config.Config, err error) (*SMTPSender, *sentMail) {
	got := &sentMail{}
	s := NewSMTP(cfg)
	s.sendMail = func(_ context.Context, to []string, msg []byte) error {
		*got = sentMail{addr: s.addr, from: s.from, to: to, msg: string(msg), auth: s.auth}
		return err
	}
	return s, got
}

func TestSMTPSend(t *testing.T) {
	cfg := config.Default()
	cfg.SMTP.Addr = "mail.example.com:587"
	cfg.SMTP.From = "faults@example.com"
	s, got := stubSMTP(cfg, nil)

	err := s.Send(context.Background(), Message{
		To:       "ops@example.com, dev@example.com",
		Subject:  "Fault: web-1: bad\r\nBcc: evil@example.com",
		Body:     "message: a\x00b\n",
		Severity: fault.SevError,
	})
	require.NoError(t, err)

	assert.Equal(t, "mail.example.com:587", got.addr)
	assert.Equal(t, "faults@example.com", got.from)
	assert.Equal(t, []string{"ops@example.com", "dev@example.com"}, got.to)
	assert.Nil(t, got.auth)
	assert.Contains(t, got.msg, "Subject: Fault: web-1: bad  Bcc: evil@example.com\r\n")
	assert.Contains(t, got.msg, "To: ops@example.com, dev@example.com\r\n")
	assert.Contains(t, got.msg, "\r\n\r\nmessage: a\\x00b\n")
	assert.NotContains(t, got.msg, "\x00")
}

func TestSMTPAuth(t *testing.T) {
	cfg := config.Default()
	cfg.SMTP.Addr = "mail.example.com:587"
	cfg.SMTP.Username = "alerts"
	cfg.SMTP.Password = "secret"
	s, got := stubSMTP(cfg, nil)

	require.NoError(t, s.Send(context.Background(), Message{To: "ops@example.com"}))
	assert.NotNil(t, got.auth)
	assert.Contains(t, got.from, "faultwatch@")
}

func TestSMTPSendFailure(t *testing.T) {
	s, _ := stubSMTP(config.Default(), errors.New("connection refused"))

	err := s.Send(context.Background(), Message{To: "ops@example.com"})
	assert.ErrorContains(t, err, "connection refused")
}

func TestSMTPNoDestination(t *testing.T) {
	s, got := stubSMTP(config.Default(), nil)

	assert.Error(t, s.Send(context.Background(), Message{To: " , "}))
	assert.Empty(t, got.addr)
}

func TestEscapeNUL(t *testing.T) {
	assert.Equal(t, `a\x00b\x00`, EscapeNUL("a\x00b\x00"))
	assert.Equal(t, "plain", EscapeNUL("plain"))
}

// fakeRelay accepts one SMTP session on a local listener and returns the
// DATA payload it received.
func fakeRelay(t *testing.T) (string, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	data := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		reply := func(line string) { conn.Write([]byte(line + "\r\n")) }

		reply("220 relay.test ESMTP")
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				reply("250 relay.test")
			case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
				reply("250 ok")
			case cmd == "DATA":
				reply("354 go ahead")
				var b strings.Builder
				for {
					l, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if l == ".\r\n" {
						break
					}
					b.WriteString(l)
				}
				data <- b.String()
				reply("250 queued")
			case cmd == "QUIT":
				reply("221 bye")
				return
			default:
				reply("502 unsupported")
			}
		}
	}()
	return ln.Addr().String(), data
}

func TestSMTPDeliver(t *testing.T) {
	addr, data := fakeRelay(t)
	cfg := config.Default()
	cfg.SMTP.Addr = addr
	cfg.SMTP.From = "faults@example.com"

	err := NewSMTP(cfg).Send(context.Background(), Message{
		To:      "ops@example.com",
		Subject: "Fault: web-1: boom",
		Body:    "message: boom\n",
	})
	require.NoError(t, err)

	select {
	case got := <-data:
		assert.Contains(t, got, "Subject: Fault: web-1: boom\r\n")
		assert.Contains(t, got, "message: boom")
	case <-time.After(5 * time.Second):
		t.Fatal("relay received no message")
	}
}

func TestSMTPDeliverHonoursContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	accepted := make(chan net.Conn, 1)
	t.Cleanup(func() {
		ln.Close()
		select {
		case conn := <-accepted:
			conn.Close()
		default:
		}
	})
	go func() {
		// Accept and never greet.
		if conn, err := ln.Accept(); err == nil {
			accepted <- conn
		}
	}()

	cfg := config.Default()
	cfg.SMTP.Addr = ln.Addr().String()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = NewSMTP(cfg).Send(ctx, Message{To: "ops@example.com"})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
