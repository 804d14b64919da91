// Package email provides best-effort outbound email delivery. Failures are
// swallowed and reported only through the boolean result: callers treat false
// as "not sent" and decide for themselves whether to care.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Sender delivers a message to a single recipient. There is no delivery
// guarantee and no retry.
type Sender interface {
	Send(ctx context.Context, to, subject, body, fromName string) bool
}

// SMTPSender sends mail through a plain SMTP relay.
type SMTPSender struct {
	Addr string // host:port
	From string
	Auth smtp.Auth
}

// NewSMTPSender returns a sender for the given relay. Username may be empty
// for unauthenticated relays.
func NewSMTPSender(addr, from, username, password string) *SMTPSender {
	s := &SMTPSender{Addr: addr, From: from}
	if username != "" {
		host := addr
		if i := strings.IndexByte(addr, ':'); i >= 0 {
			host = addr[:i]
		}
		s.Auth = smtp.PlainAuth("", username, password, host)
	}
	return s
}

// Send implements Sender.
func (s *SMTPSender) Send(_ context.Context, to, subject, body, fromName string) bool {
	msg := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		fromName, s.From, to, subject, body)
	if err := smtp.SendMail(s.Addr, s.Auth, s.From, []string{to}, []byte(msg)); err != nil {
		slog.Warn("sending email", "to", to, "err", err)
		return false
	}
	return true
}

// Noop is a Sender that records nothing and always reports success. Used when
// no relay is configured and in tests.
type Noop struct{}

// Send implements Sender.
func (Noop) Send(context.Context, string, string, string, string) bool { return true }
