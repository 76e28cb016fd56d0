// Package email delivers account mail (verification links) over plain SMTP.
package email

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// Config comes from the SMTP_* environment variables.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	// From is the envelope sender (MAIL FROM), a bare mailbox address.
	From string
	// FromName is an optional display name used only in the From header.
	FromName string
}

// Sender sends HTML mail through a single SMTP host. Verification mail is
// the only traffic, so there is no queue; callers treat failures as
// best-effort and log them.
type Sender struct {
	config Config
	auth   smtp.Auth
}

func NewSender(config Config) *Sender {
	var auth smtp.Auth
	if config.User != "" && config.Password != "" {
		auth = smtp.PlainAuth("", config.User, config.Password, config.Host)
	}

	return &Sender{
		config: config,
		auth:   auth,
	}
}

// SendMail sends one HTML message. Header values are stripped of CR/LF so
// feed-derived or user-supplied strings cannot inject headers.
func (s *Sender) SendMail(ctx context.Context, to, subject, htmlBody string) error {
	addr := net.JoinHostPort(s.config.Host, s.config.Port)
	to = stripCRLF(to)
	msg := s.compose(to, subject, htmlBody)

	if s.auth != nil {
		return smtp.SendMail(addr, s.auth, s.config.From, []string{to}, msg)
	}

	// No credentials configured: unauthenticated relay, e.g. a local
	// mailcatcher in development.
	c, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.Mail(s.config.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	return c.Quit()
}

func (s *Sender) compose(to, subject, htmlBody string) []byte {
	from := s.config.From
	if name := strings.TrimSpace(s.config.FromName); name != "" {
		from = fmt.Sprintf("%s <%s>", name, s.config.From)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", stripCRLF(from))
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", stripCRLF(subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

func stripCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", "")
}
