// Package mail sends transactional email.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/motorlot/apiserver/config"
	"go.uber.org/zap"
)

// Sender delivers a single HTML message.
type Sender interface {
	Send(ctx context.Context, to, subject, bodyHTML string) error
}

// SMTPSender handles outgoing emails via SMTP.
type SMTPSender struct {
	host     string
	port     string
	username string
	password string
	fromName string
	secure   bool
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.User,
		password: cfg.Password,
		fromName: cfg.FromName,
		secure:   cfg.Secure,
	}
}

// Send sends an email. Secure senders use implicit TLS (port 465),
// others use STARTTLS through smtp.SendMail.
func (s *SMTPSender) Send(_ context.Context, to, subject, bodyHTML string) error {
	from := fmt.Sprintf("%s <%s>", s.fromName, s.username)
	msg := buildMessage(from, to, subject, bodyHTML)
	addr := s.host + ":" + s.port
	auth := smtp.PlainAuth("", s.username, s.password, s.host)

	if !s.secure {
		if err := smtp.SendMail(addr, auth, s.username, []string{to}, msg); err != nil {
			return fmt.Errorf("send mail failed: %w", err)
		}
		return nil
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.host})
	if err != nil {
		return fmt.Errorf("tls dial failed: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return fmt.Errorf("smtp client failed: %w", err)
	}
	defer client.Quit()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("auth failed: %w", err)
	}
	if err := client.Mail(s.username); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return w.Close()
}

func buildMessage(from, to, subject, bodyHTML string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(bodyHTML)
	return []byte(b.String())
}

// LogSender writes messages to the log instead of sending them. It is
// used when no SMTP host is configured.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (l *LogSender) Send(_ context.Context, to, subject, bodyHTML string) error {
	l.log.Info("email not sent, smtp disabled",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(bodyHTML)),
	)
	return nil
}

// New returns an SMTP sender, or a LogSender when cfg.Host is empty.
func New(cfg config.SMTPConfig, log *zap.Logger) Sender {
	if strings.TrimSpace(cfg.Host) == "" {
		return NewLogSender(log)
	}
	return NewSMTPSender(cfg)
}

// PasswordResetBody renders the password reset email.
func PasswordResetBody(name, link string) string {
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(`<p>Hi %s,</p>
<p>We received a request to reset your Motorlot password. The link below is valid for one hour.</p>
<p><a href="%s">Reset password</a></p>
<p>If you did not ask for this, you can ignore this email.</p>`,
		html.EscapeString(name), html.EscapeString(link))
}
