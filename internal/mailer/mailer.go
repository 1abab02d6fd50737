// Package mailer delivers outgoing e-mail.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"realblog/internal/config"
	"realblog/internal/middleware"
	"realblog/internal/models"
	"realblog/internal/observability"
)

// Message is one e-mail. When FailSilently is set a delivery failure is
// logged and swallowed instead of returned.
type Message struct {
	Kind         string
	Subject      string
	Body         string
	From         string
	To           []string
	FailSilently bool
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// New returns an SMTP sender when SMTP_HOST is configured, a log sender otherwise.
func New(cfg *config.Config) Sender {
	if cfg.SMTPHost == "" {
		return NewLogSender(middleware.Logger)
	}
	return &SMTPSender{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	}
}

// SMTPSender relays through an SMTP server with optional PLAIN auth.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}

	port := s.Port
	if port == 0 {
		port = 25
	}
	addr := net.JoinHostPort(s.Host, strconv.Itoa(port))

	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}
	send := s.send
	if send == nil {
		send = smtp.SendMail
	}

	timeout := s.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- send(addr, auth, msg.From, msg.To, render(msg)) }()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		err = ctx.Err()
	}
	return finish(ctx, msg, err)
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(l *slog.Logger) *LogSender {
	return &LogSender{logger: l}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "email not delivered, no SMTP relay configured",
		slog.String("kind", msg.Kind),
		slog.String("subject", msg.Subject),
		slog.String("to", strings.Join(msg.To, ",")),
		slog.String("body", msg.Body),
	)
	return finish(ctx, msg, nil)
}

func validate(msg Message) error {
	if msg.From == "" || len(msg.To) == 0 {
		return models.NewValidationError("email needs a sender and at least one recipient")
	}
	for _, addr := range append([]string{msg.From}, msg.To...) {
		if strings.ContainsAny(addr, "\r\n") {
			return models.NewValidationError("invalid email address")
		}
	}
	return nil
}

func finish(ctx context.Context, msg Message, err error) error {
	kind := msg.Kind
	if kind == "" {
		kind = "generic"
	}
	if err == nil {
		observability.EmailsSent.WithLabelValues(kind, "sent").Inc()
		return nil
	}

	observability.EmailsSent.WithLabelValues(kind, "failed").Inc()
	middleware.Logger.WarnContext(ctx, "email delivery failed",
		slog.String("kind", kind),
		slog.Bool("fail_silently", msg.FailSilently),
		slog.String("error", err.Error()),
	)
	if msg.FailSilently {
		return nil
	}
	return models.NewExternalError("email", err)
}

func render(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
