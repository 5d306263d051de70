// Package mail delivers contact form submissions.
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// ErrDelivery wraps every failure to hand a message to the SMTP server.
var ErrDelivery = errors.New("mail delivery failed")

// Message is an outgoing plain-text email.
type Message struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	Body    string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Contact is a contact form submission.
type Contact struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// ContactMessage formats a submission for the site owner. Replies go to the
// sender.
func ContactMessage(from, to string, c Contact) Message {
	subject := strings.TrimSpace(c.Subject)
	if subject == "" {
		subject = "New message"
	}
	var body strings.Builder
	fmt.Fprintf(&body, "From: %s <%s>\r\n\r\n", c.Name, c.Email)
	body.WriteString(c.Message)
	return Message{
		From:    from,
		To:      []string{to},
		ReplyTo: (&mail.Address{Name: c.Name, Address: c.Email}).String(),
		Subject: "[Roastery contact] " + subject,
		Body:    body.String(),
	}
}

// build renders msg as a plain-text go-mail message dated now.
func (m Message) build(now time.Time) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(m.From); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if len(m.To) == 0 {
		return nil, errors.New("no recipients")
	}
	if err := msg.To(m.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	if m.ReplyTo != "" {
		if err := msg.ReplyTo(m.ReplyTo); err != nil {
			return nil, fmt.Errorf("invalid reply-to: %w", err)
		}
	}
	msg.Subject(m.Subject)
	msg.SetDateWithValue(now)
	msg.SetBodyString(gomail.TypeTextPlain, m.Body)
	return msg, nil
}

// SMTPConfig configures SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// SMTPMailer sends mail through an SMTP relay using PLAIN auth, upgrading to
// TLS when the server offers STARTTLS.
type SMTPMailer struct {
	cfg SMTPConfig
	now func() time.Time
}

// NewSMTPMailer creates an SMTPMailer.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPMailer{cfg: cfg, now: time.Now}
}

// Send delivers msg. The whole exchange is bounded by ctx and the
// configured timeout.
func (s *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := s.send(ctx, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	return nil
}

func (s *SMTPMailer) send(ctx context.Context, msg Message) error {
	m, err := msg.build(s.now())
	if err != nil {
		return err
	}
	client, err := gomail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("failed to configure SMTP client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send via %s:%d: %w", s.cfg.Host, s.cfg.Port, err)
	}
	return nil
}

func (s *SMTPMailer) clientOptions() []gomail.Option {
	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTimeout(s.cfg.Timeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTLSConfig(&tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

// NoopMailer logs messages instead of sending them, for deployments without
// SMTP settings.
type NoopMailer struct {
	Logger *zap.Logger
}

// Send logs msg and reports success.
func (n NoopMailer) Send(_ context.Context, msg Message) error {
	if n.Logger != nil {
		n.Logger.Info("mail not sent: SMTP is not configured",
			zap.Strings("to", msg.To),
			zap.String("reply_to", msg.ReplyTo),
			zap.String("subject", msg.Subject),
		)
	}
	return nil
}
