package auth

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// LogMailer writes mails to the logger instead of delivering them
type LogMailer struct {
	logger Logger
}

// NewLogMailer returns a mailer for development setups
func NewLogMailer(logger Logger) *LogMailer {
	_, logger = ResolveLogger("auth.mailer", nil, logger)
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg MailMessage) error {
	m.logger.Info("mail", "message", print.MaybePrettyJSON(msg))
	return nil
}

// SMTPConfig configures SMTPMailer
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPMailer delivers mails over SMTP with PLAIN auth
type SMTPMailer struct {
	config SMTPConfig
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer returns a mailer for config
func NewSMTPMailer(config SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		config: config,
		send:   smtp.SendMail,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg MailMessage) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "context cancelled before sending mail")
	}

	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	if err := m.send(addr, auth, msg.From, []string{msg.To}, buildMIME(msg)); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to deliver mail").
			WithMetadata(map[string]any{"to": msg.To, "subject": msg.Subject})
	}

	return nil
}

func buildMIME(msg MailMessage) []byte {
	contentType := "text/plain"
	body := msg.Text
	if msg.HTML != "" {
		contentType = "text/html"
		body = msg.HTML
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s; charset=\"UTF-8\"\r\n\r\n", contentType)
	b.WriteString(body)
	return []byte(b.String())
}
