package auth

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	host         string
	port         int
	httpOnly     bool
	reverseProxy bool
	mailFrom     string
}

func (c testConfig) GetHost() string                 { return c.host }
func (c testConfig) GetPort() int                    { return c.port }
func (c testConfig) GetHTTPOnly() bool               { return c.httpOnly }
func (c testConfig) GetReverseProxy() bool           { return c.reverseProxy }
func (c testConfig) GetDomain() string               { return "example.com" }
func (c testConfig) GetTokenTTL() time.Duration      { return time.Hour }
func (c testConfig) GetResetTokenTTL() time.Duration { return time.Minute }
func (c testConfig) GetMailFrom() string             { return c.mailFrom }

type mailerSpy struct {
	sent []MailMessage
	err  error
}

func (m *mailerSpy) Send(_ context.Context, msg MailMessage) error {
	m.sent = append(m.sent, msg)
	return m.err
}

func TestResetPasswordURL(t *testing.T) {
	cases := []struct {
		name     string
		config   testConfig
		expected string
	}{
		{"https with port", testConfig{host: "auth.example.com", port: 3000}, "https://auth.example.com:3000/reset-password-form"},
		{"http only", testConfig{host: "localhost", port: 8080, httpOnly: true}, "http://localhost:8080/reset-password-form"},
		{"behind proxy", testConfig{host: "auth.example.com", port: 3000, reverseProxy: true}, "https://auth.example.com/reset-password-form"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hooks := NewNotificationHooks(tc.config, &mailerSpy{})
			assert.Equal(t, tc.expected, hooks.ResetPasswordURL())
		})
	}
}

func TestOnResetPasswordRequest(t *testing.T) {
	mailer := &mailerSpy{}
	hooks := NewNotificationHooks(testConfig{host: "localhost", port: 3000, httpOnly: true}, mailer).
		WithLogger(&captureLogger{})

	hooks.OnResetPasswordRequest(context.Background(), ResetPasswordRequest{
		Email:       "alice@example.com",
		AccessToken: &AccessToken{ID: "tok123"},
	})

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, "alice@example.com", msg.From)
	assert.Equal(t, ResetPasswordSubject, msg.Subject)
	assert.Equal(t, `Click <a href="http://localhost:3000/reset-password-form/tok123">here</a> to reset your password.`, msg.HTML)
}

func TestOnResetPasswordRequestUsesConfiguredSender(t *testing.T) {
	mailer := &mailerSpy{}
	hooks := NewNotificationHooks(testConfig{host: "localhost", mailFrom: "noreply@example.com"}, mailer)

	hooks.OnResetPasswordRequest(context.Background(), ResetPasswordRequest{Email: "alice@example.com"})

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "noreply@example.com", mailer.sent[0].From)
}

func TestOnResetPasswordRequestLogsDeliveryFailure(t *testing.T) {
	logger := &captureLogger{}
	hooks := NewNotificationHooks(testConfig{host: "localhost"}, &mailerSpy{err: errors.New("smtp down")}).
		WithLogger(logger)

	hooks.OnResetPasswordRequest(context.Background(), ResetPasswordRequest{Email: "alice@example.com"})
	assert.True(t, logger.has("error", "failed to send password reset email"))
}

func TestSendMailRejectsAnonymousUsers(t *testing.T) {
	mailer := &mailerSpy{}
	hooks := NewNotificationHooks(testConfig{host: "localhost"}, mailer)

	err := hooks.SendMail(context.Background(), &User{Email: "guest@anonymous"}, MailMessage{Subject: "hi"})
	assert.ErrorIs(t, err, ErrAnonymousAddress)

	err = hooks.SendMail(context.Background(), nil, MailMessage{Subject: "hi"})
	assert.ErrorIs(t, err, ErrAnonymousAddress)

	assert.Empty(t, mailer.sent)
}

func TestSendMailAddressesUser(t *testing.T) {
	mailer := &mailerSpy{}
	hooks := NewNotificationHooks(testConfig{host: "localhost", mailFrom: "noreply@example.com"}, mailer)

	err := hooks.SendMail(context.Background(), &User{Email: "alice@example.com"}, MailMessage{To: "other@example.com", Subject: "hi"})
	require.NoError(t, err)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "alice@example.com", mailer.sent[0].To)
	assert.Equal(t, "noreply@example.com", mailer.sent[0].From)
}

func TestSendMailSwallowsDeliveryFailure(t *testing.T) {
	logger := &captureLogger{}
	hooks := NewNotificationHooks(testConfig{host: "localhost"}, &mailerSpy{err: errors.New("smtp down")}).
		WithLogger(logger)

	err := hooks.SendMail(context.Background(), &User{Email: "alice@example.com"}, MailMessage{Subject: "hi"})
	assert.NoError(t, err)
	assert.True(t, logger.has("error", "failed to send email"))
}

func TestSMTPMailerSend(t *testing.T) {
	mailer := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "user", Password: "pass"})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotBody []byte
	var gotAuth smtp.Auth
	mailer.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotBody = addr, a, from, to, msg
		return nil
	}

	err := mailer.Send(context.Background(), MailMessage{
		To:      "alice@example.com",
		From:    "noreply@example.com",
		Subject: "Hello",
		HTML:    "<b>hi</b>",
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.Equal(t, []string{"alice@example.com"}, gotTo)
	body := string(gotBody)
	assert.True(t, strings.HasPrefix(body, "From: noreply@example.com\r\n"))
	assert.Contains(t, body, "Subject: Hello\r\n")
	assert.Contains(t, body, "Content-Type: text/html")
	assert.True(t, strings.HasSuffix(body, "<b>hi</b>"))
}

func TestSMTPMailerSendFailure(t *testing.T) {
	mailer := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 25})
	mailer.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := mailer.Send(context.Background(), MailMessage{To: "alice@example.com", Text: "hi"})
	require.Error(t, err)
	assert.Equal(t, "failed to deliver mail", ErrorMessage(err))
}

func TestLogMailerSend(t *testing.T) {
	logger := &captureLogger{}
	mailer := NewLogMailer(logger)

	require.NoError(t, mailer.Send(context.Background(), MailMessage{To: "alice@example.com"}))
	assert.True(t, logger.has("info", "mail"))
}
