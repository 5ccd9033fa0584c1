package auth

import (
	"context"
	"fmt"
	"strings"
)

// ResetPasswordPath is the form the reset link points to
const ResetPasswordPath = "/reset-password-form"

// ResetPasswordSubject is the subject of reset password mails
const ResetPasswordSubject = "Password change request"

// AnonymousDomain is the email domain of placeholder users
const AnonymousDomain = "anonymous"

// MailMessage is an outgoing mail
type MailMessage struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	HTML    string `json:"html,omitempty"`
	Text    string `json:"text,omitempty"`
}

// ResetPasswordRequest is published when a user asks to reset the password
type ResetPasswordRequest struct {
	Email       string
	AccessToken *AccessToken
	User        *User
}

// NotificationHooks sends the mails triggered by user events
type NotificationHooks struct {
	config   Config
	mailer   Mailer
	logger   Logger
	provider LoggerProvider
}

// NewNotificationHooks will create a new NotificationHooks
func NewNotificationHooks(config Config, mailer Mailer) *NotificationHooks {
	provider, logger := ResolveLogger("auth.notifications", nil, nil)
	return &NotificationHooks{
		config:   config,
		mailer:   mailer,
		logger:   logger,
		provider: provider,
	}
}

func (h *NotificationHooks) WithLogger(l Logger) *NotificationHooks {
	h.provider, h.logger = ResolveLogger("auth.notifications", nil, l)
	return h
}

// WithLoggerProvider overrides the logger provider used by the hooks.
func (h *NotificationHooks) WithLoggerProvider(provider LoggerProvider) *NotificationHooks {
	h.provider, h.logger = ResolveLogger("auth.notifications", provider, h.logger)
	return h
}

// ResetPasswordURL returns the base URL of the reset password form
func (h *NotificationHooks) ResetPasswordURL() string {
	scheme := "https"
	if h.config.GetHTTPOnly() {
		scheme = "http"
	}

	host := h.config.GetHost()
	if !h.config.GetReverseProxy() {
		host = fmt.Sprintf("%s:%d", host, h.config.GetPort())
	}

	return fmt.Sprintf("%s://%s%s", scheme, host, ResetPasswordPath)
}

// ResetPasswordMessage builds the reset mail for info
func (h *NotificationHooks) ResetPasswordMessage(info ResetPasswordRequest) MailMessage {
	link := h.ResetPasswordURL()
	if info.AccessToken != nil {
		link = link + "/" + info.AccessToken.ID
	}

	from := info.Email
	if f := strings.TrimSpace(h.config.GetMailFrom()); f != "" {
		from = f
	}

	return MailMessage{
		To:      info.Email,
		From:    from,
		Subject: ResetPasswordSubject,
		HTML:    fmt.Sprintf(`Click <a href="%s">here</a> to reset your password.`, link),
	}
}

// OnResetPasswordRequest mails the reset link. Delivery failures are logged.
func (h *NotificationHooks) OnResetPasswordRequest(ctx context.Context, info ResetPasswordRequest) {
	msg := h.ResetPasswordMessage(info)
	if err := h.mailer.Send(ctx, msg); err != nil {
		h.logger.Error("failed to send password reset email", "to", msg.To, "error", err)
		return
	}
	h.logger.Info("sent password reset email", "to", msg.To)
}

// SendMail mails user, addressing msg to the user's email. Placeholder
// addresses on the anonymous domain are rejected without contacting the
// mailer. Delivery failures are logged, not returned.
func (h *NotificationHooks) SendMail(ctx context.Context, user *User, msg MailMessage) error {
	if user == nil || user.EmailDomain() == AnonymousDomain {
		return ErrAnonymousAddress
	}

	msg.To = user.Email
	if msg.From == "" {
		msg.From = h.config.GetMailFrom()
	}

	if err := h.mailer.Send(ctx, msg); err != nil {
		h.logger.Error("failed to send email", "to", msg.To, "subject", msg.Subject, "error", err)
	}

	return nil
}
