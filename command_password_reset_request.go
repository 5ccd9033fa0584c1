package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// DefaultResetTokenTTL is the lifetime of password reset tokens
const DefaultResetTokenTTL = 15 * time.Minute

// ResetPasswordListener is notified of password reset requests
type ResetPasswordListener func(ctx context.Context, info ResetPasswordRequest)

type RequestPasswordResetMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	OnResponse func(resp *RequestPasswordResetResponse)
}

func (p RequestPasswordResetMessage) Type() string { return "user.password_reset.request" }

func (p RequestPasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.EmailFormat),
	)
}

type RequestPasswordResetResponse struct {
	Email   string
	Success bool
}

// RequestPasswordResetHandler mints a short lived token for the account
// owning the email and publishes the request to the listeners. Unknown
// emails complete the same way without publishing.
type RequestPasswordResetHandler struct {
	repo      RepositoryManager
	ttl       time.Duration
	listeners []ResetPasswordListener
	metrics   *Metrics
	activity  ActivitySink
	logger    Logger
	provider  LoggerProvider
}

// NewRequestPasswordResetHandler will create a new handler
func NewRequestPasswordResetHandler(repo RepositoryManager, ttl time.Duration) *RequestPasswordResetHandler {
	if ttl == 0 {
		ttl = DefaultResetTokenTTL
	}
	provider, logger := ResolveLogger("auth.password_reset", nil, nil)
	return &RequestPasswordResetHandler{
		repo:     repo,
		ttl:      ttl,
		activity: noopActivitySink{},
		logger:   logger,
		provider: provider,
	}
}

func (h *RequestPasswordResetHandler) WithLogger(l Logger) *RequestPasswordResetHandler {
	h.provider, h.logger = ResolveLogger("auth.password_reset", nil, l)
	return h
}

// WithLoggerProvider overrides the logger provider used by the handler.
func (h *RequestPasswordResetHandler) WithLoggerProvider(provider LoggerProvider) *RequestPasswordResetHandler {
	h.provider, h.logger = ResolveLogger("auth.password_reset", provider, h.logger)
	return h
}

// WithListener registers a listener for reset requests
func (h *RequestPasswordResetHandler) WithListener(l ResetPasswordListener) *RequestPasswordResetHandler {
	if l != nil {
		h.listeners = append(h.listeners, l)
	}
	return h
}

func (h *RequestPasswordResetHandler) WithMetrics(m *Metrics) *RequestPasswordResetHandler {
	h.metrics = m
	return h
}

func (h *RequestPasswordResetHandler) WithActivitySink(sink ActivitySink) *RequestPasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *RequestPasswordResetHandler) Execute(ctx context.Context, event RequestPasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset request",
		)
	default:
		err := h.execute(ctx, event)
		h.metrics.ResetRequest(err)
		return err
	}
}

func (h *RequestPasswordResetHandler) execute(ctx context.Context, event RequestPasswordResetMessage) error {
	event.Email = strings.TrimSpace(event.Email)
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password reset request").
			WithCode(goerrors.CodeBadRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var info *ResetPasswordRequest

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				h.logger.Info("password reset requested for unknown email", "email", event.Email)
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
		}

		token, err := h.repo.AccessTokens().MintTx(ctx, tx, user.ID, h.ttl)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset token")
		}

		info = &ResetPasswordRequest{
			Email:       user.Email,
			AccessToken: token,
			User:        user,
		}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to request password reset")
	}

	if info != nil {
		for _, listener := range h.listeners {
			listener(ctx, *info)
		}
		emitActivity(ctx, h.activity, h.logger, ActivityEvent{
			EventType: ActivityEventPasswordResetRequest,
			UserID:    info.User.ID.String(),
			Username:  info.User.Username,
		})
	}

	if event.OnResponse != nil {
		event.OnResponse(&RequestPasswordResetResponse{
			Email:   event.Email,
			Success: true,
		})
	}

	return nil
}
