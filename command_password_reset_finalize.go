package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// FinalizePasswordResetMessage carries the reset token from the mailed link
// and the new password
type FinalizePasswordResetMessage struct {
	Token    string `json:"token" example:"2QpHxbU3LcP0eJmYtVn1WfKq7Zs" doc:"Reset password token"`
	Password string `json:"password" example:"some_secret_word" doc:"Password"`
}

func (p FinalizePasswordResetMessage) Type() string { return "user.password_reset.finalize" }

func (p FinalizePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Token, validation.Required),
		validation.Field(&p.Password, validation.Required),
	)
}

// FinalizePasswordResetHandler sets the new password of the reset token owner
// and consumes the token
type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	now      func() time.Time
	metrics  *Metrics
	activity ActivitySink
	logger   Logger
	provider LoggerProvider
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager) *FinalizePasswordResetHandler {
	provider, logger := ResolveLogger("auth.password_reset", nil, nil)
	return &FinalizePasswordResetHandler{
		repo:     repo,
		now:      time.Now,
		activity: noopActivitySink{},
		logger:   logger,
		provider: provider,
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	h.provider, h.logger = ResolveLogger("auth.password_reset", nil, logger)
	return h
}

// WithLoggerProvider overrides the logger provider used by the handler.
func (h *FinalizePasswordResetHandler) WithLoggerProvider(provider LoggerProvider) *FinalizePasswordResetHandler {
	h.provider, h.logger = ResolveLogger("auth.password_reset", provider, h.logger)
	return h
}

func (h *FinalizePasswordResetHandler) WithMetrics(m *Metrics) *FinalizePasswordResetHandler {
	h.metrics = m
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		err := h.execute(ctx, event)
		h.metrics.PasswordChange(err)
		return err
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	event.Token = ParseBearerToken(event.Token)
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password reset").
			WithCode(goerrors.CodeBadRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var token *AccessToken

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		token, err = h.repo.AccessTokens().GetByIDTx(ctx, tx, strings.TrimSpace(event.Token))
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrTokenNotFound
			}
			return storeError(err, "could not retrieve password reset token")
		}

		if !token.Validate(h.now()) || token.User == nil {
			return ErrTokenExpired
		}

		passwordHash, err := HashPassword(event.Password)
		if err != nil {
			return err
		}

		if err := h.repo.Users().UpdatePasswordTx(ctx, tx, token.UserID, passwordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password").
				WithCode(goerrors.CodeInternal).
				WithTextCode(TextCodePasswordUpdate)
		}

		// the link is single use
		if err := h.repo.AccessTokens().DestroyTx(ctx, tx, token.ID); err != nil {
			return storeError(err, "failed to consume password reset token")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	h.logger.Info("password reset", "user_id", token.UserID)
	emitActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		UserID:    token.UserID.String(),
		Username:  token.User.Username,
		Metadata:  map[string]any{"reset": true},
	})

	return nil
}
