package auth

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
)

// AuthRequest carries the bearer token presented by a request and, once
// authenticated, the resolved token with its user
type AuthRequest struct {
	AccessToken string
	Token       *AccessToken
}

// NewAuthRequest builds an AuthRequest from an Authorization header value,
// with or without the Bearer scheme
func NewAuthRequest(authorization string) *AuthRequest {
	return &AuthRequest{AccessToken: ParseBearerToken(authorization)}
}

// ParseBearerToken strips the Bearer scheme from an Authorization value
func ParseBearerToken(authorization string) string {
	value := strings.TrimSpace(authorization)
	if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
		return strings.TrimSpace(value[7:])
	}
	return value
}

// UserID returns the owning user id of the resolved token
func (r *AuthRequest) UserID() string {
	if r == nil || r.Token == nil {
		return ""
	}
	return r.Token.UserID.String()
}

// TokenValidator resolves bearer tokens and checks they are still valid
type TokenValidator struct {
	tokens   TokenFinder
	now      func() time.Time
	logger   Logger
	provider LoggerProvider
}

// NewTokenValidator returns a validator reading tokens from the store
func NewTokenValidator(tokens TokenFinder) *TokenValidator {
	provider, logger := ResolveLogger("auth.token_validator", nil, nil)
	return &TokenValidator{
		tokens:   tokens,
		now:      time.Now,
		logger:   logger,
		provider: provider,
	}
}

func (v *TokenValidator) WithLogger(l Logger) *TokenValidator {
	v.provider, v.logger = ResolveLogger("auth.token_validator", nil, l)
	return v
}

// WithLoggerProvider overrides the logger provider used by the validator.
func (v *TokenValidator) WithLoggerProvider(provider LoggerProvider) *TokenValidator {
	v.provider, v.logger = ResolveLogger("auth.token_validator", provider, v.logger)
	return v
}

// WithClock overrides the time source used for expiry checks
func (v *TokenValidator) WithClock(now func() time.Time) *TokenValidator {
	if now != nil {
		v.now = now
	}
	return v
}

// Authenticate resolves req.AccessToken. A missing or unknown token yields
// ErrTokenNotFound, an expired token or one whose user is gone yields
// ErrTokenExpired.
func (v *TokenValidator) Authenticate(ctx context.Context, req *AuthRequest) (*AuthRequest, error) {
	if req == nil || strings.TrimSpace(req.AccessToken) == "" {
		return req, ErrTokenNotFound
	}

	token, err := v.tokens.GetByID(ctx, strings.TrimSpace(req.AccessToken))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return req, ErrTokenNotFound
		}
		return req, storeError(err, "failed to retrieve access token")
	}

	if !token.Validate(v.now()) || token.User == nil {
		v.logger.Debug("access token rejected", "user_id", token.UserID, "ttl", token.TTL)
		return req, ErrTokenExpired
	}

	req.Token = token
	return req, nil
}
