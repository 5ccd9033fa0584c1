package auth

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// MaxLoginAttempts is the maximun number of attempts a user gets
// in a period
var MaxLoginAttempts = 5

// CoolDownPeriod is the period in which we enforce a cool down
var CoolDownPeriod = "24h"

// DefaultTokenTTL is used when no ttl is configured
const DefaultTokenTTL = 14 * 24 * time.Hour

// Credentials identify a user by username or email plus password
type Credentials struct {
	Username string
	Email    string
	Password string
}

// Identifier returns the email, falling back to the username. It names the
// account the login looks up.
func (c Credentials) Identifier() string {
	if e := strings.TrimSpace(c.Email); e != "" {
		return e
	}
	return strings.TrimSpace(c.Username)
}

// CredentialAuthenticator runs the identity store login procedure
type CredentialAuthenticator struct {
	users    UserTracker
	tokens   TokenMinter
	ttl      time.Duration
	password PasswordAuthenticator
	logger   Logger
	provider LoggerProvider
}

// NewCredentialAuthenticator will create a new CredentialAuthenticator
func NewCredentialAuthenticator(users UserTracker, tokens TokenMinter, ttl time.Duration) *CredentialAuthenticator {
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	provider, logger := ResolveLogger("auth.credentials", nil, nil)
	return &CredentialAuthenticator{
		users:    users,
		tokens:   tokens,
		ttl:      ttl,
		password: NewPasswordAuthenticator(),
		logger:   logger,
		provider: provider,
	}
}

func (a *CredentialAuthenticator) WithLogger(l Logger) *CredentialAuthenticator {
	a.provider, a.logger = ResolveLogger("auth.credentials", nil, l)
	return a
}

// WithLoggerProvider overrides the logger provider used by the authenticator.
func (a *CredentialAuthenticator) WithLoggerProvider(provider LoggerProvider) *CredentialAuthenticator {
	a.provider, a.logger = ResolveLogger("auth.credentials", provider, a.logger)
	return a
}

// WithPasswordAuthenticator replaces the bcrypt password check
func (a *CredentialAuthenticator) WithPasswordAuthenticator(p PasswordAuthenticator) *CredentialAuthenticator {
	if p != nil {
		a.password = p
	}
	return a
}

// Login verifies the credentials and mints an access token for the user
func (a *CredentialAuthenticator) Login(ctx context.Context, creds Credentials) (*AccessToken, error) {
	user, err := a.lookup(ctx, creds)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, storeError(err, "failed to retrieve user during login")
	}

	if user.LoginAttemptAt != nil {
		expired, err := IsOutsideThresholdPeriod(*user.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to calculate login attempt cooldown")
		}

		if expired {
			user.LoginAttempts = 0
		}
	}

	//if we have too many attempts in the given window, cool off!
	if user.LoginAttempts > MaxLoginAttempts {
		return nil, ErrTooManyLoginAttempts
	}

	if err := a.password.ComparePasswordAndHash(creds.Password, user.PasswordHash); err != nil {
		if err2 := a.users.TrackAttemptedLogin(ctx, user); err2 != nil {
			return nil, storeError(err2, "failed to track login attempt")
		}
		return nil, ErrMismatchedHashAndPassword
	}

	if err := a.users.TrackSuccessfulLogin(ctx, user); err != nil {
		a.logger.Error("failed to track successful login", "error", err, "user_id", user.ID)
	}

	token, err := a.tokens.Mint(ctx, user.ID, a.ttl)
	if err != nil {
		return nil, storeError(err, "failed to create access token")
	}

	token.User = user
	return token, nil
}

// lookup prefers the email when both identifiers are present
func (a *CredentialAuthenticator) lookup(ctx context.Context, creds Credentials) (*User, error) {
	if email := strings.TrimSpace(creds.Email); email != "" {
		return a.users.GetByEmail(ctx, email)
	}
	return a.users.GetByUsername(ctx, strings.TrimSpace(creds.Username))
}
