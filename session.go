package auth

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
)

// LoginProvider runs the identity store login procedure
type LoginProvider interface {
	Login(ctx context.Context, creds Credentials) (*AccessToken, error)
}

// Authenticator resolves the token of an AuthRequest
type Authenticator interface {
	Authenticate(ctx context.Context, req *AuthRequest) (*AuthRequest, error)
}

// SignInOptions are the sign in inputs
type SignInOptions struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// Validate checks an identifier and a password are present
func (o SignInOptions) Validate() error {
	if strings.TrimSpace(o.Username) == "" && strings.TrimSpace(o.Email) == "" {
		return ErrNoUsername
	}
	if o.Password == "" {
		return ErrNoPassword
	}
	return nil
}

// SignInResult is either a session with its user or an error code
type SignInResult struct {
	Session *AccessToken `json:"session,omitempty"`
	User    *User        `json:"user,omitempty"`
	Error   string       `json:"error,omitempty"`
	cause   error
}

// Err returns the internal cause of a failed sign in
func (r SignInResult) Err() error { return r.cause }

// SignOutOptions are the sign out inputs
type SignOutOptions struct {
	RemoveAllAccessTokens bool `json:"removeAllAccessTokens,omitempty"`
}

// ChangePasswordOptions are the change password inputs
type ChangePasswordOptions struct {
	Password string `json:"password,omitempty"`
}

// SessionResult is the outcome of sign out and change password
type SessionResult struct {
	Success bool   `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
	cause   error
}

// Err returns the internal cause of a failed operation
func (r SessionResult) Err() error { return r.cause }

// SessionManager signs users in and out and changes their password
type SessionManager struct {
	login     LoginProvider
	users     SessionUsers
	tokens    TokenRevoker
	validator Authenticator
	limiter   *SignInLimiter
	metrics   *Metrics
	activity  ActivitySink
	logger    Logger
	provider  LoggerProvider
}

// NewSessionManager will create a new SessionManager
func NewSessionManager(login LoginProvider, users SessionUsers, tokens TokenRevoker, validator Authenticator) *SessionManager {
	provider, logger := ResolveLogger("auth.session", nil, nil)
	return &SessionManager{
		login:     login,
		users:     users,
		tokens:    tokens,
		validator: validator,
		activity:  noopActivitySink{},
		logger:    logger,
		provider:  provider,
	}
}

func (s *SessionManager) WithLogger(l Logger) *SessionManager {
	s.provider, s.logger = ResolveLogger("auth.session", nil, l)
	return s
}

// WithLoggerProvider overrides the logger provider used by the manager.
func (s *SessionManager) WithLoggerProvider(provider LoggerProvider) *SessionManager {
	s.provider, s.logger = ResolveLogger("auth.session", provider, s.logger)
	return s
}

// WithSignInLimiter throttles sign in attempts per identifier
func (s *SessionManager) WithSignInLimiter(l *SignInLimiter) *SessionManager {
	s.limiter = l
	return s
}

func (s *SessionManager) WithMetrics(m *Metrics) *SessionManager {
	s.metrics = m
	return s
}

func (s *SessionManager) WithActivitySink(sink ActivitySink) *SessionManager {
	s.activity = normalizeActivitySink(sink)
	return s
}

// SignIn logs the user in and returns the new session with the user and its
// role names. Failures are reported as result codes, the cause is only logged.
func (s *SessionManager) SignIn(ctx context.Context, opts SignInOptions) SignInResult {
	if err := opts.Validate(); err != nil {
		code := ResultNoPassword
		if HasTextCode(err, TextCodeNoUsername) {
			code = ResultNoUsername
		}
		return SignInResult{Error: code, cause: err}
	}

	creds := Credentials{
		Username: strings.TrimSpace(opts.Username),
		Email:    strings.TrimSpace(opts.Email),
		Password: opts.Password,
	}

	token, user, err := s.signIn(ctx, creds)
	s.metrics.SignIn(err)

	if err != nil {
		s.logger.Warn("sign in failed", "identifier", creds.Identifier(), "error", err)
		emitActivity(ctx, s.activity, s.logger, ActivityEvent{
			EventType: ActivityEventSignInFailure,
			Username:  creds.Identifier(),
		})
		return SignInResult{Error: ResultLoginFailed, cause: err}
	}

	emitActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventSignInSuccess,
		UserID:    user.ID.String(),
		Username:  user.Username,
	})

	return SignInResult{Session: token, User: user}
}

func (s *SessionManager) signIn(ctx context.Context, creds Credentials) (*AccessToken, *User, error) {
	if !s.limiter.Allow(creds.Identifier()) {
		return nil, nil, ErrLoginThrottled
	}

	token, err := s.login.Login(ctx, creds)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.users.FindByIDWithRoles(ctx, token.UserID)
	if err != nil {
		return nil, nil, storeError(err, "failed to load signed in user")
	}

	token.User = nil
	return token, user, nil
}

// SignOut destroys the presented token, or every token of its user when
// RemoveAllAccessTokens is set
func (s *SessionManager) SignOut(ctx context.Context, opts SignOutOptions, req *AuthRequest) SessionResult {
	err := s.signOut(ctx, opts, req)
	s.metrics.SignOut(err)

	if err != nil {
		s.logger.Warn("sign out failed", "error", err)
		return SessionResult{Error: ResultLogoutFailed, cause: err}
	}

	emitActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventSignOut,
		UserID:    req.UserID(),
		Metadata:  map[string]any{"all_tokens": opts.RemoveAllAccessTokens},
	})

	return SessionResult{}
}

func (s *SessionManager) signOut(ctx context.Context, opts SignOutOptions, req *AuthRequest) error {
	req, err := s.validator.Authenticate(ctx, req)
	if err != nil {
		return err
	}

	if opts.RemoveAllAccessTokens {
		if req.UserID() == "" {
			return nil
		}
		count, err := s.tokens.DestroyAllForUser(ctx, req.Token.UserID)
		if err != nil {
			return storeError(err, "failed to destroy user access tokens")
		}
		s.logger.Debug("destroyed user access tokens", "user_id", req.UserID(), "count", count)
		return nil
	}

	if err := s.tokens.Destroy(ctx, req.Token.ID); err != nil {
		return storeError(err, "failed to destroy access token")
	}

	return nil
}

// ChangePassword stores a new password for the owner of the presented token.
// Every failure is reported as tokenExpired, the distinct cause is logged.
func (s *SessionManager) ChangePassword(ctx context.Context, opts ChangePasswordOptions, req *AuthRequest) SessionResult {
	err := s.changePassword(ctx, opts, req)
	s.metrics.PasswordChange(err)

	if err != nil {
		code := ""
		var richErr *errors.Error
		if errors.As(err, &richErr) {
			code = richErr.TextCode
		}
		s.logger.Warn("change password failed", "code", code, "error", err)
		return SessionResult{Error: ResultTokenExpired, cause: err}
	}

	s.logger.Info("password changed", "user_id", req.UserID())
	emitActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		UserID:    req.UserID(),
	})

	return SessionResult{Success: true}
}

func (s *SessionManager) changePassword(ctx context.Context, opts ChangePasswordOptions, req *AuthRequest) error {
	req, err := s.validator.Authenticate(ctx, req)
	if err != nil {
		return err
	}

	hash, err := HashPassword(opts.Password)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, req.Token.UserID, hash); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to update password").
			WithCode(errors.CodeInternal).
			WithTextCode(TextCodePasswordUpdate)
	}

	return nil
}
