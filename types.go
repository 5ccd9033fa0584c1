package auth

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

// Logger is the logger interface used across the package
type Logger = glog.Logger

// LoggerProvider hands out named loggers
type LoggerProvider = glog.LoggerProvider

// Config holds the settings the session and notification flows read
type Config interface {
	GetHost() string
	GetPort() int
	GetHTTPOnly() bool
	GetReverseProxy() bool
	GetDomain() string
	GetTokenTTL() time.Duration
	GetResetTokenTTL() time.Duration
	GetMailFrom() string
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// UserTracker is the identity store view used to log users in
type UserTracker interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	TrackAttemptedLogin(ctx context.Context, user *User) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error
}

// SessionUsers is what the session manager needs from the identity store
type SessionUsers interface {
	FindByIDWithRoles(ctx context.Context, id uuid.UUID) (*User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// UserFinder resolves users by their unique keys
type UserFinder interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// ProvisionUsers is what the bulk provisioner needs from the identity store
type ProvisionUsers interface {
	CountByUsername(ctx context.Context, username string) (int, error)
	UpsertByUsername(ctx context.Context, record *User, columns ...string) (*User, error)
}

// TokenMinter creates access tokens
type TokenMinter interface {
	Mint(ctx context.Context, userID uuid.UUID, ttl time.Duration) (*AccessToken, error)
}

// TokenFinder resolves access tokens by id, with their user loaded
type TokenFinder interface {
	GetByID(ctx context.Context, id string) (*AccessToken, error)
}

// TokenRevoker destroys access tokens
type TokenRevoker interface {
	Destroy(ctx context.Context, id string) error
	DestroyAllForUser(ctx context.Context, userID uuid.UUID) (int, error)
}

// RoleFinder resolves and lazily creates roles
type RoleFinder interface {
	GetByName(ctx context.Context, name string) (*Role, error)
	FindOrCreate(ctx context.Context, name string) (*Role, bool, error)
}

// RoleMappingStore manages principal to role assignments
type RoleMappingStore interface {
	FindOrCreate(ctx context.Context, mapping *RoleMapping) (*RoleMapping, bool, error)
	DestroyAll(ctx context.Context, filter RoleMappingFilter) (int, error)
	Assign(ctx context.Context, mapping *RoleMapping) (*RoleMapping, error)
}

// Mailer delivers mail messages
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

var (
	baseLoggerOnce sync.Once
	baseLogger     *glog.BaseLogger
)

func defaultLogger(name string) Logger {
	baseLoggerOnce.Do(func() {
		baseLogger = glog.NewLogger(
			glog.WithName("auth"),
			glog.WithLoggerTypePretty(),
			glog.WithLevel(glog.Info),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(errors.ToSlogAttributes),
		)
	})
	return baseLogger.GetLogger(name)
}

// ResolveLogger returns the logger for name, preferring the provider, then the
// given logger, then the package default
func ResolveLogger(name string, provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	if provider != nil {
		if resolved := provider.GetLogger(name); resolved != nil {
			return provider, resolved
		}
	}

	if logger == nil {
		logger = defaultLogger(name)
	}

	return glog.ProviderFromLogger(logger), logger
}
