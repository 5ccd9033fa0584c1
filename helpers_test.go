package auth

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-user-auth/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	hashCost = bcrypt.MinCost
}

type logCall struct {
	level   string
	message string
	args    []any
}

type captureLogger struct {
	calls []logCall
}

func (l *captureLogger) record(level, message string, args ...any) {
	l.calls = append(l.calls, logCall{level: level, message: message, args: args})
}

func (l *captureLogger) Trace(message string, args ...any) { l.record("trace", message, args...) }
func (l *captureLogger) Debug(message string, args ...any) { l.record("debug", message, args...) }
func (l *captureLogger) Info(message string, args ...any)  { l.record("info", message, args...) }
func (l *captureLogger) Warn(message string, args ...any)  { l.record("warn", message, args...) }
func (l *captureLogger) Error(message string, args ...any) { l.record("error", message, args...) }
func (l *captureLogger) Fatal(message string, args ...any) { l.record("fatal", message, args...) }
func (l *captureLogger) WithContext(context.Context) Logger {
	return l
}

func (l *captureLogger) has(level, message string) bool {
	for _, c := range l.calls {
		if c.level == level && c.message == message {
			return true
		}
	}
	return false
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	ctx := context.Background()
	db, err := persistence.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, persistence.Migrate(ctx, db, GetMigrationsFS(), &captureLogger{}))
	return db
}

func newTestManager(t *testing.T) RepositoryManager {
	t.Helper()
	repo := NewRepositoryManager(newTestDB(t))
	require.NoError(t, repo.Validate())
	return repo
}

func seedUser(t *testing.T, repo RepositoryManager, username, password string) *User {
	t.Helper()

	hash, err := HashPassword(password)
	require.NoError(t, err)

	user, err := repo.Users().UpsertByUsername(context.Background(), &User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
	})
	require.NoError(t, err)
	return user
}

func grant(t *testing.T, repo RepositoryManager, user *User, roleName string) {
	t.Helper()
	ctx := context.Background()

	role, _, err := repo.Roles().FindOrCreate(ctx, roleName)
	require.NoError(t, err)
	_, err = repo.RoleMappings().Assign(ctx, NewUserRoleMapping(user.ID, role.ID))
	require.NoError(t, err)
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }
