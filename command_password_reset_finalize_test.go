package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalizePasswordReset(t *testing.T) {
	ctx := context.Background()
	repo := newTestManager(t)
	user := seedUser(t, repo, "alice", "secret")

	token, err := repo.AccessTokens().Mint(ctx, user.ID, DefaultResetTokenTTL)
	require.NoError(t, err)

	var events []ActivityEvent
	handler := NewFinalizePasswordResetHandler(repo).
		WithLogger(&captureLogger{}).
		WithActivitySink(ActivitySinkFunc(func(_ context.Context, e ActivityEvent) error {
			events = append(events, e)
			return nil
		}))

	err = handler.Execute(ctx, FinalizePasswordResetMessage{Token: token.ID, Password: "changed"})
	require.NoError(t, err)

	loaded, err := repo.Users().GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.NoError(t, ComparePasswordAndHash("changed", loaded.PasswordHash))

	require.Len(t, events, 1)
	assert.Equal(t, ActivityEventPasswordChanged, events[0].EventType)

	err = handler.Execute(ctx, FinalizePasswordResetMessage{Token: token.ID, Password: "again"})
	assert.True(t, HasTextCode(err, TextCodeTokenNotFound))
}

func TestFinalizePasswordResetExpiredToken(t *testing.T) {
	ctx := context.Background()
	repo := newTestManager(t)
	user := seedUser(t, repo, "alice", "secret")

	token, err := repo.AccessTokens().Mint(ctx, user.ID, time.Minute)
	require.NoError(t, err)

	handler := NewFinalizePasswordResetHandler(repo)
	handler.now = func() time.Time { return time.Now().Add(time.Hour) }

	err = handler.Execute(ctx, FinalizePasswordResetMessage{Token: token.ID, Password: "changed"})
	assert.True(t, HasTextCode(err, TextCodeTokenExpired))

	loaded, err := repo.Users().GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.NoError(t, ComparePasswordAndHash("secret", loaded.PasswordHash))
}

func TestFinalizePasswordResetValidation(t *testing.T) {
	handler := NewFinalizePasswordResetHandler(newTestManager(t))

	assert.Error(t, handler.Execute(context.Background(), FinalizePasswordResetMessage{Password: "x"}))
	assert.Error(t, handler.Execute(context.Background(), FinalizePasswordResetMessage{Token: "x"}))
}
