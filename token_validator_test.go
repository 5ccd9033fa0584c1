package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBearerToken(t *testing.T) {
	assert.Equal(t, "abc", ParseBearerToken("Bearer abc"))
	assert.Equal(t, "abc", ParseBearerToken("bearer  abc "))
	assert.Equal(t, "abc", ParseBearerToken("abc"))
	assert.Equal(t, "", ParseBearerToken(""))
}

func TestTokenValidatorAuthenticate(t *testing.T) {
	ctx := context.Background()
	repo := newTestManager(t)
	user := seedUser(t, repo, "alice", "secret")

	token, err := repo.AccessTokens().Mint(ctx, user.ID, time.Hour)
	require.NoError(t, err)

	validator := NewTokenValidator(repo.AccessTokens())

	req, err := validator.Authenticate(ctx, NewAuthRequest("Bearer "+token.ID))
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), req.UserID())
	assert.Equal(t, "alice", req.Token.User.Username)
}

func TestTokenValidatorMissingToken(t *testing.T) {
	ctx := context.Background()
	validator := NewTokenValidator(NewAccessTokensRepository(newTestDB(t)))

	_, err := validator.Authenticate(ctx, NewAuthRequest(""))
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = validator.Authenticate(ctx, nil)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = validator.Authenticate(ctx, NewAuthRequest("unknown"))
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestTokenValidatorExpiredToken(t *testing.T) {
	ctx := context.Background()
	repo := newTestManager(t)
	user := seedUser(t, repo, "alice", "secret")

	token, err := repo.AccessTokens().Mint(ctx, user.ID, time.Minute)
	require.NoError(t, err)

	clock := &fixedClock{now: time.Now().Add(2 * time.Minute)}
	validator := NewTokenValidator(repo.AccessTokens()).WithClock(clock.Now)

	_, err = validator.Authenticate(ctx, NewAuthRequest(token.ID))
	assert.ErrorIs(t, err, ErrTokenExpired)

	forever, err := repo.AccessTokens().Mint(ctx, user.ID, -1)
	require.NoError(t, err)
	clock.now = time.Now().AddDate(10, 0, 0)

	_, err = validator.Authenticate(ctx, NewAuthRequest(forever.ID))
	assert.NoError(t, err)
}

func TestAuthRequestUserID(t *testing.T) {
	var req *AuthRequest
	assert.Equal(t, "", req.UserID())
	assert.Equal(t, "", (&AuthRequest{AccessToken: "x"}).UserID())
}
