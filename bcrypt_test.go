package auth_test

import (
	"testing"

	"github.com/goliatone/go-user-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := auth.HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, "s3cret!", hash)

	assert.NoError(t, auth.ComparePasswordAndHash("s3cret!", hash))
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := auth.HashPassword("")
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeEmptyPassword))
}

func TestComparePasswordAndHash(t *testing.T) {
	hash, err := auth.HashPassword("testPassword123!")
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		mismatch bool
	}{
		{name: "matching password", password: "testPassword123!", hash: hash},
		{name: "wrong password", password: "wrongPassword", hash: hash, mismatch: true},
		{name: "invalid hash", password: "testPassword123!", hash: "invalidhash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ComparePasswordAndHash(tt.password, tt.hash)
			switch {
			case tt.mismatch:
				assert.Equal(t, auth.ErrMismatchedHashAndPassword, err)
			case tt.hash == hash:
				assert.NoError(t, err)
			default:
				assert.Error(t, err)
			}
		})
	}
}

func TestRandomPasswordHash(t *testing.T) {
	assert.NotEqual(t, auth.RandomPasswordHash(), auth.RandomPasswordHash())
}
