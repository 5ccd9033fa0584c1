package auth_test

import (
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-user-auth"
	"github.com/stretchr/testify/assert"
)

func TestSentinelErrorsCarryTextCodes(t *testing.T) {
	cases := map[error]string{
		auth.ErrNoUsername:                auth.TextCodeNoUsername,
		auth.ErrNoPassword:                auth.TextCodeNoPassword,
		auth.ErrTokenNotFound:             auth.TextCodeTokenNotFound,
		auth.ErrTokenExpired:              auth.TextCodeTokenExpired,
		auth.ErrMismatchedHashAndPassword: auth.TextCodeInvalidCredentials,
		auth.ErrTooManyLoginAttempts:      auth.TextCodeTooManyAttempts,
		auth.ErrAnonymousAddress:          auth.TextCodeAnonymousAddress,
	}

	for err, code := range cases {
		assert.True(t, auth.HasTextCode(err, code), code)
	}
}

func TestRoleErrors(t *testing.T) {
	err := auth.NewNoSuchRoleError("admin")
	assert.Equal(t, "no such role: admin", auth.ErrorMessage(err))
	var richErr *goerrors.Error
	if assert.True(t, goerrors.As(err, &richErr)) {
		assert.Equal(t, auth.TextCodeNoSuchRole, richErr.TextCode)
		assert.Equal(t, "admin", richErr.Metadata["role"])
	}

	err = auth.NewNoSuchUserError("alice")
	assert.Equal(t, "no such user: alice", auth.ErrorMessage(err))
}

func TestErrorMessagePlainErrors(t *testing.T) {
	assert.Equal(t, "", auth.ErrorMessage(nil))
	assert.Equal(t, "boom", auth.ErrorMessage(errors.New("boom")))
	assert.False(t, auth.HasTextCode(errors.New("boom"), auth.TextCodeNoUsername))
}
