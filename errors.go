package auth

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes attached to the package errors
const (
	TextCodeNoUsername         = "NO_USERNAME"
	TextCodeNoPassword         = "NO_PASSWORD"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeTokenNotFound      = "TOKEN_NOT_FOUND"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
	TextCodeLoginFailed        = "LOGIN_FAILED"
	TextCodePasswordUpdate     = "PASSWORD_UPDATE_FAILED"
	TextCodeNoSuchRole         = "NO_SUCH_ROLE"
	TextCodeNoSuchUser         = "NO_SUCH_USER"
	TextCodeAnonymousAddress   = "ANONYMOUS_ADDRESS"
	TextCodeStoreFailure       = "STORE_FAILURE"
	TextCodeNotAuthorized      = "NOT_AUTHORIZED"
)

// Result codes reported to HTTP clients in the `error` field
const (
	ResultNoUsername     = "noUsername"
	ResultNoPassword     = "noPassword"
	ResultLoginFailed    = "loginFailed"
	ResultLogoutFailed   = "logoutFailed"
	ResultTokenExpired   = "tokenExpired"
	ResultInvalidPayload = "invalidPayload"
	ResultNotAuthorized  = "notAuthorized"
)

// ErrNoUsername is returned when a sign in carries neither username nor email
var ErrNoUsername = goerrors.New("username or email is required", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeNoUsername)

// ErrNoPassword is returned when a sign in carries no password
var ErrNoPassword = goerrors.New("password is required", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeNoPassword)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password can not be empty", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeEmptyPassword)

// ErrTokenNotFound is returned when the bearer token is missing or unknown
var ErrTokenNotFound = goerrors.New("access token not found", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenNotFound)

// ErrTokenExpired is returned when the token is expired or its user is gone
var ErrTokenExpired = goerrors.New("access token expired", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenExpired)

// ErrMismatchedHashAndPassword is returned for wrong passwords and unknown users
var ErrMismatchedHashAndPassword = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidCredentials)

// ErrTooManyLoginAttempts is returned while a user is cooling down
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryRateLimit).
	WithCode(goerrors.CodeForbidden).
	WithTextCode(TextCodeTooManyAttempts)

// ErrLoginThrottled is returned when the sign in limiter rejects an attempt
var ErrLoginThrottled = goerrors.New("sign in rate limit exceeded", goerrors.CategoryRateLimit).
	WithCode(goerrors.CodeForbidden).
	WithTextCode(TextCodeLoginFailed)

// ErrNotAuthorized is returned when the caller lacks the required role
var ErrNotAuthorized = goerrors.New("not authorized", goerrors.CategoryAuthz).
	WithCode(goerrors.CodeForbidden).
	WithTextCode(TextCodeNotAuthorized)

// ErrAnonymousAddress is returned when mailing a placeholder address
var ErrAnonymousAddress = goerrors.New("cannot send mail to anonymous user", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeAnonymousAddress)

// NewNoSuchRoleError reports a role name that does not resolve
func NewNoSuchRoleError(name string) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("no such role: %s", name), goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithTextCode(TextCodeNoSuchRole).
		WithMetadata(map[string]any{"role": name})
}

// NewNoSuchUserError reports a username that does not resolve
func NewNoSuchUserError(username string) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("no such user: %s", username), goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithTextCode(TextCodeNoSuchUser).
		WithMetadata(map[string]any{"username": username})
}

func storeError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithCode(goerrors.CodeInternal).
		WithTextCode(TextCodeStoreFailure)
}

// HasTextCode reports whether err is a rich error carrying code
func HasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

// ErrorMessage returns the human message of err without category decoration
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		return richErr.Message
	}
	return err.Error()
}
