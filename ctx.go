package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

var tokenCtxKey = &contextKey{"access_token"}

type contextKey struct {
	name string
}

// WithContext sets the resolved access token in the given context
func WithContext(r context.Context, token *AccessToken) context.Context {
	return context.WithValue(r, tokenCtxKey, token)
}

// FromContext finds the access token from the context.
func FromContext(ctx context.Context) (*AccessToken, bool) {
	raw, ok := ctx.Value(tokenCtxKey).(*AccessToken)
	return raw, ok && raw != nil
}

// UserFromContext returns the user owning the access token in ctx
func UserFromContext(ctx context.Context) (*User, bool) {
	token, ok := FromContext(ctx)
	if !ok || token.User == nil {
		return nil, false
	}
	return token.User, true
}

// AccessTokenMiddleware resolves the bearer token of every request. A valid
// token is stored in the router locals under key and in the request context.
// Requests without a valid token pass through untouched, handlers decide
// whether they need one.
func AccessTokenMiddleware(validator Authenticator, key string) router.MiddlewareFunc {
	if key == "" {
		key = "accessToken"
	}
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			header := ctx.GetString(router.HeaderAuthorization, "")
			if header == "" {
				return next(ctx)
			}

			req, err := validator.Authenticate(ctx.Context(), NewAuthRequest(header))
			if err != nil {
				return next(ctx)
			}

			ctx.Locals(key, req.Token)
			ctx.SetContext(WithContext(ctx.Context(), req.Token))
			return next(ctx)
		}
	}
}
