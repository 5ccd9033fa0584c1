package auth

import (
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// PathPrefix for routes (default: "/users")
	PathPrefix string

	// AccessTokenKey is the router locals key holding a pre-attached token,
	// either an *AccessToken or its id (default: "accessToken")
	AccessTokenKey string

	// AdminRole is the role a caller needs to grant or revoke roles
	// (default: "admin")
	AdminRole string
}

// HTTPController exposes the session, role and reset flows as JSON
// endpoints. Every outcome is answered with status 200, failures carry an
// `error` field.
type HTTPController struct {
	sessions *SessionManager
	roles    *RoleAdministrator
	guard    *RoleGuard
	resets   *RequestPasswordResetHandler
	finalize *FinalizePasswordResetHandler
	config   HTTPConfig
	logger   Logger
	provider LoggerProvider
}

type errorResult struct {
	Error string `json:"error"`
}

// ResultResetFailed is reported when a reset request cannot be processed
const ResultResetFailed = "resetFailed"

// NewHTTPController creates a new HTTP controller.
func NewHTTPController(sessions *SessionManager, roles *RoleAdministrator, resets *RequestPasswordResetHandler, cfg HTTPConfig) *HTTPController {
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = "/users"
	}
	if cfg.AccessTokenKey == "" {
		cfg.AccessTokenKey = "accessToken"
	}

	if cfg.AdminRole == "" {
		cfg.AdminRole = DefaultAdminRole
	}

	var guard *RoleGuard
	if sessions != nil {
		guard = NewRoleGuard(sessions.validator, sessions.users, cfg.AdminRole)
	}

	provider, logger := ResolveLogger("auth.http", nil, nil)
	return &HTTPController{
		sessions: sessions,
		roles:    roles,
		guard:    guard,
		resets:   resets,
		config:   cfg,
		logger:   logger,
		provider: provider,
	}
}

func (c *HTTPController) WithLogger(l Logger) *HTTPController {
	c.provider, c.logger = ResolveLogger("auth.http", nil, l)
	return c
}

// WithLoggerProvider overrides the logger provider used by the controller.
func (c *HTTPController) WithLoggerProvider(provider LoggerProvider) *HTTPController {
	c.provider, c.logger = ResolveLogger("auth.http", provider, c.logger)
	return c
}

// WithRoleGuard replaces the guard protecting the role routes
func (c *HTTPController) WithRoleGuard(g *RoleGuard) *HTTPController {
	if g != nil {
		c.guard = g
	}
	return c
}

// WithPasswordResetFinalizer enables the route consuming mailed reset tokens
func (c *HTTPController) WithPasswordResetFinalizer(h *FinalizePasswordResetHandler) *HTTPController {
	c.finalize = h
	return c
}

// RegisterRoutes registers the user routes.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	p := c.config.PathPrefix
	group.Post(p+"/signin", c.SignIn).SetName("users.signin")
	group.Post(p+"/signout", c.SignOut).SetName("users.signout")
	group.Post(p+"/change-password", c.ChangePassword).SetName("users.change-password")
	group.Post(p+"/grant-role", c.GrantRole).SetName("users.grant-role")
	group.Post(p+"/revoke-role", c.RevokeRole).SetName("users.revoke-role")
	if c.resets != nil {
		group.Post(p+"/reset", c.RequestPasswordReset).SetName("users.reset")
	}
	if c.finalize != nil {
		group.Post(p+"/reset-password", c.FinalizePasswordReset).SetName("users.reset-password")
	}
}

// SignIn handles POST /signin
func (c *HTTPController) SignIn(ctx router.Context) error {
	payload := &SignInOptions{}
	if err := ctx.Bind(payload); err != nil {
		c.logger.Debug("invalid sign in payload", "error", err)
		return ctx.JSON(router.StatusOK, errorResult{Error: ResultInvalidPayload})
	}

	return ctx.JSON(router.StatusOK, c.sessions.SignIn(ctx.Context(), *payload))
}

// SignOut handles POST /signout
func (c *HTTPController) SignOut(ctx router.Context) error {
	payload := &SignOutOptions{}
	if err := ctx.Bind(payload); err != nil {
		// the body is optional
		c.logger.Debug("ignoring sign out payload", "error", err)
		payload = &SignOutOptions{}
	}

	return ctx.JSON(router.StatusOK, c.sessions.SignOut(ctx.Context(), *payload, c.authRequest(ctx)))
}

// ChangePassword handles POST /change-password
func (c *HTTPController) ChangePassword(ctx router.Context) error {
	payload := &ChangePasswordOptions{}
	if err := ctx.Bind(payload); err != nil {
		c.logger.Debug("invalid change password payload", "error", err)
		return ctx.JSON(router.StatusOK, errorResult{Error: ResultTokenExpired})
	}

	req := NewAuthRequest(ctx.GetString(router.HeaderAuthorization, ""))
	return ctx.JSON(router.StatusOK, c.sessions.ChangePassword(ctx.Context(), *payload, req))
}

// GrantRole handles POST /grant-role, the caller must hold the admin role
func (c *HTTPController) GrantRole(ctx router.Context) error {
	if !c.authorize(ctx, "grant-role") {
		return ctx.JSON(router.StatusOK, errorResult{Error: ResultNotAuthorized})
	}

	payload := &RoleOptions{}
	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(router.StatusOK, errorResult{Error: ResultInvalidPayload})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusOK, errorResult{Error: err.Error()})
	}

	result, err := c.roles.GrantRole(ctx.Context(), *payload)
	if err != nil {
		c.logger.Warn("grant role failed", "username", payload.Username, "role", payload.RoleName, "error", err)
		return ctx.JSON(router.StatusOK, errorResult{Error: ErrorMessage(err)})
	}

	return ctx.JSON(router.StatusOK, result)
}

// RevokeRole handles POST /revoke-role, the caller must hold the admin role
func (c *HTTPController) RevokeRole(ctx router.Context) error {
	if !c.authorize(ctx, "revoke-role") {
		return ctx.JSON(router.StatusOK, errorResult{Error: ResultNotAuthorized})
	}

	payload := &RoleOptions{}
	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(router.StatusOK, errorResult{Error: ResultInvalidPayload})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusOK, errorResult{Error: err.Error()})
	}

	result, err := c.roles.RevokeRole(ctx.Context(), *payload)
	if err != nil {
		c.logger.Warn("revoke role failed", "username", payload.Username, "role", payload.RoleName, "error", err)
		return ctx.JSON(router.StatusOK, errorResult{Error: ErrorMessage(err)})
	}

	return ctx.JSON(router.StatusOK, result)
}

// RequestPasswordReset handles POST /reset
func (c *HTTPController) RequestPasswordReset(ctx router.Context) error {
	payload := &RequestPasswordResetMessage{}
	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(router.StatusOK, errorResult{Error: ResultInvalidPayload})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusOK, errorResult{Error: err.Error()})
	}

	if err := c.resets.Execute(ctx.Context(), *payload); err != nil {
		c.logger.Error("password reset request failed", "error", err)
		return ctx.JSON(router.StatusOK, errorResult{Error: ResultResetFailed})
	}

	return ctx.JSON(router.StatusOK, SessionResult{Success: true})
}

// FinalizePasswordReset handles POST /reset-password
func (c *HTTPController) FinalizePasswordReset(ctx router.Context) error {
	payload := &FinalizePasswordResetMessage{}
	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(router.StatusOK, errorResult{Error: ResultInvalidPayload})
	}

	if payload.Token == "" {
		payload.Token = c.authRequest(ctx).AccessToken
	}

	if err := c.finalize.Execute(ctx.Context(), *payload); err != nil {
		c.logger.Warn("password reset failed", "error", err)
		return ctx.JSON(router.StatusOK, errorResult{Error: ResultTokenExpired})
	}

	return ctx.JSON(router.StatusOK, SessionResult{Success: true})
}

func (c *HTTPController) authorize(ctx router.Context, route string) bool {
	user, err := c.guard.Authorize(ctx.Context(), c.authRequest(ctx))
	if err != nil {
		c.logger.Warn("role route refused", "route", route, "role", c.guard.Role(), "error", err)
		return false
	}
	c.logger.Debug("role route authorized", "route", route, "caller", user.Username)
	return true
}

// authRequest reads the bearer token from the Authorization header, falling
// back to a token attached to the request locals
func (c *HTTPController) authRequest(ctx router.Context) *AuthRequest {
	if header := ctx.GetString(router.HeaderAuthorization, ""); header != "" {
		return NewAuthRequest(header)
	}

	switch v := ctx.Locals(c.config.AccessTokenKey).(type) {
	case *AccessToken:
		if v != nil {
			return &AuthRequest{AccessToken: v.ID, Token: v}
		}
	case string:
		return &AuthRequest{AccessToken: v}
	}

	return &AuthRequest{}
}
