package auth

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
)

// DefaultAdminRole is the role allowed to grant and revoke roles
const DefaultAdminRole = "admin"

// RoleGuard admits requests whose bearer token belongs to a user holding
// the guarded role
type RoleGuard struct {
	validator Authenticator
	users     SessionUsers
	role      string
}

// NewRoleGuard will create a new RoleGuard, role defaults to DefaultAdminRole
func NewRoleGuard(validator Authenticator, users SessionUsers, role string) *RoleGuard {
	role = strings.TrimSpace(role)
	if role == "" {
		role = DefaultAdminRole
	}
	return &RoleGuard{
		validator: validator,
		users:     users,
		role:      role,
	}
}

// Role returns the guarded role name
func (g *RoleGuard) Role() string {
	if g == nil {
		return ""
	}
	return g.role
}

// Authorize validates the request token and returns its user with roles.
// Token failures keep their error, a user without the role yields
// ErrNotAuthorized.
func (g *RoleGuard) Authorize(ctx context.Context, req *AuthRequest) (*User, error) {
	if g == nil || g.validator == nil || g.users == nil {
		return nil, ErrNotAuthorized
	}

	req, err := g.validator.Authenticate(ctx, req)
	if err != nil {
		return nil, err
	}

	user, err := g.users.FindByIDWithRoles(ctx, req.Token.UserID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrTokenExpired
		}
		return nil, storeError(err, "failed to load caller roles")
	}

	if !user.HasRole(g.role) {
		return nil, ErrNotAuthorized
	}

	return user, nil
}
