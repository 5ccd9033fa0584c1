package auth

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-repository-bun"
)

// Role change operations, used as metric labels
const (
	RoleOperationGrant  = "grant"
	RoleOperationRevoke = "revoke"
)

// RoleOptions names the user and the role to grant or revoke
type RoleOptions struct {
	Username string `json:"username"`
	RoleName string `json:"roleName"`
}

// Validate checks both names are present
func (o RoleOptions) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Username, validation.Required),
		validation.Field(&o.RoleName, validation.Required),
	)
}

// RoleResult is the outcome of a grant or a revoke
type RoleResult struct {
	RoleMapping *RoleMapping `json:"roleMapping,omitempty"`
	Created     bool         `json:"created,omitempty"`
	Count       int          `json:"count"`
}

// RoleAdministrator grants and revokes user roles
type RoleAdministrator struct {
	roles    RoleFinder
	users    UserFinder
	mappings RoleMappingStore
	metrics  *Metrics
	activity ActivitySink
	logger   Logger
	provider LoggerProvider
}

// NewRoleAdministrator will create a new RoleAdministrator
func NewRoleAdministrator(roles RoleFinder, users UserFinder, mappings RoleMappingStore) *RoleAdministrator {
	provider, logger := ResolveLogger("auth.roles", nil, nil)
	return &RoleAdministrator{
		roles:    roles,
		users:    users,
		mappings: mappings,
		activity: noopActivitySink{},
		logger:   logger,
		provider: provider,
	}
}

func (r *RoleAdministrator) WithLogger(l Logger) *RoleAdministrator {
	r.provider, r.logger = ResolveLogger("auth.roles", nil, l)
	return r
}

// WithLoggerProvider overrides the logger provider used by the administrator.
func (r *RoleAdministrator) WithLoggerProvider(provider LoggerProvider) *RoleAdministrator {
	r.provider, r.logger = ResolveLogger("auth.roles", provider, r.logger)
	return r
}

func (r *RoleAdministrator) WithMetrics(m *Metrics) *RoleAdministrator {
	r.metrics = m
	return r
}

func (r *RoleAdministrator) WithActivitySink(sink ActivitySink) *RoleAdministrator {
	r.activity = normalizeActivitySink(sink)
	return r
}

// GrantRole assigns the role to the user. Granting a role the user already
// holds returns the existing mapping.
func (r *RoleAdministrator) GrantRole(ctx context.Context, opts RoleOptions) (RoleResult, error) {
	result, err := r.grantRole(ctx, opts)
	r.metrics.RoleChange(RoleOperationGrant, err)
	if err != nil {
		return result, err
	}

	r.logger.Info("role granted", "username", opts.Username, "role", opts.RoleName, "created", result.Created)
	emitActivity(ctx, r.activity, r.logger, ActivityEvent{
		EventType: ActivityEventRoleGranted,
		UserID:    result.RoleMapping.PrincipalID,
		Username:  opts.Username,
		Metadata:  map[string]any{"role": opts.RoleName, "created": result.Created},
	})

	return result, nil
}

func (r *RoleAdministrator) grantRole(ctx context.Context, opts RoleOptions) (RoleResult, error) {
	role, user, err := r.resolve(ctx, opts)
	if err != nil {
		return RoleResult{}, err
	}

	mapping, created, err := r.mappings.FindOrCreate(ctx, NewUserRoleMapping(user.ID, role.ID))
	if err != nil {
		return RoleResult{}, storeError(err, "failed to grant role")
	}

	count := 0
	if created {
		count = 1
	}

	return RoleResult{RoleMapping: mapping, Created: created, Count: count}, nil
}

// RevokeRole removes the role from the user. Revoking a role the user does
// not hold succeeds with a zero count.
func (r *RoleAdministrator) RevokeRole(ctx context.Context, opts RoleOptions) (RoleResult, error) {
	result, user, err := r.revokeRole(ctx, opts)
	r.metrics.RoleChange(RoleOperationRevoke, err)
	if err != nil {
		return result, err
	}

	r.logger.Info("role revoked", "username", opts.Username, "role", opts.RoleName, "count", result.Count)
	emitActivity(ctx, r.activity, r.logger, ActivityEvent{
		EventType: ActivityEventRoleRevoked,
		UserID:    user.ID.String(),
		Username:  opts.Username,
		Metadata:  map[string]any{"role": opts.RoleName, "count": result.Count},
	})

	return result, nil
}

func (r *RoleAdministrator) revokeRole(ctx context.Context, opts RoleOptions) (RoleResult, *User, error) {
	role, user, err := r.resolve(ctx, opts)
	if err != nil {
		return RoleResult{}, nil, err
	}

	count, err := r.mappings.DestroyAll(ctx, RoleMappingFilter{
		PrincipalType: PrincipalTypeUser,
		PrincipalID:   user.ID.String(),
		RoleID:        role.ID,
	})
	if err != nil {
		return RoleResult{}, nil, storeError(err, "failed to revoke role")
	}

	return RoleResult{Count: count}, user, nil
}

// resolve looks up the role first and then the user, so a missing role is
// reported even when the user is missing too
func (r *RoleAdministrator) resolve(ctx context.Context, opts RoleOptions) (*Role, *User, error) {
	roleName := strings.TrimSpace(opts.RoleName)
	username := strings.TrimSpace(opts.Username)

	role, err := r.roles.GetByName(ctx, roleName)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil, NewNoSuchRoleError(roleName)
		}
		return nil, nil, storeError(err, "failed to retrieve role")
	}

	user, err := r.users.GetByUsername(ctx, username)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil, NewNoSuchUserError(username)
		}
		return nil, nil, storeError(err, "failed to retrieve user")
	}

	return role, user, nil
}
