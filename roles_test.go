package auth

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoleAdministrator(t *testing.T) (*RoleAdministrator, RepositoryManager) {
	t.Helper()
	repo := newTestManager(t)
	admin := NewRoleAdministrator(repo.Roles(), repo.Users(), repo.RoleMappings()).
		WithLogger(&captureLogger{})
	return admin, repo
}

func TestGrantRoleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	admin, repo := newTestRoleAdministrator(t)
	user := seedUser(t, repo, "alice", "secret")
	_, _, err := repo.Roles().FindOrCreate(ctx, "admin")
	require.NoError(t, err)

	first, err := admin.GrantRole(ctx, RoleOptions{Username: "alice", RoleName: "admin"})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, 1, first.Count)

	second, err := admin.GrantRole(ctx, RoleOptions{Username: "alice", RoleName: "admin"})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.RoleMapping.ID, second.RoleMapping.ID)

	mappings, err := repo.RoleMappings().ListByPrincipal(ctx, PrincipalTypeUser, user.ID.String())
	require.NoError(t, err)
	assert.Len(t, mappings, 1)
}

func TestGrantRoleMissingRole(t *testing.T) {
	admin, repo := newTestRoleAdministrator(t)
	seedUser(t, repo, "alice", "secret")

	_, err := admin.GrantRole(context.Background(), RoleOptions{Username: "alice", RoleName: "admin"})
	require.Error(t, err)
	assert.Equal(t, "no such role: admin", ErrorMessage(err))
	assert.True(t, HasTextCode(err, TextCodeNoSuchRole))
}

func TestGrantRoleMissingRoleReportedBeforeUser(t *testing.T) {
	admin, _ := newTestRoleAdministrator(t)

	_, err := admin.GrantRole(context.Background(), RoleOptions{Username: "ghost", RoleName: "admin"})
	assert.True(t, HasTextCode(err, TextCodeNoSuchRole))
}

func TestGrantRoleMissingUser(t *testing.T) {
	ctx := context.Background()
	admin, repo := newTestRoleAdministrator(t)
	_, _, err := repo.Roles().FindOrCreate(ctx, "admin")
	require.NoError(t, err)

	_, err = admin.GrantRole(ctx, RoleOptions{Username: "ghost", RoleName: "admin"})
	assert.Equal(t, "no such user: ghost", ErrorMessage(err))
	assert.True(t, HasTextCode(err, TextCodeNoSuchUser))
}

func TestRevokeRole(t *testing.T) {
	ctx := context.Background()
	admin, repo := newTestRoleAdministrator(t)
	user := seedUser(t, repo, "alice", "secret")
	grant(t, repo, user, "admin")
	grant(t, repo, user, "editor")

	result, err := admin.RevokeRole(ctx, RoleOptions{Username: "alice", RoleName: "admin"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)

	loaded, err := repo.Users().FindByIDWithRoles(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"editor"}, loaded.Roles)

	result, err = admin.RevokeRole(ctx, RoleOptions{Username: "alice", RoleName: "admin"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Count)
}

func TestRevokeRoleMissingRole(t *testing.T) {
	admin, repo := newTestRoleAdministrator(t)
	seedUser(t, repo, "bob", "secret")

	_, err := admin.RevokeRole(context.Background(), RoleOptions{Username: "bob", RoleName: "admin"})
	require.Error(t, err)
	assert.Equal(t, "no such role: admin", ErrorMessage(err))
	assert.True(t, HasTextCode(err, TextCodeNoSuchRole))
}

func TestRoleChangesAreCounted(t *testing.T) {
	ctx := context.Background()
	admin, repo := newTestRoleAdministrator(t)
	seedUser(t, repo, "alice", "secret")
	_, _, err := repo.Roles().FindOrCreate(ctx, "admin")
	require.NoError(t, err)

	metrics := NewMetrics(prometheus.NewRegistry())
	admin.WithMetrics(metrics)

	_, err = admin.GrantRole(ctx, RoleOptions{Username: "alice", RoleName: "admin"})
	require.NoError(t, err)
	_, err = admin.RevokeRole(ctx, RoleOptions{Username: "alice", RoleName: "missing"})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.roleChanges.WithLabelValues(RoleOperationGrant, OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.roleChanges.WithLabelValues(RoleOperationRevoke, OutcomeFailure)))
}

func TestRoleOptionsValidate(t *testing.T) {
	assert.Error(t, RoleOptions{Username: "alice"}.Validate())
	assert.Error(t, RoleOptions{RoleName: "admin"}.Validate())
	assert.NoError(t, RoleOptions{Username: "alice", RoleName: "admin"}.Validate())
}
