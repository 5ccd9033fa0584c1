package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RoleMappings is the principal to role assignment store
type RoleMappings interface {
	repository.Repository[*RoleMapping]

	FindOrCreate(ctx context.Context, mapping *RoleMapping) (*RoleMapping, bool, error)
	FindOrCreateTx(ctx context.Context, tx bun.IDB, mapping *RoleMapping) (*RoleMapping, bool, error)
	Assign(ctx context.Context, mapping *RoleMapping) (*RoleMapping, error)
	AssignTx(ctx context.Context, tx bun.IDB, mapping *RoleMapping) (*RoleMapping, error)
	DestroyAll(ctx context.Context, filter RoleMappingFilter) (int, error)
	DestroyAllTx(ctx context.Context, tx bun.IDB, filter RoleMappingFilter) (int, error)
	ListByPrincipal(ctx context.Context, principalType, principalID string) ([]*RoleMapping, error)
}

type roleMappings struct {
	repository.Repository[*RoleMapping]
	db *bun.DB
}

var _ RoleMappingStore = (*roleMappings)(nil)

// NewRoleMappingsRepository returns the bun backed role mapping store
func NewRoleMappingsRepository(db *bun.DB) RoleMappings {
	repo := repository.NewRepository[*RoleMapping](db, repository.ModelHandlers[*RoleMapping]{
		NewRecord: func() *RoleMapping { return &RoleMapping{} },
		GetID: func(m *RoleMapping) uuid.UUID {
			if m == nil {
				return uuid.Nil
			}
			return m.ID
		},
		SetID: func(m *RoleMapping, id uuid.UUID) {
			if m != nil {
				m.ID = id
			}
		},
	})

	return &roleMappings{
		Repository: repo,
		db:         db,
	}
}

func (r *roleMappings) FindOrCreate(ctx context.Context, mapping *RoleMapping) (*RoleMapping, bool, error) {
	return r.FindOrCreateTx(ctx, r.db, mapping)
}

// FindOrCreateTx relies on the unique (principal_type, principal_id, role_id)
// index so concurrent grants never produce duplicates
func (r *roleMappings) FindOrCreateTx(ctx context.Context, tx bun.IDB, mapping *RoleMapping) (*RoleMapping, bool, error) {
	if mapping.ID == uuid.Nil {
		mapping.ID = uuid.New()
	}

	res, err := tx.NewInsert().
		Model(mapping).
		On("CONFLICT (principal_type, principal_id, role_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, false, err
	}

	created := false
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		created = true
	}

	record := &RoleMapping{}
	err = tx.NewSelect().
		Model(record).
		Where("?TableAlias.principal_type = ?", mapping.PrincipalType).
		Where("?TableAlias.principal_id = ?", mapping.PrincipalID).
		Where("?TableAlias.role_id = ?", mapping.RoleID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, false, err
	}

	return record, created, nil
}

func (r *roleMappings) Assign(ctx context.Context, mapping *RoleMapping) (*RoleMapping, error) {
	return r.AssignTx(ctx, r.db, mapping)
}

func (r *roleMappings) AssignTx(ctx context.Context, tx bun.IDB, mapping *RoleMapping) (*RoleMapping, error) {
	if mapping.ID == uuid.Nil {
		mapping.ID = uuid.New()
	}
	return r.Repository.CreateTx(ctx, tx, mapping)
}

func (r *roleMappings) DestroyAll(ctx context.Context, filter RoleMappingFilter) (int, error) {
	return r.DestroyAllTx(ctx, r.db, filter)
}

func (r *roleMappings) DestroyAllTx(ctx context.Context, tx bun.IDB, filter RoleMappingFilter) (int, error) {
	principalType := filter.PrincipalType
	if principalType == "" {
		principalType = PrincipalTypeUser
	}

	q := tx.NewDelete().
		Model((*RoleMapping)(nil)).
		Where("principal_type = ?", principalType).
		Where("principal_id = ?", filter.PrincipalID)

	if filter.RoleID != uuid.Nil {
		q = q.Where("role_id = ?", filter.RoleID.String())
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(n), nil
}

func (r *roleMappings) ListByPrincipal(ctx context.Context, principalType, principalID string) ([]*RoleMapping, error) {
	records := []*RoleMapping{}
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.principal_type = ?", principalType).
		Where("?TableAlias.principal_id = ?", principalID).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}
