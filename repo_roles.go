package auth

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Roles is the role store
type Roles interface {
	repository.Repository[*Role]

	GetByName(ctx context.Context, name string) (*Role, error)
	GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Role, error)
	FindOrCreate(ctx context.Context, name string) (*Role, bool, error)
	FindOrCreateTx(ctx context.Context, tx bun.IDB, name string) (*Role, bool, error)
}

type roles struct {
	repository.Repository[*Role]
	db *bun.DB
}

var _ RoleFinder = (*roles)(nil)

// NewRolesRepository returns the bun backed role store
func NewRolesRepository(db *bun.DB) Roles {
	repo := repository.NewRepository[*Role](db, repository.ModelHandlers[*Role]{
		NewRecord: func() *Role { return &Role{} },
		GetID: func(r *Role) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Role, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &roles{
		Repository: repo,
		db:         db,
	}
}

func (r *roles) GetByName(ctx context.Context, name string) (*Role, error) {
	return r.GetByNameTx(ctx, r.db, name)
}

func (r *roles) GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Role, error) {
	record := &Role{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", strings.TrimSpace(name)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"name": name})
		}
		return nil, err
	}

	return record, nil
}

func (r *roles) FindOrCreate(ctx context.Context, name string) (*Role, bool, error) {
	return r.FindOrCreateTx(ctx, r.db, name)
}

// FindOrCreateTx inserts the role unless the name is taken and returns the
// stored record, reporting whether this call created it
func (r *roles) FindOrCreateTx(ctx context.Context, tx bun.IDB, name string) (*Role, bool, error) {
	record := &Role{
		ID:   uuid.New(),
		Name: strings.TrimSpace(name),
	}

	res, err := tx.NewInsert().
		Model(record).
		On("CONFLICT (name) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, false, err
	}

	created := false
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		created = true
	}

	role, err := r.GetByNameTx(ctx, tx, record.Name)
	if err != nil {
		return nil, false, err
	}

	return role, created, nil
}
