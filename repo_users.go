package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TrackSuccessfulLoginSQL resets the attempt counters and stamps the login
var TrackSuccessfulLoginSQL = `UPDATE "users"
SET
	"loggedin_at" = ?,
	"login_attempt_at" = NULL,
	"login_attempts" = 0
WHERE
	"id" = ?;`

// Users is the identity store
type Users interface {
	repository.Repository[*User]

	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	FindByIDWithRoles(ctx context.Context, id uuid.UUID) (*User, error)
	FindByIDWithRolesTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	CountByUsername(ctx context.Context, username string) (int, error)
	CountByUsernameTx(ctx context.Context, tx bun.IDB, username string) (int, error)
	UpsertByUsername(ctx context.Context, record *User, columns ...string) (*User, error)
	UpsertByUsernameTx(ctx context.Context, tx bun.IDB, record *User, columns ...string) (*User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error

	TrackAttemptedLogin(ctx context.Context, user *User) error
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users          = (*users)(nil)
	_ UserTracker    = (*users)(nil)
	_ SessionUsers   = (*users)(nil)
	_ ProvisionUsers = (*users)(nil)
)

// NewUsersRepository returns the bun backed identity store
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByUsername(ctx context.Context, username string) (*User, error) {
	return a.GetByUsernameTx(ctx, a.db, username)
}

func (a *users) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error) {
	return a.getByColumn(ctx, tx, "username", strings.TrimSpace(username))
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	return a.getByColumn(ctx, tx, "email", strings.TrimSpace(email))
}

func (a *users) getByColumn(ctx context.Context, tx bun.IDB, column, value string) (*User, error) {
	if value == "" {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{column: value})
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{column: value})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) FindByIDWithRoles(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.FindByIDWithRolesTx(ctx, a.db, id)
}

func (a *users) FindByIDWithRolesTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id.String()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}

	names := []string{}
	err = tx.NewSelect().
		TableExpr("roles AS role").
		Column("role.name").
		Join("JOIN role_mappings AS rm ON rm.role_id = role.id").
		Where("rm.principal_type = ?", PrincipalTypeUser).
		Where("rm.principal_id = ?", id.String()).
		OrderExpr("role.name ASC").
		Scan(ctx, &names)
	if err != nil && !repository.IsRecordNotFound(err) {
		return nil, err
	}

	record.Roles = names
	return record, nil
}

func (a *users) CountByUsername(ctx context.Context, username string) (int, error) {
	return a.CountByUsernameTx(ctx, a.db, username)
}

func (a *users) CountByUsernameTx(ctx context.Context, tx bun.IDB, username string) (int, error) {
	return tx.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.username = ?", username).
		Count(ctx)
}

func (a *users) UpsertByUsername(ctx context.Context, record *User, columns ...string) (*User, error) {
	return a.UpsertByUsernameTx(ctx, a.db, record, columns...)
}

// UpsertByUsernameTx updates the user matching record.Username, writing only
// columns when given, or creates it. Created users keep record.ID if set.
func (a *users) UpsertByUsernameTx(ctx context.Context, tx bun.IDB, record *User, columns ...string) (*User, error) {
	existing, err := a.GetByUsernameTx(ctx, tx, record.Username)
	if err == nil {
		record.ID = existing.ID
		now := time.Now()
		record.UpdatedAt = &now

		q := tx.NewUpdate().Model(record).WherePK()
		if len(columns) > 0 {
			q = q.Column(append(columns, "updated_at")...)
		} else {
			q = q.ExcludeColumn("id", "created_at", "login_attempts", "login_attempt_at", "loggedin_at")
		}

		if _, err := q.Exec(ctx); err != nil {
			return nil, err
		}

		return a.getByColumn(ctx, tx, "id", existing.ID.String())
	}

	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	return a.Repository.CreateTx(ctx, tx, record)
}

func (a *users) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.UpdatePasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id.String()).
		Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, user)
}

func (a *users) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	_, err := tx.NewRaw(TrackSuccessfulLoginSQL, time.Now(), user.ID.String()).Exec(ctx)
	return err
}

func (a *users) TrackAttemptedLogin(ctx context.Context, user *User) error {
	return a.TrackAttemptedLoginTx(ctx, a.db, user)
}

func (a *users) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	_, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("login_attempts = ?", user.LoginAttempts+1).
		Set("login_attempt_at = ?", time.Now()).
		Where("id = ?", user.ID.String()).
		Exec(ctx)
	return err
}
