package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
	"github.com/uptrace/bun"
)

// AccessTokens is the bearer token store
type AccessTokens interface {
	Mint(ctx context.Context, userID uuid.UUID, ttl time.Duration) (*AccessToken, error)
	MintTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, ttl time.Duration) (*AccessToken, error)
	GetByID(ctx context.Context, id string) (*AccessToken, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id string) (*AccessToken, error)
	Destroy(ctx context.Context, id string) error
	DestroyTx(ctx context.Context, tx bun.IDB, id string) error
	DestroyAllForUser(ctx context.Context, userID uuid.UUID) (int, error)
	DestroyAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error)
}

type accessTokens struct {
	db  *bun.DB
	now func() time.Time
}

var (
	_ TokenMinter  = (*accessTokens)(nil)
	_ TokenFinder  = (*accessTokens)(nil)
	_ TokenRevoker = (*accessTokens)(nil)
)

// NewAccessTokensRepository returns the bun backed token store
func NewAccessTokensRepository(db *bun.DB) AccessTokens {
	return &accessTokens{
		db:  db,
		now: time.Now,
	}
}

// NewTokenID returns a fresh opaque bearer token id
func NewTokenID() string {
	return ksuid.New().String()
}

// TTLSeconds converts ttl to the stored seconds, negative means never expires
func TTLSeconds(ttl time.Duration) int {
	if ttl < 0 {
		return TokenNeverExpires
	}
	return int(ttl / time.Second)
}

func (r *accessTokens) Mint(ctx context.Context, userID uuid.UUID, ttl time.Duration) (*AccessToken, error) {
	return r.MintTx(ctx, r.db, userID, ttl)
}

func (r *accessTokens) MintTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, ttl time.Duration) (*AccessToken, error) {
	token := &AccessToken{
		ID:        NewTokenID(),
		UserID:    userID,
		TTL:       TTLSeconds(ttl),
		CreatedAt: r.now().UTC(),
	}

	if _, err := tx.NewInsert().Model(token).Exec(ctx); err != nil {
		return nil, err
	}

	return token, nil
}

func (r *accessTokens) GetByID(ctx context.Context, id string) (*AccessToken, error) {
	return r.GetByIDTx(ctx, r.db, id)
}

func (r *accessTokens) GetByIDTx(ctx context.Context, tx bun.IDB, id string) (*AccessToken, error) {
	token := &AccessToken{}
	err := tx.NewSelect().
		Model(token).
		Relation("User").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"access_token": id})
		}
		return nil, err
	}

	if token.User != nil && token.User.ID == uuid.Nil {
		token.User = nil
	}

	return token, nil
}

func (r *accessTokens) Destroy(ctx context.Context, id string) error {
	return r.DestroyTx(ctx, r.db, id)
}

func (r *accessTokens) DestroyTx(ctx context.Context, tx bun.IDB, id string) error {
	_, err := tx.NewDelete().
		Model((*AccessToken)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (r *accessTokens) DestroyAllForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.DestroyAllForUserTx(ctx, r.db, userID)
}

func (r *accessTokens) DestroyAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error) {
	res, err := tx.NewDelete().
		Model((*AccessToken)(nil)).
		Where("user_id = ?", userID.String()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(n), nil
}
