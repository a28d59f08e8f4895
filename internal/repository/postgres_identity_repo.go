package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/ytreply/internal/model"
)

// PostgresIdentityRepo は外部IdPのアカウントとユーザーの紐付けを参照する。
// 作成はPostgresUserRepo.CreateWithIdentityがサインアップと同じトランザクションで行う。
type PostgresIdentityRepo struct {
	db *sql.DB
}

// NewPostgresIdentityRepo はPostgresIdentityRepoを生成する。
func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

// FindByProviderAndProviderUserID は(provider, provider_user_id)の一意キーでidentityを引く。
// 未登録ならnilを返す。
func (r *PostgresIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	var i model.Identity
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, provider, provider_user_id, created_at
		 FROM identities
		 WHERE provider = $1 AND provider_user_id = $2`,
		provider, providerUserID,
	).Scan(&i.ID, &i.UserID, &i.Provider, &i.ProviderUserID, &i.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s identity: %w", provider, err)
	}
	return &i, nil
}

var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
