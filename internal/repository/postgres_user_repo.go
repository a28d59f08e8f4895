package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/ytreply/internal/model"
)

// PostgresUserRepo はusersテーブルと、サインアップ時に同時作成するidentities・profilesを扱う。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, created_at, updated_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to find user %s: %w", id, err)
	}
	return &u, nil
}

// CreateWithIdentity はユーザー、identity、プロフィールを1トランザクションで作成する。
// 同じidentityが並行して作成された場合はErrDuplicateを返す。
func (r *PostgresUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity, profile *model.Profile) error {
	planType := profile.PlanType
	if planType == "" {
		planType = model.PlanFree
	}

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, email, name, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			user.ID, user.Email, user.Name, user.CreatedAt, user.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO identities (id, user_id, provider, provider_user_id, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			identity.ID, identity.UserID, identity.Provider, identity.ProviderUserID, identity.CreatedAt,
		); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("failed to insert identity: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO profiles (id, email, full_name, plan_type, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $5)`,
			profile.ID, profile.Email, profile.FullName, string(planType), profile.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert profile: %w", err)
		}
		return nil
	})
	return err
}

// DeleteByID は指定IDのユーザーを削除する。所有データはCASCADEで消える。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user %s: %w", id, err)
	}
	return expectAffected(result)
}

var _ UserRepository = (*PostgresUserRepo)(nil)
