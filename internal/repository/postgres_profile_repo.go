package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/ytreply/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByUserID はユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT id, email, full_name, plan_type, created_at
		 FROM profiles WHERE id = $1`,
		userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return p, nil
}

// UpdateFullName は表示名を更新し、更新後のプロフィールを返す。
func (r *PostgresProfileRepo) UpdateFullName(ctx context.Context, userID, fullName string) (*model.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx,
		`UPDATE profiles SET full_name = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING id, email, full_name, plan_type, created_at`,
		userID, fullName,
	))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return p, nil
}

func scanProfile(row *sql.Row) (*model.Profile, error) {
	p := &model.Profile{}
	var plan string
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &plan, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.PlanType = model.PlanType(plan)
	return p, nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
