package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresUsageRepo はPostgreSQLを使用した返信実績リポジトリ。
type PostgresUsageRepo struct {
	db *sql.DB
}

// NewPostgresUsageRepo はPostgresUsageRepoを生成する。
func NewPostgresUsageRepo(db *sql.DB) *PostgresUsageRepo {
	return &PostgresUsageRepo{db: db}
}

// CountReplies はユーザーの累計返信数を返す。
func (r *PostgresUsageRepo) CountReplies(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM comment_replies WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count replies: %w", err)
	}
	return count, nil
}

// MonthlyAutoReplies は指定月の自動返信数を返す。
func (r *PostgresUsageRepo) MonthlyAutoReplies(ctx context.Context, userID, month string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT auto_replies_count FROM usage_stats WHERE user_id = $1 AND month = $2`,
		userID, month,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get monthly usage: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ UsageRepository = (*PostgresUsageRepo)(nil)
