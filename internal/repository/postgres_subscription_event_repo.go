package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/ytreply/internal/model"
)

// PostgresSubscriptionEventRepo はPostgreSQLを使用した課金イベントリポジトリ。
type PostgresSubscriptionEventRepo struct {
	db *sql.DB
}

// NewPostgresSubscriptionEventRepo はPostgresSubscriptionEventRepoを生成する。
func NewPostgresSubscriptionEventRepo(db *sql.DB) *PostgresSubscriptionEventRepo {
	return &PostgresSubscriptionEventRepo{db: db}
}

// Create は課金イベントを記録する。Payloadが空の場合は空オブジェクトを保存する。
func (r *PostgresSubscriptionEventRepo) Create(ctx context.Context, event *model.SubscriptionEvent) error {
	payload := event.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscription_events (id, user_id, event_type, plan_type, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.UserID, event.EventType, string(event.PlanType), payload, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create subscription event: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SubscriptionEventRepository = (*PostgresSubscriptionEventRepo)(nil)
