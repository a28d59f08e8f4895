package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/ytreply/internal/model"
)

// PostgresChannelRepo はPostgreSQLを使用した連携チャンネルリポジトリ。
type PostgresChannelRepo struct {
	db *sql.DB
}

// NewPostgresChannelRepo はPostgresChannelRepoを生成する。
func NewPostgresChannelRepo(db *sql.DB) *PostgresChannelRepo {
	return &PostgresChannelRepo{db: db}
}

// ListByUserID はユーザーの連携チャンネルを新しい順に返す。
func (r *PostgresChannelRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Channel, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, channel_id, title, description, thumbnail_url,
		        subscriber_count, video_count, auto_reply_enabled, created_at
		 FROM youtube_channels
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	channels := []*model.Channel{}
	for rows.Next() {
		c := &model.Channel{}
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.ChannelID, &c.Title, &c.Description, &c.ThumbnailURL,
			&c.SubscriberCount, &c.VideoCount, &c.AutoReplyEnabled, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		channels = append(channels, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate channels: %w", err)
	}
	return channels, nil
}

// SetAutoReply はチャンネルの自動返信の有効/無効を切り替える。
func (r *PostgresChannelRepo) SetAutoReply(ctx context.Context, userID, id string, enabled bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE youtube_channels SET auto_reply_enabled = $3
		 WHERE id = $1 AND user_id = $2`,
		id, userID, enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to update channel: %w", err)
	}
	return expectAffected(result)
}

// Delete は連携チャンネルを削除する。
func (r *PostgresChannelRepo) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM youtube_channels WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete channel: %w", err)
	}
	return expectAffected(result)
}

// compile-time interface check
var _ ChannelRepository = (*PostgresChannelRepo)(nil)
