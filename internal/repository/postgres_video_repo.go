package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/ytreply/internal/model"
)

// PostgresVideoRepo はPostgreSQLを使用した登録動画リポジトリ。
type PostgresVideoRepo struct {
	db *sql.DB
}

// NewPostgresVideoRepo はPostgresVideoRepoを生成する。
func NewPostgresVideoRepo(db *sql.DB) *PostgresVideoRepo {
	return &PostgresVideoRepo{db: db}
}

const videoColumns = `id, user_id, youtube_video_id, title, COALESCE(transcript, ''), auto_reply_enabled, created_at`

func scanVideo(scan func(dest ...any) error) (*model.Video, error) {
	v := &model.Video{}
	if err := scan(&v.ID, &v.UserID, &v.YouTubeVideoID, &v.Title, &v.Transcript, &v.AutoReplyEnabled, &v.CreatedAt); err != nil {
		return nil, err
	}
	return v, nil
}

// ListByUserID はユーザーの登録動画を新しい順に返す。
func (r *PostgresVideoRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Video, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+videoColumns+`
		 FROM videos
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	videos := []*model.Video{}
	for rows.Next() {
		v, err := scanVideo(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate videos: %w", err)
	}
	return videos, nil
}

// CountByUserID はユーザーの登録動画数を返す。
func (r *PostgresVideoRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM videos WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count videos: %w", err)
	}
	return count, nil
}

// FindByYouTubeID はユーザーが登録済みの動画をYouTube動画IDで検索する。見つからない場合はnilを返す。
func (r *PostgresVideoRepo) FindByYouTubeID(ctx context.Context, userID, youtubeVideoID string) (*model.Video, error) {
	v, err := scanVideo(r.db.QueryRowContext(ctx,
		`SELECT `+videoColumns+`
		 FROM videos
		 WHERE user_id = $1 AND youtube_video_id = $2`,
		userID, youtubeVideoID,
	).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find video: %w", err)
	}
	return v, nil
}

// Create は動画を登録する。
func (r *PostgresVideoRepo) Create(ctx context.Context, video *model.Video) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO videos (id, user_id, youtube_video_id, title, auto_reply_enabled, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		video.ID, video.UserID, video.YouTubeVideoID, video.Title, video.AutoReplyEnabled, video.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}
	return nil
}

// SetAutoReply は動画の自動返信の有効/無効を切り替える。
func (r *PostgresVideoRepo) SetAutoReply(ctx context.Context, userID, id string, enabled bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE videos SET auto_reply_enabled = $3
		 WHERE id = $1 AND user_id = $2`,
		id, userID, enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}
	return expectAffected(result)
}

// Delete は登録動画を削除する。
func (r *PostgresVideoRepo) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM videos WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	return expectAffected(result)
}

// compile-time interface check
var _ VideoRepository = (*PostgresVideoRepo)(nil)
