// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// 削除したセッションごとにexpiredイベントを配信し、
// そのセッションを表示中の認証状態ストアを未ログインへ遷移させる。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/ytreply/internal/model"
	"github.com/hitoshi/ytreply/internal/sessionevent"
)

// ExpiredSessionDeleter は期限切れセッションを削除する。
// repository.SessionRepositoryの部分集合。
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) ([]*model.Session, error)
}

// Publisher はセッションイベントを配信する。
type Publisher interface {
	Publish(ctx context.Context, e sessionevent.Event) error
}

// Recorder は削除件数を記録する。
type Recorder interface {
	RecordSessionsExpired(count int)
}

// SessionSweeper は期限切れセッションの削除ジョブ。
// 冪等: 削除対象がない場合でもエラーにならない。
type SessionSweeper struct {
	sessions  ExpiredSessionDeleter
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time

	// Recorder がnilでなければ削除件数を通知する。
	Recorder Recorder
}

// NewSessionSweeper は新しいSessionSweeperを生成する。
func NewSessionSweeper(sessions ExpiredSessionDeleter, publisher Publisher, logger *slog.Logger) *SessionSweeper {
	return &SessionSweeper{
		sessions:  sessions,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Run は期限切れセッションを1回削除し、セッションごとにexpiredを配信する。
// 配信の失敗はログに記録して次のセッションへ進む。
func (j *SessionSweeper) Run(ctx context.Context) error {
	start := time.Now()
	now := j.now()

	expired, err := j.sessions.DeleteExpired(ctx, now)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}

	if j.publisher != nil {
		for _, s := range expired {
			e := sessionevent.Event{
				SessionID: s.ID,
				UserID:    s.UserID,
				Kind:      sessionevent.KindExpired,
				At:        now,
			}
			if err := j.publisher.Publish(ctx, e); err != nil {
				j.logger.Warn("expiredイベントの配信に失敗しました",
					slog.String("session_id", s.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if j.Recorder != nil {
		j.Recorder.RecordSessionsExpired(len(expired))
	}

	j.logger.Info("セッションクリーンアップが完了しました",
		slog.Int("deleted_count", len(expired)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start はintervalごとにRunを実行する。起動直後にも1回実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *SessionSweeper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("セッションクリーンアップを開始しました",
		slog.Duration("interval", interval),
	)

	// Runはエラーをログに記録済み
	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
