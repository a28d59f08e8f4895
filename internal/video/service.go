// Package video は自動返信対象動画の登録・一覧・設定変更を提供する。
package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/ytreply/internal/model"
	"github.com/hitoshi/ytreply/internal/plan"
	"github.com/hitoshi/ytreply/internal/repository"
	"github.com/hitoshi/ytreply/internal/security"
)

// titleMaxRunes は動画タイトルの最大文字数。
const titleMaxRunes = 200

// Transcriber は登録動画の文字起こしを依頼する。呼び出し元をブロックしない。
type Transcriber interface {
	RequestTranscription(ctx context.Context, youtubeVideoID, userID string)
}

// Service は動画管理のサービス層。
type Service struct {
	videoRepo   repository.VideoRepository
	profileRepo repository.ProfileRepository
	catalog     *plan.Catalog
	sanitizer   security.TextSanitizer
	transcriber Transcriber
	logger      *slog.Logger
}

// NewService はServiceを生成する。transcriberがnilの場合は文字起こしを依頼しない。
func NewService(
	videoRepo repository.VideoRepository,
	profileRepo repository.ProfileRepository,
	catalog *plan.Catalog,
	sanitizer security.TextSanitizer,
	transcriber Transcriber,
	logger *slog.Logger,
) *Service {
	return &Service{
		videoRepo:   videoRepo,
		profileRepo: profileRepo,
		catalog:     catalog,
		sanitizer:   sanitizer,
		transcriber: transcriber,
		logger:      logger,
	}
}

// List はユーザーの登録動画を新しい順に返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Video, error) {
	videos, err := s.videoRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("動画一覧の取得に失敗しました: %w", err)
	}
	return videos, nil
}

// Register はYouTube動画URLから動画を登録し、文字起こしを依頼する。
// titleが空の場合は動画IDをタイトルとする。
func (s *Service) Register(ctx context.Context, userID, rawURL, title string) (*model.Video, error) {
	youtubeID, ok := ExtractYouTubeID(rawURL)
	if !ok {
		return nil, model.NewInvalidVideoURLError(rawURL)
	}

	p, err := s.planOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	count, err := s.videoRepo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("登録動画数の取得に失敗しました: %w", err)
	}
	if count >= p.VideoLimit {
		return nil, model.NewVideoLimitError(p.VideoLimit)
	}

	existing, err := s.videoRepo.FindByYouTubeID(ctx, userID, youtubeID)
	if err != nil {
		return nil, fmt.Errorf("登録済み動画の確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateVideoError()
	}

	clean := s.sanitizer.Sanitize(title, titleMaxRunes)
	if clean == "" {
		clean = youtubeID
	}

	v := &model.Video{
		ID:               uuid.New().String(),
		UserID:           userID,
		YouTubeVideoID:   youtubeID,
		Title:            clean,
		AutoReplyEnabled: true,
		CreatedAt:        time.Now(),
	}
	if err := s.videoRepo.Create(ctx, v); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewDuplicateVideoError()
		}
		return nil, fmt.Errorf("動画の登録に失敗しました: %w", err)
	}

	s.logger.Info("video registered",
		slog.String("user_id", userID),
		slog.String("youtube_video_id", youtubeID),
	)

	if s.transcriber != nil {
		s.transcriber.RequestTranscription(ctx, youtubeID, userID)
	}
	return v, nil
}

// SetAutoReply は動画の自動返信を切り替える。
func (s *Service) SetAutoReply(ctx context.Context, userID, videoID string, enabled bool) error {
	err := s.videoRepo.SetAutoReply(ctx, userID, videoID, enabled)
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewVideoNotFoundError(videoID)
	}
	if err != nil {
		return fmt.Errorf("自動返信設定の更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は登録動画を削除する。
func (s *Service) Delete(ctx context.Context, userID, videoID string) error {
	err := s.videoRepo.Delete(ctx, userID, videoID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewVideoNotFoundError(videoID)
	}
	if err != nil {
		return fmt.Errorf("動画の削除に失敗しました: %w", err)
	}
	return nil
}

// planOf はユーザーの契約プランを返す。プロフィールがなければ無料プラン。
func (s *Service) planOf(ctx context.Context, userID string) (plan.Plan, error) {
	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return plan.Plan{}, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile == nil {
		return s.catalog.Lookup(model.PlanFree), nil
	}
	return s.catalog.Lookup(profile.PlanType), nil
}
