// Package user はプロフィール管理と退会処理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/ytreply/internal/model"
	"github.com/hitoshi/ytreply/internal/repository"
	"github.com/hitoshi/ytreply/internal/security"
	"github.com/hitoshi/ytreply/internal/sessionevent"
)

// FullNameMaxRunes は表示名の最大文字数。
const FullNameMaxRunes = 120

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	profileRepo repository.ProfileRepository
	sessionRepo repository.SessionRepository
	sanitizer   security.TextSanitizer
	hub         sessionevent.Hub
	logger      *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	profileRepo repository.ProfileRepository,
	sessionRepo repository.SessionRepository,
	sanitizer security.TextSanitizer,
	hub sessionevent.Hub,
	logger *slog.Logger,
) *Service {
	return &Service{
		userRepo:    userRepo,
		profileRepo: profileRepo,
		sessionRepo: sessionRepo,
		sanitizer:   sanitizer,
		hub:         hub,
		logger:      logger,
	}
}

// Profile はユーザーのプロフィールを返す。
func (s *Service) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile == nil {
		return nil, model.NewProfileNotFoundError()
	}
	return profile, nil
}

// UpdateFullName は表示名を更新する。HTMLは除去され、最大120文字に切り詰められる。
func (s *Service) UpdateFullName(ctx context.Context, userID, fullName string) (*model.Profile, error) {
	clean := s.sanitizer.Sanitize(fullName, FullNameMaxRunes)

	profile, err := s.profileRepo.UpdateFullName(ctx, userID, clean)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, model.NewProfileNotFoundError()
	}
	if err != nil {
		return nil, fmt.Errorf("表示名の更新に失敗しました: %w", err)
	}
	return profile, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 全セッションを削除してサインアウトを通知した後、ユーザーを削除する。
// identities、profiles、動画などの所有データはCASCADE削除される。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	s.logger.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	sessionIDs, err := s.sessionRepo.DeleteByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}
	s.notifySignedOut(ctx, userID, sessionIDs)

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	s.logger.Info("退会処理が完了しました",
		slog.String("user_id", userID),
		slog.Int("sessions", len(sessionIDs)),
	)
	return nil
}

func (s *Service) notifySignedOut(ctx context.Context, userID string, sessionIDs []string) {
	if s.hub == nil {
		return
	}
	now := time.Now()
	for _, id := range sessionIDs {
		err := s.hub.Publish(ctx, sessionevent.Event{
			SessionID: id,
			UserID:    userID,
			Kind:      sessionevent.KindSignedOut,
			At:        now,
		})
		if err != nil {
			s.logger.Warn("failed to publish session event",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
}
