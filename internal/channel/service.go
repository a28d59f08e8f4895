// Package channel は連携済みYouTubeチャンネルの管理を提供する。
package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/ytreply/internal/model"
	"github.com/hitoshi/ytreply/internal/repository"
)

// Service はチャンネル管理のサービス層。
type Service struct {
	channelRepo repository.ChannelRepository
}

// NewService はServiceを生成する。
func NewService(channelRepo repository.ChannelRepository) *Service {
	return &Service{channelRepo: channelRepo}
}

// List はユーザーの連携チャンネルを新しい順に返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Channel, error) {
	channels, err := s.channelRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("チャンネル一覧の取得に失敗しました: %w", err)
	}
	return channels, nil
}

// Connect はYouTubeチャンネルの連携を開始する。
// YouTubeのOAuth連携は提供していないため常にエラーを返す。
func (s *Service) Connect(context.Context, string) error {
	return model.NewChannelConnectUnavailableError()
}

// SetAutoReply はチャンネルの自動返信を切り替える。
func (s *Service) SetAutoReply(ctx context.Context, userID, channelID string, enabled bool) error {
	err := s.channelRepo.SetAutoReply(ctx, userID, channelID, enabled)
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewChannelNotFoundError(channelID)
	}
	if err != nil {
		return fmt.Errorf("自動返信設定の更新に失敗しました: %w", err)
	}
	return nil
}

// Delete はチャンネル連携を解除する。
func (s *Service) Delete(ctx context.Context, userID, channelID string) error {
	err := s.channelRepo.Delete(ctx, userID, channelID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewChannelNotFoundError(channelID)
	}
	if err != nil {
		return fmt.Errorf("チャンネルの削除に失敗しました: %w", err)
	}
	return nil
}
