// Package dashboard はダッシュボードの集計値を提供する。
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/ytreply/internal/model"
	"github.com/hitoshi/ytreply/internal/plan"
	"github.com/hitoshi/ytreply/internal/repository"
)

// Stats はダッシュボードに表示する集計値。
type Stats struct {
	Plan               plan.Plan
	TotalVideos        int
	TotalReplies       int
	Month              string // YYYY-MM（UTC）
	MonthlyAutoReplies int
	MonthlyReplyLimit  int
}

// UsagePercent は今月の自動返信数の上限に対する割合（0〜100）を返す。
func (s Stats) UsagePercent() int {
	if s.MonthlyReplyLimit <= 0 {
		return 0
	}
	pct := s.MonthlyAutoReplies * 100 / s.MonthlyReplyLimit
	if pct > 100 {
		return 100
	}
	return pct
}

// Service はダッシュボード集計のサービス層。
type Service struct {
	videoRepo   repository.VideoRepository
	usageRepo   repository.UsageRepository
	profileRepo repository.ProfileRepository
	catalog     *plan.Catalog
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	videoRepo repository.VideoRepository,
	usageRepo repository.UsageRepository,
	profileRepo repository.ProfileRepository,
	catalog *plan.Catalog,
) *Service {
	return &Service{
		videoRepo:   videoRepo,
		usageRepo:   usageRepo,
		profileRepo: profileRepo,
		catalog:     catalog,
		now:         time.Now,
	}
}

// CurrentMonth はUTCの年月をYYYY-MM形式で返す。
func CurrentMonth(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Stats はユーザーの集計値を返す。
func (s *Service) Stats(ctx context.Context, userID string) (*Stats, error) {
	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	planType := model.PlanFree
	if profile != nil {
		planType = profile.PlanType
	}
	p := s.catalog.Lookup(planType)

	videos, err := s.videoRepo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("登録動画数の取得に失敗しました: %w", err)
	}
	replies, err := s.usageRepo.CountReplies(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("返信数の取得に失敗しました: %w", err)
	}
	month := CurrentMonth(s.now())
	monthly, err := s.usageRepo.MonthlyAutoReplies(ctx, userID, month)
	if err != nil {
		return nil, fmt.Errorf("今月の利用状況の取得に失敗しました: %w", err)
	}

	return &Stats{
		Plan:               p,
		TotalVideos:        videos,
		TotalReplies:       replies,
		Month:              month,
		MonthlyAutoReplies: monthly,
		MonthlyReplyLimit:  p.MonthlyReplyLimit,
	}, nil
}
