package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/ytreply/internal/model"
	"github.com/hitoshi/ytreply/internal/plan"
	"github.com/hitoshi/ytreply/internal/repository"
)

// SessionCreator はチェックアウトセッションを作成する。
type SessionCreator interface {
	CreateSession(ctx context.Context, priceID, userID, email string) (string, error)
}

// Service はチェックアウト開始のビジネスロジックを提供する。
type Service struct {
	catalog *plan.Catalog
	creator SessionCreator // nilの場合チェックアウトは利用不可
	events  repository.SubscriptionEventRepository
	logger  *slog.Logger
}

// NewService はServiceを生成する。
func NewService(catalog *plan.Catalog, creator SessionCreator, events repository.SubscriptionEventRepository, logger *slog.Logger) *Service {
	return &Service{catalog: catalog, creator: creator, events: events, logger: logger}
}

// Plans は料金ページに表示するプラン一覧を返す。
func (s *Service) Plans() []plan.Plan {
	return s.catalog.All()
}

// StartCheckout はpriceIDのチェックアウトセッションを作成し、課金イベントを記録してセッションIDを返す。
func (s *Service) StartCheckout(ctx context.Context, userID, email, priceID string) (string, error) {
	p, ok := s.catalog.ByPriceID(priceID)
	if !ok {
		return "", model.NewInvalidPriceError(priceID)
	}
	if s.creator == nil {
		return "", model.NewCheckoutUnavailableError()
	}

	sessionID, err := s.creator.CreateSession(ctx, priceID, userID, email)
	if err != nil {
		s.logger.Error("failed to create checkout session",
			slog.String("user_id", userID),
			slog.String("price_id", priceID),
			slog.String("error", err.Error()),
		)
		return "", model.NewCheckoutFailedError()
	}

	payload, err := json.Marshal(map[string]string{
		"price_id":   priceID,
		"session_id": sessionID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal event payload: %w", err)
	}
	event := &model.SubscriptionEvent{
		ID:        uuid.New().String(),
		UserID:    userID,
		EventType: model.SubscriptionEventCheckoutStarted,
		PlanType:  p.Type,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	if err := s.events.Create(ctx, event); err != nil {
		// セッションは作成済みのため、記録失敗では利用者の購入を止めない
		s.logger.Error("failed to record checkout event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("checkout started",
		slog.String("user_id", userID),
		slog.String("plan", string(p.Type)),
	)
	return sessionID, nil
}
