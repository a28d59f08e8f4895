package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/hitoshi/ytreply/internal/model"
	"github.com/hitoshi/ytreply/internal/plan"
)

type mockCreator struct {
	createFn func(ctx context.Context, priceID, userID, email string) (string, error)
	calls    int
}

func (m *mockCreator) CreateSession(ctx context.Context, priceID, userID, email string) (string, error) {
	m.calls++
	return m.createFn(ctx, priceID, userID, email)
}

type mockEventRepo struct {
	events []*model.SubscriptionEvent
	err    error
}

func (m *mockEventRepo) Create(_ context.Context, e *model.SubscriptionEvent) error {
	m.events = append(m.events, e)
	return m.err
}

func newTestService(creator SessionCreator, events *mockEventRepo) *Service {
	return NewService(plan.Default(), creator, events, slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)))
}

func apiErrorCode(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

func TestService_StartCheckout_Success(t *testing.T) {
	creator := &mockCreator{createFn: func(_ context.Context, priceID, userID, email string) (string, error) {
		return "cs_1", nil
	}}
	events := &mockEventRepo{}

	id, err := newTestService(creator, events).StartCheckout(context.Background(), "u1", "a@example.com", "price_business_monthly")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "cs_1" {
		t.Errorf("id = %q, want cs_1", id)
	}
	if len(events.events) != 1 {
		t.Fatalf("events = %d, want 1", len(events.events))
	}
	e := events.events[0]
	if e.PlanType != model.PlanBusiness || e.EventType != model.SubscriptionEventCheckoutStarted || e.UserID != "u1" {
		t.Errorf("event = %+v", e)
	}
	var payload map[string]string
	json.Unmarshal(e.Payload, &payload)
	if payload["session_id"] != "cs_1" || payload["price_id"] != "price_business_monthly" {
		t.Errorf("payload = %v", payload)
	}
}

func TestService_StartCheckout_Errors(t *testing.T) {
	failing := &mockCreator{createFn: func(context.Context, string, string, string) (string, error) {
		return "", errors.New("endpoint down")
	}}

	tests := []struct {
		name     string
		creator  SessionCreator
		priceID  string
		wantCode string
	}{
		{"未知の価格ID", failing, "price_gold", model.ErrCodeInvalidPrice},
		{"無料プランは購入不可", failing, "", model.ErrCodeInvalidPrice},
		{"エンドポイント未設定", nil, "price_pro_monthly", model.ErrCodeCheckoutUnavailable},
		{"作成失敗", failing, "price_pro_monthly", model.ErrCodeCheckoutFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := &mockEventRepo{}
			_, err := newTestService(tt.creator, events).StartCheckout(context.Background(), "u1", "a@example.com", tt.priceID)
			if got := apiErrorCode(err); got != tt.wantCode {
				t.Errorf("code = %q, want %q (err=%v)", got, tt.wantCode, err)
			}
			if len(events.events) != 0 {
				t.Errorf("no event should be recorded on failure, got %d", len(events.events))
			}
		})
	}
}

func TestService_StartCheckout_EventFailureDoesNotBlock(t *testing.T) {
	creator := &mockCreator{createFn: func(context.Context, string, string, string) (string, error) {
		return "cs_2", nil
	}}
	events := &mockEventRepo{err: errors.New("insert failed")}

	id, err := newTestService(creator, events).StartCheckout(context.Background(), "u1", "a@example.com", "price_pro_monthly")
	if err != nil || id != "cs_2" {
		t.Errorf("StartCheckout = %q, %v; want cs_2, nil", id, err)
	}
}
