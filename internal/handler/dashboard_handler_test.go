package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/ytreply/internal/dashboard"
	"github.com/hitoshi/ytreply/internal/model"
	"github.com/hitoshi/ytreply/internal/plan"
)

func TestDashboardHandler_Stats(t *testing.T) {
	svc := &mockDashboardService{
		statsFn: func(ctx context.Context, userID string) (*dashboard.Stats, error) {
			return &dashboard.Stats{
				Plan:               plan.Default().Lookup(model.PlanPro),
				TotalVideos:        4,
				TotalReplies:       120,
				Month:              "2026-10",
				MonthlyAutoReplies: 50,
				MonthlyReplyLimit:  200,
			}, nil
		},
	}
	h := NewDashboardHandler(svc)

	w := httptest.NewRecorder()
	h.Stats(w, withUserID(httptest.NewRequest(http.MethodGet, "/api/dashboard", nil), "user-1"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body dashboardResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Plan != "pro" {
		t.Errorf("plan = %q, want %q", body.Plan, "pro")
	}
	if body.UsagePercent != 25 {
		t.Errorf("usage_percent = %d, want 25", body.UsagePercent)
	}
	if body.TotalVideos != 4 || body.TotalReplies != 120 {
		t.Errorf("totals = %d/%d", body.TotalVideos, body.TotalReplies)
	}
}

func TestDashboardHandler_Stats_Error(t *testing.T) {
	svc := &mockDashboardService{
		statsFn: func(ctx context.Context, userID string) (*dashboard.Stats, error) {
			return nil, errors.New("db")
		},
	}
	h := NewDashboardHandler(svc)

	w := httptest.NewRecorder()
	h.Stats(w, withUserID(httptest.NewRequest(http.MethodGet, "/api/dashboard", nil), "user-1"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
