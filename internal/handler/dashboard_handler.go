package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/ytreply/internal/dashboard"
)

// DashboardServiceInterface はダッシュボードの集計を提供する。
type DashboardServiceInterface interface {
	Stats(ctx context.Context, userID string) (*dashboard.Stats, error)
}

// DashboardHandler はダッシュボード集計のHTTPハンドラー。
type DashboardHandler struct {
	service DashboardServiceInterface
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(service DashboardServiceInterface) *DashboardHandler {
	return &DashboardHandler{service: service}
}

type dashboardResponse struct {
	Plan               string `json:"plan"`
	TotalVideos        int    `json:"total_videos"`
	TotalReplies       int    `json:"total_replies"`
	Month              string `json:"month"`
	MonthlyAutoReplies int    `json:"monthly_auto_replies"`
	MonthlyReplyLimit  int    `json:"monthly_reply_limit"`
	UsagePercent       int    `json:"usage_percent"`
}

// Stats はダッシュボードの集計値を返す。
// GET /api/dashboard
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dashboardResponse{
		Plan:               string(stats.Plan.Type),
		TotalVideos:        stats.TotalVideos,
		TotalReplies:       stats.TotalReplies,
		Month:              stats.Month,
		MonthlyAutoReplies: stats.MonthlyAutoReplies,
		MonthlyReplyLimit:  stats.MonthlyReplyLimit,
		UsagePercent:       stats.UsagePercent(),
	})
}
