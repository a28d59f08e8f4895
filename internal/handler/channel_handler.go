package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ytreply/internal/model"
)

// ChannelServiceInterface はチャンネルハンドラーが必要とするサービスインターフェース。
type ChannelServiceInterface interface {
	List(ctx context.Context, userID string) ([]*model.Channel, error)
	Connect(ctx context.Context, userID string) error
	SetAutoReply(ctx context.Context, userID, channelID string, enabled bool) error
	Delete(ctx context.Context, userID, channelID string) error
}

// ChannelHandler は連携チャンネルのHTTPハンドラー。
type ChannelHandler struct {
	service ChannelServiceInterface
}

// NewChannelHandler はChannelHandlerを生成する。
func NewChannelHandler(service ChannelServiceInterface) *ChannelHandler {
	return &ChannelHandler{service: service}
}

type channelResponse struct {
	ID               string    `json:"id"`
	ChannelID        string    `json:"channel_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	ThumbnailURL     string    `json:"thumbnail_url"`
	SubscriberCount  int64     `json:"subscriber_count"`
	VideoCount       int64     `json:"video_count"`
	AutoReplyEnabled bool      `json:"auto_reply_enabled"`
	CreatedAt        time.Time `json:"created_at"`
}

// List は連携済みチャンネルの一覧を返す。
// GET /api/channels
func (h *ChannelHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	channels, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]channelResponse, len(channels))
	for i, c := range channels {
		resp[i] = channelResponse{
			ID:               c.ID,
			ChannelID:        c.ChannelID,
			Title:            c.Title,
			Description:      c.Description,
			ThumbnailURL:     c.ThumbnailURL,
			SubscriberCount:  c.SubscriberCount,
			VideoCount:       c.VideoCount,
			AutoReplyEnabled: c.AutoReplyEnabled,
			CreatedAt:        c.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Connect はチャンネル連携を開始する。
// POST /api/channels/connect
func (h *ChannelHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Connect(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// SetAutoReply はチャンネルの自動返信を切り替える。
// PATCH /api/channels/{id}/auto-reply
func (h *ChannelHandler) SetAutoReply(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req autoReplyRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.service.SetAutoReply(r.Context(), userID, chi.URLParam(r, "id"), *req.Enabled); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete はチャンネル連携を解除する。
// DELETE /api/channels/{id}
func (h *ChannelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
