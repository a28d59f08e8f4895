package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ytreply/internal/model"
)

// VideoServiceInterface は動画ハンドラーが必要とするサービスインターフェース。
type VideoServiceInterface interface {
	List(ctx context.Context, userID string) ([]*model.Video, error)
	Register(ctx context.Context, userID, rawURL, title string) (*model.Video, error)
	SetAutoReply(ctx context.Context, userID, videoID string, enabled bool) error
	Delete(ctx context.Context, userID, videoID string) error
}

// VideoHandler は登録動画のHTTPハンドラー。
type VideoHandler struct {
	service VideoServiceInterface
}

// NewVideoHandler はVideoHandlerを生成する。
func NewVideoHandler(service VideoServiceInterface) *VideoHandler {
	return &VideoHandler{service: service}
}

type registerVideoRequest struct {
	URL   string `json:"url" validate:"required,max=2048"`
	Title string `json:"title" validate:"max=1000"`
}

// autoReplyRequest は動画・チャンネル共通の自動返信切り替えリクエスト。
type autoReplyRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type videoResponse struct {
	ID               string    `json:"id"`
	YouTubeVideoID   string    `json:"youtube_video_id"`
	Title            string    `json:"title"`
	WatchURL         string    `json:"watch_url"`
	Status           string    `json:"status"`
	AutoReplyEnabled bool      `json:"auto_reply_enabled"`
	CreatedAt        time.Time `json:"created_at"`
}

func toVideoResponse(v *model.Video) videoResponse {
	return videoResponse{
		ID:               v.ID,
		YouTubeVideoID:   v.YouTubeVideoID,
		Title:            v.Title,
		WatchURL:         v.WatchURL(),
		Status:           string(v.Status()),
		AutoReplyEnabled: v.AutoReplyEnabled,
		CreatedAt:        v.CreatedAt,
	}
}

// List は登録動画の一覧を返す。
// GET /api/videos
func (h *VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	videos, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]videoResponse, len(videos))
	for i, v := range videos {
		resp[i] = toVideoResponse(v)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Register は動画を登録し、文字起こしを依頼する。
// POST /api/videos
func (h *VideoHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req registerVideoRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	video, err := h.service.Register(r.Context(), userID, req.URL, req.Title)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toVideoResponse(video))
}

// SetAutoReply は動画の自動返信を切り替える。
// PATCH /api/videos/{id}/auto-reply
func (h *VideoHandler) SetAutoReply(w http.ResponseWriter, r *http.Request) {
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

// Delete は動画を削除する。
// DELETE /api/videos/{id}
func (h *VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
