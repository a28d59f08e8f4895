package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/ytreply/internal/middleware"
	"github.com/hitoshi/ytreply/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Profile(ctx context.Context, userID string) (*model.Profile, error)
	UpdateFullName(ctx context.Context, userID, fullName string) (*model.Profile, error)
	// Withdraw はユーザーの退会処理を実行する。
	// プロフィール、動画、チャンネル、セッションもCASCADEで削除される。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はプロフィールと退会のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	stores  StoreRegistry
	cookie  AuthHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
// 退会時のセッションCookie削除にはAuthHandlerConfigのCookie設定を使う。
func NewUserHandler(service UserServiceInterface, stores StoreRegistry, cookie AuthHandlerConfig) *UserHandler {
	return &UserHandler{
		service: service,
		stores:  stores,
		cookie:  cookie,
	}
}

type updateProfileRequest struct {
	FullName string `json:"full_name" validate:"max=1000"`
}

type profileResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FullName    string    `json:"full_name"`
	DisplayName string    `json:"display_name"`
	PlanType    string    `json:"plan_type"`
	CreatedAt   time.Time `json:"created_at"`
}

func toProfileResponse(p *model.Profile) profileResponse {
	return profileResponse{
		ID:          p.ID,
		Email:       p.Email,
		FullName:    p.FullName,
		DisplayName: p.DisplayName(),
		PlanType:    string(p.PlanType),
		CreatedAt:   p.CreatedAt,
	}
}

// GetProfile はプロフィールを返す。
// GET /api/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	profile, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// UpdateProfile は表示名を更新する。
// PATCH /api/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	profile, err := h.service.UpdateFullName(r.Context(), userID, req.FullName)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// Withdraw はユーザーの退会処理を実行する。
// このブラウザのセッションCookieとストアも破棄する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" && h.stores != nil {
		h.stores.Forget(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.cookie.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}
