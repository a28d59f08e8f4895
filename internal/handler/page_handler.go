package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ytreply/internal/authstate"
	"github.com/hitoshi/ytreply/internal/middleware"
	"github.com/hitoshi/ytreply/internal/model"
	"github.com/hitoshi/ytreply/internal/plan"
	"github.com/hitoshi/ytreply/internal/view"
)

// PageRenderer はページを描画する。
type PageRenderer interface {
	Render(w http.ResponseWriter, status int, name string, data view.PageData)
}

// PlanCatalog は契約プランの検索を提供する。
type PlanCatalog interface {
	All() []plan.Plan
	Lookup(t model.PlanType) plan.Plan
}

// noticeMessages はクエリパラメータnoticeのキーと表示文言の対応。
// 未知のキーは表示しない。
var noticeMessages = map[string]string{
	noticeSignInFailed:  "Sign in failed. Please try again.",
	noticeSignOutFailed: "We could not reach the sign-in service, but you have been signed out on this device.",
	"account_deleted":   "Your account has been deleted.",
}

// PageHandler はサーバーサイド描画のページハンドラー。
type PageHandler struct {
	renderer  PageRenderer
	stores    StoreRegistry
	plans     PlanCatalog
	dashboard DashboardServiceInterface
	videos    VideoServiceInterface
	channels  ChannelServiceInterface
	users     UserServiceInterface
	loginPath string
}

// PageServices はPageHandlerが参照するサービス群。
type PageServices struct {
	Plans     PlanCatalog
	Dashboard DashboardServiceInterface
	Videos    VideoServiceInterface
	Channels  ChannelServiceInterface
	Users     UserServiceInterface

	// LoginPath はガードを経由しない特権ページのリダイレクト先。空の場合は/login
	LoginPath string
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(renderer PageRenderer, stores StoreRegistry, services PageServices) *PageHandler {
	loginPath := services.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}
	return &PageHandler{
		renderer:  renderer,
		stores:    stores,
		plans:     services.Plans,
		dashboard: services.Dashboard,
		videos:    services.Videos,
		channels:  services.Channels,
		users:     services.Users,
		loginPath: loginPath,
	}
}

// --- 公開ページ ---

// Home GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "home", "YouTube comments, answered", nil)
}

// Pricing GET /pricing
func (h *PageHandler) Pricing(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pricing", "Pricing", h.plans.All())
}

// ForgotPassword GET /forgot-password
func (h *PageHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "forgot_password", "Forgot password", nil)
}

// Login GET /login
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "login", "Sign in", nil)
}

// Signup GET /signup
func (h *PageHandler) Signup(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "signup", "Create your account", nil)
}

// --- 特権ページ（ガード配下） ---

// Dashboard GET /dashboard
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.renderPrivate(w, r, "dashboard", "Dashboard", func(ctx context.Context, userID string) (any, error) {
		return h.dashboard.Stats(ctx, userID)
	})
}

// Videos GET /videos
func (h *PageHandler) Videos(w http.ResponseWriter, r *http.Request) {
	h.renderPrivate(w, r, "videos", "Videos", func(ctx context.Context, userID string) (any, error) {
		return h.videos.List(ctx, userID)
	})
}

// Channels GET /channels
func (h *PageHandler) Channels(w http.ResponseWriter, r *http.Request) {
	h.renderPrivate(w, r, "channels", "Channels", func(ctx context.Context, userID string) (any, error) {
		return h.channels.List(ctx, userID)
	})
}

// Settings GET /settings
func (h *PageHandler) Settings(w http.ResponseWriter, r *http.Request) {
	h.renderPrivate(w, r, "settings", "Settings", func(ctx context.Context, userID string) (any, error) {
		profile, err := h.users.Profile(ctx, userID)
		if err != nil {
			return nil, err
		}
		return view.SettingsData{Profile: profile, Plan: h.plans.Lookup(profile.PlanType)}, nil
	})
}

// NotFound は未定義のパスをトップページへリダイレクトする。
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, page, title string, data any) {
	h.renderer.Render(w, http.StatusOK, page, view.PageData{
		Title:  title,
		User:   h.visitor(r),
		Notice: noticeMessages[r.URL.Query().Get("notice")],
		Data:   data,
	})
}

func (h *PageHandler) renderPrivate(
	w http.ResponseWriter,
	r *http.Request,
	page, title string,
	load func(ctx context.Context, userID string) (any, error),
) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, h.loginPath, http.StatusSeeOther)
		return
	}

	data, err := load(r.Context(), userID)
	if err != nil {
		slog.Error("failed to load page data",
			slog.String("page", page),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.render(w, r, page, title, data)
}

// visitor はナビゲーション表示用に現在のユーザーを返す。
// ガード配下ではコンテキストのストアを使う。公開ページでは確認済みのストアだけを参照し、
// 未知のCookieでストアを生成しない。
func (h *PageHandler) visitor(r *http.Request) *authstate.Identity {
	if store, ok := authstate.FromContext(r.Context()); ok {
		return store.Snapshot().User
	}
	if h.stores == nil {
		return nil
	}
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	store, ok := h.stores.Lookup(cookie.Value)
	if !ok {
		return nil
	}
	st := store.Snapshot()
	if !st.Initialized {
		return nil
	}
	return st.User
}
