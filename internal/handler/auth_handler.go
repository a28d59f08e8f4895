package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/ytreply/internal/authstate"
	"github.com/hitoshi/ytreply/internal/middleware"
	"github.com/hitoshi/ytreply/internal/model"
)

const oauthStateCookie = "oauth_state"

// ログインページに表示する通知のキー
const (
	noticeSignInFailed  = "signin_failed"
	noticeSignOutFailed = "signout_failed"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.Session, *model.User, error)
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// StoreRegistry はセッションIDごとの認証状態ストアを管理する。
type StoreRegistry interface {
	Acquire(sessionID string) *authstate.Store
	// Lookup は確認済みのストアだけを返し、新たに生成しない。
	Lookup(sessionID string) (*authstate.Store, bool)
	Forget(sessionID string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain   string
	CookieSecure   bool
	SessionMaxAge  int    // セッションCookieの有効期間（秒）
	LoginPath      string // サインアウト後・ログイン失敗時のリダイレクト先
	AfterLoginPath string // ログイン成功時のリダイレクト先
}

func (c AuthHandlerConfig) withDefaults() AuthHandlerConfig {
	if c.LoginPath == "" {
		c.LoginPath = "/login"
	}
	if c.AfterLoginPath == "" {
		c.AfterLoginPath = "/dashboard"
	}
	return c
}

// AuthHandler はOAuth認証とサインアウトのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	stores  StoreRegistry
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, stores StoreRegistry, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		stores:  stores,
		config:  config.withDefaults(),
	}
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// セッションCookieを発行し、そのセッションのストアへユーザーを即座に反映してからダッシュボードへ遷移する。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch", slog.String("query_state", state))
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	session, user, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		http.Redirect(w, r, h.loginURL(noticeSignInFailed), http.StatusSeeOther)
		return
	}

	http.SetCookie(w, h.sessionCookie(session.ID, h.config.SessionMaxAge))

	identity := &authstate.Identity{ID: user.ID, Email: user.Email}
	if user.Name != "" {
		identity.Claims = map[string]string{"name": user.Name}
	}
	h.stores.Acquire(session.ID).SetUser(identity)

	http.Redirect(w, r, h.config.AfterLoginPath, http.StatusSeeOther)
}

// Logout はサインアウトする。
// プロバイダー側の終了処理が失敗しても、このブラウザのセッションは破棄してログインページへ戻し、失敗を通知する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	target := h.loginURL("")

	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		store := h.stores.Acquire(cookie.Value)
		if err := store.SignOut(r.Context()); err != nil {
			slog.Error("failed to logout", slog.String("error", err.Error()))
			target = h.loginURL(noticeSignOutFailed)
		}
		h.stores.Forget(cookie.Value)
	}

	http.SetCookie(w, h.sessionCookie("", -1))
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		middleware.WriteUnauthorized(w)
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil {
		slog.Warn("failed to get current user", slog.String("error", err.Error()))
		middleware.WriteUnauthorized(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
	})
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *AuthHandler) loginURL(notice string) string {
	if notice == "" {
		return h.config.LoginPath
	}
	return h.config.LoginPath + "?notice=" + url.QueryEscape(notice)
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
