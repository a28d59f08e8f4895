// Package guard は特権ページへのアクセスを認証状態に応じて制御する。
//
// 判定はリクエストごとに認証状態ストアの最新スナップショットから行い、結果をキャッシュしない。
package guard

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/ytreply/internal/authstate"
	"github.com/hitoshi/ytreply/internal/middleware"
)

// Decision はガードの判定結果。
type Decision int

const (
	// Pending は認証状態が未確定であることを示す。子ページもリダイレクトも行わない。
	Pending Decision = iota
	// Unauthenticated はログインページへリダイレクトすることを示す。
	Unauthenticated
	// Authenticated は子ページを表示することを示す。
	Authenticated
)

// String はメトリクスやログ用の名前を返す。
func (d Decision) String() string {
	switch d {
	case Pending:
		return "pending"
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Decide は認証状態からガードの判定を行う。
func Decide(st authstate.State) Decision {
	if !st.Initialized || st.Loading {
		return Pending
	}
	if st.User == nil {
		return Unauthenticated
	}
	return Authenticated
}

// StoreResolver はセッションIDに対応する認証状態ストアを返す。
type StoreResolver interface {
	Acquire(sessionID string) *authstate.Store
}

// DecisionRecorder は判定結果を記録する。
type DecisionRecorder interface {
	RecordGuardDecision(decision string)
}

// Config はガードミドルウェアの設定。
type Config struct {
	LoginPath   string        // 未認証時のリダイレクト先
	WaitTimeout time.Duration // 初期化完了・再検証を待つ最大時間
	// RevalidateAfter を過ぎた認証状態は判定前にセッションを再取得する
	RevalidateAfter time.Duration
	// PendingHandler は判定がPendingのときに応答するハンドラー。nilの場合は待機ページを返す。
	PendingHandler http.Handler
	Recorder       DecisionRecorder
}

func (c Config) withDefaults() Config {
	if c.LoginPath == "" {
		c.LoginPath = "/login"
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 2 * time.Second
	}
	if c.RevalidateAfter <= 0 {
		c.RevalidateAfter = 30 * time.Second
	}
	if c.PendingHandler == nil {
		c.PendingHandler = http.HandlerFunc(writePending)
	}
	return c
}

// New は特権ページ用のガードミドルウェアを返す。
//
// 初期化が完了していなければWaitTimeoutまで待ってから判定する。
// 状態が古い、またはセッションの有効期限を過ぎている場合は再取得してから判定する。
// 認証済みの場合はユーザーIDとストアをコンテキストに注入して子ハンドラーを呼ぶ。
func New(resolver StoreResolver, config Config) func(next http.Handler) http.Handler {
	config = config.withDefaults()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store := resolver.Acquire(sessionIDFromRequest(r))
			st := currentState(r.Context(), store, config)
			decision := Decide(st)

			if config.Recorder != nil {
				config.Recorder.RecordGuardDecision(decision.String())
			}

			switch decision {
			case Pending:
				config.PendingHandler.ServeHTTP(w, r)
			case Unauthenticated:
				http.Redirect(w, r, config.LoginPath, http.StatusSeeOther)
			default:
				ctx := middleware.ContextWithUserID(r.Context(), st.User.ID)
				ctx = authstate.NewContext(ctx, store)
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

// RedirectAuthenticated はログイン済みの訪問者をtargetへリダイレクトするミドルウェアを返す。
// ログインページやサインアップページに使う。未確定・未ログインの場合はそのまま表示する。
func RedirectAuthenticated(resolver StoreResolver, config Config, target string) func(next http.Handler) http.Handler {
	config = config.withDefaults()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := sessionIDFromRequest(r)
			if sessionID == "" {
				next.ServeHTTP(w, r)
				return
			}

			store := resolver.Acquire(sessionID)
			if Decide(currentState(r.Context(), store, config)) == Authenticated {
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// currentState は初期化を待ち、必要なら再検証したうえでスナップショットを返す。
func currentState(ctx context.Context, store *authstate.Store, config Config) authstate.State {
	st := waitForState(ctx, store, config.WaitTimeout)
	if !st.Initialized {
		return st
	}

	ctx, cancel := context.WithTimeout(ctx, config.WaitTimeout)
	defer cancel()
	if err := store.Revalidate(ctx, config.RevalidateAfter); err != nil {
		slog.Warn("failed to revalidate auth state", slog.String("error", err.Error()))
	}
	return store.Snapshot()
}

// waitForState はストアの初期化完了をtimeoutまで待ち、最新のスナップショットを返す。
func waitForState(ctx context.Context, store *authstate.Store, timeout time.Duration) authstate.State {
	select {
	case <-store.Ready():
		return store.Snapshot()
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-store.Ready():
	case <-timer.C:
		slog.Debug("auth state still pending", slog.Duration("waited", timeout))
	case <-ctx.Done():
	}
	return store.Snapshot()
}

func sessionIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

const pendingPage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>YTReply</title></head>
<body><div class="spinner" role="status" aria-label="Loading"></div></body>
</html>
`

// writePending は認証状態の確定待ちを示すページを返す。
// ブラウザはRefreshヘッダーに従って再読み込みし、次のリクエストで再判定される。
func writePending(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Retry-After", "1")
	w.Header().Set("Refresh", "1")
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(pendingPage))
}
