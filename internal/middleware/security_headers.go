package middleware

import "net/http"

// contentSecurityPolicy はサーバーレンダリングするページ向けのCSP。
// 外部スクリプトは読み込まず、YouTubeのサムネイル画像のみ外部から許可する。
const contentSecurityPolicy = "default-src 'self'; img-src 'self' https://i.ytimg.com https://yt3.ggpht.com; " +
	"style-src 'self' 'unsafe-inline'; frame-ancestors 'none'; form-action 'self' https://accounts.google.com"

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			h.Set("Content-Security-Policy", contentSecurityPolicy)
			next.ServeHTTP(w, r)
		})
	}
}
