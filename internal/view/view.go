// Package view はサーバーサイドで描画するページを提供する。
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ytreply/internal/authstate"
	"github.com/hitoshi/ytreply/internal/model"
	"github.com/hitoshi/ytreply/internal/plan"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Pages は描画可能なページ名の一覧。
var Pages = []string{
	"home", "pricing", "forgot_password", "login", "signup",
	"dashboard", "videos", "channels", "settings",
}

// PageData はレイアウトと各ページに渡す値。
type PageData struct {
	Title  string
	User   *authstate.Identity // 未ログインのページではnil
	Notice string
	Data   any
}

// SettingsData は設定ページに渡す値。
type SettingsData struct {
	Profile *model.Profile
	Plan    plan.Plan
}

// Renderer はページテンプレートを保持する。生成後は読み取り専用。
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

var funcs = template.FuncMap{
	"percentWidth": func(p int) template.CSS {
		return template.CSS(fmt.Sprintf("width: %d%%", p))
	},
}

// New は埋め込みテンプレートを解析してRendererを生成する。
func New(logger *slog.Logger) (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template, len(Pages)), logger: logger}
	for _, name := range Pages {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render はページを描画する。テンプレートの実行に失敗した場合は500を返す。
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data PageData) {
	t, ok := r.pages[name]
	if !ok {
		r.logger.Error("unknown page", slog.String("page", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// 途中まで書き込んだ状態で失敗しないよう、バッファに描画してから送る
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.Error("failed to render page",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// StaticHandler は /static/ 配下の静的ファイルを配信するハンドラーを返す。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
