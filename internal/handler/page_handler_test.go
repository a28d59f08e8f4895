package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/ytreply/internal/authstate"
	"github.com/hitoshi/ytreply/internal/dashboard"
	"github.com/hitoshi/ytreply/internal/model"
	"github.com/hitoshi/ytreply/internal/plan"
	"github.com/hitoshi/ytreply/internal/view"
)

func newTestPageHandler(t *testing.T, services PageServices) (*PageHandler, *stubRenderer, *fakeRegistry) {
	t.Helper()
	if services.Plans == nil {
		services.Plans = plan.Default()
	}
	if services.Dashboard == nil {
		services.Dashboard = &mockDashboardService{}
	}
	if services.Videos == nil {
		services.Videos = &mockVideoService{}
	}
	if services.Channels == nil {
		services.Channels = &mockChannelService{}
	}
	if services.Users == nil {
		services.Users = &mockUserService{}
	}
	renderer := &stubRenderer{}
	reg := newFakeRegistry(t)
	return NewPageHandler(renderer, reg, services), renderer, reg
}

// guarded はガード通過後と同じコンテキストを持つリクエストを返す。
func guarded(r *http.Request, reg *fakeRegistry, sessionID, userID string) *http.Request {
	reg.signIn(sessionID, userID)
	store := reg.Acquire(sessionID)
	r = withUserID(r, userID)
	return r.WithContext(authstate.NewContext(r.Context(), store))
}

func TestPageHandler_PublicPages(t *testing.T) {
	h, renderer, _ := newTestPageHandler(t, PageServices{})

	tests := []struct {
		name    string
		handler http.HandlerFunc
		page    string
	}{
		{"home", h.Home, "home"},
		{"pricing", h.Pricing, "pricing"},
		{"forgot password", h.ForgotPassword, "forgot_password"},
		{"login", h.Login, "login"},
		{"signup", h.Signup, "signup"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler(w, httptest.NewRequest(http.MethodGet, "/", nil))

			got := renderer.last(t)
			if got.name != tt.page {
				t.Errorf("page = %q, want %q", got.name, tt.page)
			}
			if got.data.User != nil {
				t.Error("visitor without cookie should be anonymous")
			}
		})
	}
}

func TestPageHandler_Pricing_PassesPlans(t *testing.T) {
	h, renderer, _ := newTestPageHandler(t, PageServices{})

	h.Pricing(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/pricing", nil))

	plans, ok := renderer.last(t).data.Data.([]plan.Plan)
	if !ok || len(plans) == 0 {
		t.Errorf("data = %#v, want plan list", renderer.last(t).data.Data)
	}
}

func TestPageHandler_Login_ShowsKnownNoticeOnly(t *testing.T) {
	h, renderer, _ := newTestPageHandler(t, PageServices{})

	h.Login(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/login?notice=signout_failed", nil))
	if renderer.last(t).data.Notice == "" {
		t.Error("signout_failed notice should be shown")
	}

	h.Login(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/login?notice=<script>", nil))
	if renderer.last(t).data.Notice != "" {
		t.Errorf("unknown notice should be ignored, got %q", renderer.last(t).data.Notice)
	}
}

func TestPageHandler_PublicPage_ShowsSignedInVisitor(t *testing.T) {
	h, renderer, reg := newTestPageHandler(t, PageServices{})
	reg.signIn("sess-1", "user-1")
	reg.Acquire("sess-1")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
	h.Home(httptest.NewRecorder(), req)

	user := renderer.last(t).data.User
	if user == nil || user.ID != "user-1" {
		t.Errorf("visitor = %+v, want user-1", user)
	}
}

func TestPageHandler_Dashboard(t *testing.T) {
	stats := &dashboard.Stats{Month: "2026-10", TotalVideos: 2}
	h, renderer, reg := newTestPageHandler(t, PageServices{
		Dashboard: &mockDashboardService{
			statsFn: func(ctx context.Context, userID string) (*dashboard.Stats, error) {
				if userID != "user-1" {
					t.Errorf("userID = %q, want %q", userID, "user-1")
				}
				return stats, nil
			},
		},
	})

	req := guarded(httptest.NewRequest(http.MethodGet, "/dashboard", nil), reg, "sess-1", "user-1")
	w := httptest.NewRecorder()
	h.Dashboard(w, req)

	got := renderer.last(t)
	if got.name != "dashboard" || got.status != http.StatusOK {
		t.Errorf("rendered %q with %d", got.name, got.status)
	}
	if got.data.Data != stats {
		t.Errorf("data = %#v, want stats", got.data.Data)
	}
	if got.data.User == nil || got.data.User.ID != "user-1" {
		t.Errorf("user = %+v, want user-1", got.data.User)
	}
}

func TestPageHandler_Videos(t *testing.T) {
	videos := []*model.Video{{ID: "v1", YouTubeVideoID: "dQw4w9WgXcQ"}}
	h, renderer, reg := newTestPageHandler(t, PageServices{
		Videos: &mockVideoService{
			listFn: func(ctx context.Context, userID string) ([]*model.Video, error) { return videos, nil },
		},
	})

	h.Videos(httptest.NewRecorder(), guarded(httptest.NewRequest(http.MethodGet, "/videos", nil), reg, "s", "user-1"))

	got, ok := renderer.last(t).data.Data.([]*model.Video)
	if !ok || len(got) != 1 {
		t.Errorf("data = %#v, want video list", renderer.last(t).data.Data)
	}
}

func TestPageHandler_Settings(t *testing.T) {
	h, renderer, reg := newTestPageHandler(t, PageServices{
		Users: &mockUserService{
			profileFn: func(ctx context.Context, userID string) (*model.Profile, error) {
				return &model.Profile{ID: userID, Email: "u1@example.com", PlanType: model.PlanBusiness}, nil
			},
		},
	})

	h.Settings(httptest.NewRecorder(), guarded(httptest.NewRequest(http.MethodGet, "/settings", nil), reg, "s", "user-1"))

	data, ok := renderer.last(t).data.Data.(view.SettingsData)
	if !ok {
		t.Fatalf("data = %#v, want SettingsData", renderer.last(t).data.Data)
	}
	if data.Plan.Type != model.PlanBusiness {
		t.Errorf("plan = %q, want %q", data.Plan.Type, model.PlanBusiness)
	}
}

func TestPageHandler_PrivatePage_LoadError(t *testing.T) {
	h, renderer, reg := newTestPageHandler(t, PageServices{
		Channels: &mockChannelService{
			listFn: func(ctx context.Context, userID string) ([]*model.Channel, error) {
				return nil, errors.New("db")
			},
		},
	})

	w := httptest.NewRecorder()
	h.Channels(w, guarded(httptest.NewRequest(http.MethodGet, "/channels", nil), reg, "s", "user-1"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if len(renderer.pages) != 0 {
		t.Error("page should not be rendered on error")
	}
}

func TestPageHandler_PrivatePage_WithoutGuardRedirects(t *testing.T) {
	h, _, _ := newTestPageHandler(t, PageServices{})

	w := httptest.NewRecorder()
	h.Dashboard(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
}

func TestPageHandler_PublicPage_UnknownCookieCreatesNoStore(t *testing.T) {
	h, renderer, reg := newTestPageHandler(t, PageServices{})

	for _, id := range []string{"forged-1", "forged-2", "forged-3"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "session_id", Value: id})
		h.Home(httptest.NewRecorder(), req)

		if renderer.last(t).data.User != nil {
			t.Errorf("visitor with cookie %q should be anonymous", id)
		}
	}
	if n := reg.count(); n != 0 {
		t.Errorf("stores = %d, want 0", n)
	}
}

func TestPageHandler_PrivatePage_WithoutGuardUsesConfiguredLoginPath(t *testing.T) {
	h, _, _ := newTestPageHandler(t, PageServices{LoginPath: "/signin"})

	w := httptest.NewRecorder()
	h.Videos(w, httptest.NewRequest(http.MethodGet, "/videos", nil))

	if got := w.Header().Get("Location"); got != "/signin" {
		t.Errorf("Location = %q, want %q", got, "/signin")
	}
}
