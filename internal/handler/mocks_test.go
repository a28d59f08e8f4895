package handler

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ytreply/internal/authstate"
	"github.com/hitoshi/ytreply/internal/dashboard"
	"github.com/hitoshi/ytreply/internal/middleware"
	"github.com/hitoshi/ytreply/internal/model"
	"github.com/hitoshi/ytreply/internal/plan"
	"github.com/hitoshi/ytreply/internal/view"
)

// --- サービスのモック ---

type mockAuthService struct {
	getLoginURLFn    func(state string) string
	handleCallbackFn func(ctx context.Context, code string) (*model.Session, *model.User, error)
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.Session, *model.User, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, nil, nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, nil
}

type mockVideoService struct {
	listFn         func(ctx context.Context, userID string) ([]*model.Video, error)
	registerFn     func(ctx context.Context, userID, rawURL, title string) (*model.Video, error)
	setAutoReplyFn func(ctx context.Context, userID, videoID string, enabled bool) error
	deleteFn       func(ctx context.Context, userID, videoID string) error
}

func (m *mockVideoService) List(ctx context.Context, userID string) ([]*model.Video, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockVideoService) Register(ctx context.Context, userID, rawURL, title string) (*model.Video, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, userID, rawURL, title)
	}
	return nil, nil
}

func (m *mockVideoService) SetAutoReply(ctx context.Context, userID, videoID string, enabled bool) error {
	if m.setAutoReplyFn != nil {
		return m.setAutoReplyFn(ctx, userID, videoID, enabled)
	}
	return nil
}

func (m *mockVideoService) Delete(ctx context.Context, userID, videoID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, videoID)
	}
	return nil
}

type mockChannelService struct {
	listFn         func(ctx context.Context, userID string) ([]*model.Channel, error)
	connectFn      func(ctx context.Context, userID string) error
	setAutoReplyFn func(ctx context.Context, userID, channelID string, enabled bool) error
	deleteFn       func(ctx context.Context, userID, channelID string) error
}

func (m *mockChannelService) List(ctx context.Context, userID string) ([]*model.Channel, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockChannelService) Connect(ctx context.Context, userID string) error {
	if m.connectFn != nil {
		return m.connectFn(ctx, userID)
	}
	return nil
}

func (m *mockChannelService) SetAutoReply(ctx context.Context, userID, channelID string, enabled bool) error {
	if m.setAutoReplyFn != nil {
		return m.setAutoReplyFn(ctx, userID, channelID, enabled)
	}
	return nil
}

func (m *mockChannelService) Delete(ctx context.Context, userID, channelID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, channelID)
	}
	return nil
}

type mockUserService struct {
	profileFn        func(ctx context.Context, userID string) (*model.Profile, error)
	updateFullNameFn func(ctx context.Context, userID, fullName string) (*model.Profile, error)
	withdrawFn       func(ctx context.Context, userID string) error
}

func (m *mockUserService) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	if m.profileFn != nil {
		return m.profileFn(ctx, userID)
	}
	return &model.Profile{ID: userID, Email: userID + "@example.com", PlanType: model.PlanFree}, nil
}

func (m *mockUserService) UpdateFullName(ctx context.Context, userID, fullName string) (*model.Profile, error) {
	if m.updateFullNameFn != nil {
		return m.updateFullNameFn(ctx, userID, fullName)
	}
	return nil, nil
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

type mockBillingService struct {
	plansFn         func() []plan.Plan
	startCheckoutFn func(ctx context.Context, userID, email, priceID string) (string, error)
}

func (m *mockBillingService) Plans() []plan.Plan {
	if m.plansFn != nil {
		return m.plansFn()
	}
	return plan.Default().All()
}

func (m *mockBillingService) StartCheckout(ctx context.Context, userID, email, priceID string) (string, error) {
	if m.startCheckoutFn != nil {
		return m.startCheckoutFn(ctx, userID, email, priceID)
	}
	return "", nil
}

type mockDashboardService struct {
	statsFn func(ctx context.Context, userID string) (*dashboard.Stats, error)
}

func (m *mockDashboardService) Stats(ctx context.Context, userID string) (*dashboard.Stats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, userID)
	}
	return &dashboard.Stats{Month: "2026-10"}, nil
}

type mockSessionResolver struct {
	resolveFn func(ctx context.Context, sessionID string) (*model.Session, *model.User, error)
}

func (m *mockSessionResolver) ResolveSession(ctx context.Context, sessionID string) (*model.Session, *model.User, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, sessionID)
	}
	return nil, nil, nil
}

// --- 認証状態ストア ---

type stubProvider struct {
	mu      sync.Mutex
	session authstate.Session
	endErr  error
	ended   int
}

func (p *stubProvider) CurrentSession(context.Context) (authstate.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return authstate.NoSession{}, nil
	}
	return p.session, nil
}

func (p *stubProvider) OnSessionChange(context.Context) (<-chan authstate.Session, func(), error) {
	return make(chan authstate.Session), func() {}, nil
}

func (p *stubProvider) EndSession(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ended++
	p.session = authstate.NoSession{}
	return p.endErr
}

// fakeRegistry はStoreRegistryのテスト実装。
// Acquireで生成したストアは同期的に初期化する。
type fakeRegistry struct {
	mu        sync.Mutex
	providers map[string]*stubProvider
	stores    map[string]*authstate.Store
	forgotten []string
}

func newFakeRegistry(t *testing.T) *fakeRegistry {
	t.Helper()
	r := &fakeRegistry{
		providers: make(map[string]*stubProvider),
		stores:    make(map[string]*authstate.Store),
	}
	t.Cleanup(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, s := range r.stores {
			s.Close()
		}
	})
	return r
}

// signIn はsessionIDに対してuserIDのセッションが有効な状態にする。
func (r *fakeRegistry) signIn(sessionID, userID string) *stubProvider {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &stubProvider{session: authstate.ActiveSession{
		ID:        sessionID,
		Identity:  authstate.Identity{ID: userID, Email: userID + "@example.com"},
		ExpiresAt: time.Now().Add(time.Hour),
	}}
	r.providers[sessionID] = p
	return p
}

func (r *fakeRegistry) Acquire(sessionID string) *authstate.Store {
	r.mu.Lock()
	if s, ok := r.stores[sessionID]; ok {
		r.mu.Unlock()
		return s
	}
	p, ok := r.providers[sessionID]
	if !ok {
		p = &stubProvider{}
		r.providers[sessionID] = p
	}
	s := authstate.New(p)
	r.stores[sessionID] = s
	r.mu.Unlock()

	s.Initialize(context.Background())
	return s
}

func (r *fakeRegistry) Lookup(sessionID string) (*authstate.Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[sessionID]
	return s, ok
}

func (r *fakeRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

func (r *fakeRegistry) Forget(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forgotten = append(r.forgotten, sessionID)
	if s, ok := r.stores[sessionID]; ok {
		s.Close()
		delete(r.stores, sessionID)
	}
}

// --- ページ描画 ---

type renderedPage struct {
	status int
	name   string
	data   view.PageData
}

type stubRenderer struct {
	pages []renderedPage
}

func (s *stubRenderer) Render(w http.ResponseWriter, status int, name string, data view.PageData) {
	s.pages = append(s.pages, renderedPage{status: status, name: name, data: data})
	w.WriteHeader(status)
}

func (s *stubRenderer) last(t *testing.T) renderedPage {
	t.Helper()
	if len(s.pages) == 0 {
		t.Fatal("no page rendered")
	}
	return s.pages[len(s.pages)-1]
}

// --- リクエストヘルパー ---

// withUserID はコンテキストに認証済みユーザーIDを注入したリクエストを返す。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withChiURLParam はchiのURLパラメータを設定したリクエストを返す。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
