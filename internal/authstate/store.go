package authstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrNotInitialized は初期化前にRefreshが呼ばれた場合のエラー。
var ErrNotInitialized = errors.New("auth state store is not initialized")

// State はStoreの公開状態のスナップショット。
type State struct {
	User        *Identity
	Loading     bool
	Initialized bool
}

// Authenticated はユーザーが存在するかどうかを返す。
func (s State) Authenticated() bool {
	return s.User != nil
}

// Observer はStoreの状態遷移を外部（メトリクス等）に通知するためのインターフェース。
type Observer interface {
	// ObserveInitialize は初回解決の結果を受け取る。resultは "session", "no_session", "error" のいずれか。
	ObserveInitialize(result string)
	// ObserveSessionChange は変更通知の適用を受け取る。
	ObserveSessionChange(authenticated bool)
	// ObserveSignOut はサインアウトの結果を受け取る。
	ObserveSignOut(err error)
}

// Option はStoreの生成オプション。
type Option func(*Store)

// WithLogger はStoreのロガーを指定する。
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver はStoreのオブザーバーを指定する。
func WithObserver(o Observer) Option {
	return func(s *Store) {
		s.observer = o
	}
}

// WithClock はStoreが使う現在時刻の取得関数を指定する。
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store は1つのブラウザセッションに対応する認証状態ストア。
// 明示的に生成し、不要になったらCloseで購読を解除する。
type Store struct {
	provider Provider
	logger   *slog.Logger
	observer Observer
	now      func() time.Time

	mu    sync.RWMutex
	state State
	// generation はユーザーの書き込みごとに増加する。
	// 初回取得中に通知が適用された場合、取得結果で上書きしないために使う。
	generation uint64
	refreshing int
	started    bool
	closed     bool
	cancelSub  func()

	// checkedAt はプロバイダーの値を最後に反映した時刻。
	// expiresAt は反映したセッションの有効期限（不明ならゼロ値）。
	checkedAt    time.Time
	expiresAt    time.Time
	fetchFailed  bool
	revalidating chan struct{}

	ready chan struct{}
	wg    sync.WaitGroup
}

// New はStoreを生成する。初期状態は {User: nil, Loading: true, Initialized: false}。
func New(provider Provider, opts ...Option) *Store {
	s := &Store{
		provider: provider,
		logger:   slog.Default(),
		now:      time.Now,
		state:    State{Loading: true},
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize は初回のセッション取得と変更通知の購読を行う。
//
// 最初の呼び出しだけが取得と購読を実行する。並行または後続の呼び出しは
// 初回の解決（またはctxの終了）を待ってスナップショットを返す。
// 取得に失敗した場合はログに記録し、未ログインとして初期化を完了する。
func (s *Store) Initialize(ctx context.Context) State {
	s.mu.Lock()
	if s.closed && !s.started {
		s.mu.Unlock()
		return s.Snapshot()
	}
	if s.started {
		s.mu.Unlock()
		select {
		case <-s.ready:
		case <-ctx.Done():
		}
		return s.Snapshot()
	}
	s.started = true
	gen := s.generation
	s.mu.Unlock()

	// 購読を先に登録し、取得中に届いた通知も取りこぼさない
	s.subscribe(ctx)

	session, err := s.provider.CurrentSession(ctx)

	result := "no_session"
	s.mu.Lock()
	switch {
	case err != nil:
		result = "error"
		s.logger.Error("failed to load session",
			slog.String("error", err.Error()),
		)
		if s.generation == gen {
			s.state.User = nil
		}
		s.fetchFailed = true
	case s.generation == gen:
		s.state.User = identityOf(session)
		s.markChecked(session)
	}
	if result != "error" && s.state.User != nil {
		result = "session"
	}
	s.state.Loading = s.refreshing > 0
	s.state.Initialized = true
	snapshot := s.state
	s.mu.Unlock()

	close(s.ready)

	if s.observer != nil {
		s.observer.ObserveInitialize(result)
	}
	return snapshot
}

// subscribe はプロバイダーの変更通知を購読し、受信ループを開始する。
// 購読はStoreの寿命に従い、Initializeに渡されたctxのキャンセルでは解除されない。
func (s *Store) subscribe(ctx context.Context) {
	subCtx, subCancel := context.WithCancel(context.WithoutCancel(ctx))

	updates, cancel, err := s.provider.OnSessionChange(subCtx)
	if err != nil {
		subCancel()
		s.logger.Warn("failed to subscribe to session changes",
			slog.String("error", err.Error()),
		)
		return
	}

	stop := func() {
		subCancel()
		if cancel != nil {
			cancel()
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		stop()
		return
	}
	s.cancelSub = stop
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-subCtx.Done():
				return
			case session, ok := <-updates:
				if !ok {
					return
				}
				s.applyChange(session)
			}
		}
	}()
}

// applyChange は変更通知を状態に反映する。Initializedには触れない。
func (s *Store) applyChange(session Session) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state.User = identityOf(session)
	s.state.Loading = s.refreshing > 0
	s.generation++
	s.markChecked(session)
	authenticated := s.state.User != nil
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.ObserveSessionChange(authenticated)
	}
}

// Refresh は初期化後にセッションを再取得する。取得中はLoadingがtrueになる。
// 取得に失敗した場合は現在のユーザーを維持してエラーを返す。
func (s *Store) Refresh(ctx context.Context) error {
	select {
	case <-s.ready:
	default:
		return ErrNotInitialized
	}

	s.mu.Lock()
	s.refreshing++
	s.state.Loading = true
	gen := s.generation
	s.mu.Unlock()

	session, err := s.provider.CurrentSession(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshing--
	s.state.Loading = s.refreshing > 0
	if err != nil {
		s.fetchFailed = true
		return fmt.Errorf("failed to refresh session: %w", err)
	}
	if s.generation == gen {
		s.state.User = identityOf(session)
		s.generation++
		s.markChecked(session)
	}
	s.fetchFailed = false
	return nil
}

// Revalidate は反映済みの状態が古い場合にRefreshで再取得する。
//
// 次のいずれかで古いとみなす: 前回の取得が失敗した、セッションの有効期限を過ぎた、
// 最後の反映からmaxAge以上経過した（maxAgeが0以下なら経過時間は見ない）。
// 再取得中の呼び出しは進行中の再取得の完了を待つ。
// 期限切れのセッションは再取得に失敗した場合もユーザーをクリアする。
func (s *Store) Revalidate(ctx context.Context, maxAge time.Duration) error {
	s.mu.Lock()
	if !s.staleLocked(s.now(), maxAge) {
		s.mu.Unlock()
		return nil
	}
	if ch := s.revalidating; ch != nil {
		s.mu.Unlock()
		select {
		case <-ch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	ch := make(chan struct{})
	s.revalidating = ch
	s.mu.Unlock()

	err := s.Refresh(ctx)

	s.mu.Lock()
	s.revalidating = nil
	if err != nil && s.expiredLocked(s.now()) {
		s.state.User = nil
		s.generation++
		s.logger.Warn("session expired and could not be revalidated",
			slog.String("error", err.Error()),
		)
	}
	s.mu.Unlock()
	close(ch)

	return err
}

// markChecked はプロバイダーの値を反映したことを記録する。s.muを保持して呼ぶ。
func (s *Store) markChecked(session Session) {
	s.checkedAt = s.now()
	s.expiresAt = expiryOf(session)
	s.fetchFailed = false
}

func (s *Store) expiredLocked(now time.Time) bool {
	return s.state.User != nil && !s.expiresAt.IsZero() && !now.Before(s.expiresAt)
}

func (s *Store) staleLocked(now time.Time, maxAge time.Duration) bool {
	if !s.state.Initialized {
		return false
	}
	if s.fetchFailed || s.expiredLocked(now) {
		return true
	}
	return maxAge > 0 && now.Sub(s.checkedAt) >= maxAge
}

// SignOut はプロバイダーのセッションを終了し、ユーザーをクリアする。
// プロバイダーの終了処理が失敗してもローカルのユーザーはクリアし、エラーを返す。
func (s *Store) SignOut(ctx context.Context) error {
	err := s.provider.EndSession(ctx)
	if err != nil {
		s.logger.Error("failed to end session",
			slog.String("error", err.Error()),
		)
	}

	s.mu.Lock()
	s.state.User = nil
	s.generation++
	s.markChecked(NoSession{})
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.ObserveSignOut(err)
	}
	if err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

// SetUser はユーザーを直接設定する。Loadingはfalseになる。
// OAuthコールバックのように新しいユーザー情報を既に持っている呼び出し元が使う。
func (s *Store) SetUser(user *Identity) {
	var u *Identity
	if user != nil {
		copied := *user
		u = &copied
	}

	s.mu.Lock()
	s.state.User = u
	s.state.Loading = false
	s.generation++
	s.checkedAt = s.now()
	s.expiresAt = time.Time{}
	s.fetchFailed = false
	s.mu.Unlock()
}

// Snapshot は現在の状態を返す。
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Ready はInitializedがtrueになった時点でcloseされるチャネルを返す。
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Close は変更通知の購読を解除し、受信ループの終了を待つ。
// 複数回呼んでも安全。Close後も最後の状態は参照できる。
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stop := s.cancelSub
	s.cancelSub = nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.wg.Wait()
	return nil
}
