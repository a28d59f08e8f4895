package authstate

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ProviderFactory はセッションIDに対応するProviderを生成する。
// セッションIDが空の場合は常にNoSessionを返すProviderを生成すること。
type ProviderFactory func(sessionID string) Provider

// RegistryConfig はRegistryの設定。
type RegistryConfig struct {
	IdleTTL         time.Duration // 最終アクセスからこの時間を過ぎたStoreを破棄する
	InitTimeout     time.Duration // バックグラウンド初期化のタイムアウト
	CleanupInterval time.Duration // アイドルStoreの掃除間隔
}

// DefaultRegistryConfig はデフォルト設定を返す。
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		IdleTTL:         15 * time.Minute,
		InitTimeout:     5 * time.Second,
		CleanupInterval: time.Minute,
	}
}

type registryEntry struct {
	store      *Store
	lastAccess time.Time
}

// Registry はセッションIDごとのStoreを管理する。
//
// 未登録のセッションIDには使い捨てのStoreを返してバックグラウンドで初期化し、
// 有効なセッションが確認できた場合だけ登録する。存在しないセッションIDでは
// エントリーも購読も残らない。
type Registry struct {
	factory ProviderFactory
	config  RegistryConfig
	logger  *slog.Logger
	opts    []Option

	mu      sync.Mutex
	entries map[string]*registryEntry
	// pending は初期化中のStore。同じセッションIDの並行リクエストで共有する。
	pending map[string]*Store
	stopped bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRegistry はRegistryを生成し、アイドルStoreの掃除を開始する。
func NewRegistry(factory ProviderFactory, config RegistryConfig, logger *slog.Logger, opts ...Option) *Registry {
	defaults := DefaultRegistryConfig()
	if config.IdleTTL <= 0 {
		config.IdleTTL = defaults.IdleTTL
	}
	if config.InitTimeout <= 0 {
		config.InitTimeout = defaults.InitTimeout
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		factory: factory,
		config:  config,
		logger:  logger,
		opts:    append([]Option{WithLogger(logger)}, opts...),
		entries: make(map[string]*registryEntry),
		pending: make(map[string]*Store),
		stopCh:  make(chan struct{}),
	}

	go r.cleanupLoop()

	return r
}

// Acquire はセッションIDに対応するStoreを返す。
//
// 登録済みで認証済みのStoreがあればそれを返す。登録済みでもユーザーを失ったStoreは破棄し、
// 未登録の場合と同じく使い捨てのStoreを生成して初期化を開始する。
func (r *Registry) Acquire(sessionID string) *Store {
	if sessionID == "" {
		s := New(r.factory(""), r.opts...)
		go func() {
			r.initialize(s)
			s.Close()
		}()
		return s
	}

	now := time.Now()

	r.mu.Lock()
	if e, ok := r.entries[sessionID]; ok {
		if st := e.store.Snapshot(); st.Initialized && !st.Loading && st.User == nil {
			delete(r.entries, sessionID)
			r.mu.Unlock()
			e.store.Close()
			r.mu.Lock()
		} else {
			e.lastAccess = now
			r.mu.Unlock()
			return e.store
		}
	}
	if s, ok := r.pending[sessionID]; ok {
		r.mu.Unlock()
		return s
	}
	if r.stopped {
		r.mu.Unlock()
		s := New(r.factory(sessionID), r.opts...)
		s.Close()
		return s
	}
	s := New(r.factory(sessionID), r.opts...)
	r.pending[sessionID] = s
	r.mu.Unlock()

	go r.confirm(sessionID, s)

	return s
}

// Lookup は登録済みのStoreを返す。Storeの生成も初期化もしない。
func (r *Registry) Lookup(sessionID string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return nil, false
	}
	return e.store, true
}

// confirm はStoreを初期化し、ユーザーが確認できた場合だけ登録する。
func (r *Registry) confirm(sessionID string, s *Store) {
	r.initialize(s)

	r.mu.Lock()
	if r.pending[sessionID] == s {
		delete(r.pending, sessionID)
	}
	_, exists := r.entries[sessionID]
	// 初期化中の通知や再検証を反映した最新の状態で判断する
	register := s.Snapshot().User != nil && !r.stopped && !exists
	if register {
		r.entries[sessionID] = &registryEntry{store: s, lastAccess: time.Now()}
	}
	r.mu.Unlock()

	if !register {
		s.Close()
	}
}

// Forget はセッションIDのStoreを破棄する。サインアウト後に呼ぶ。
func (r *Registry) Forget(sessionID string) {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	delete(r.entries, sessionID)
	r.mu.Unlock()

	if ok {
		e.store.Close()
	}
}

// Len は管理中のStore数を返す。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Stop は掃除を停止し、全てのStoreを破棄する。
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)

		r.mu.Lock()
		r.stopped = true
		entries := r.entries
		r.entries = make(map[string]*registryEntry)
		r.mu.Unlock()

		for _, e := range entries {
			e.store.Close()
		}
	})
}

func (r *Registry) initialize(s *Store) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.InitTimeout)
	defer cancel()
	s.Initialize(ctx)
}

func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle(time.Now())
		case <-r.stopCh:
			return
		}
	}
}

// evictIdle はIdleTTLを超えてアクセスのないStoreを破棄する。
func (r *Registry) evictIdle(now time.Time) int {
	var evicted []*Store

	r.mu.Lock()
	for id, e := range r.entries {
		if now.Sub(e.lastAccess) > r.config.IdleTTL {
			evicted = append(evicted, e.store)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, s := range evicted {
		s.Close()
	}
	if len(evicted) > 0 {
		r.logger.Debug("evicted idle auth state stores",
			slog.Int("count", len(evicted)),
		)
	}
	return len(evicted)
}
