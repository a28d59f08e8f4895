package auth

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/ytreply/internal/authstate"
	"github.com/hitoshi/ytreply/internal/model"
	"github.com/hitoshi/ytreply/internal/sessionevent"
)

// SessionProvider は1つのブラウザセッションに対するauthstate.Providerの実装。
// 現在のセッションはServiceから、変更通知はセッションイベントのハブから取得する。
type SessionProvider struct {
	sessionID string
	service   *Service
}

// ProviderFor はsessionIDに対するプロバイダーを返す。authstate.Registryのファクトリーとして使う。
func (s *Service) ProviderFor(sessionID string) authstate.Provider {
	return &SessionProvider{sessionID: sessionID, service: s}
}

// CurrentSession は現在のセッションを返す。期限切れや未登録の場合はNoSession。
func (p *SessionProvider) CurrentSession(ctx context.Context) (authstate.Session, error) {
	if p.sessionID == "" {
		return authstate.NoSession{}, nil
	}
	session, user, err := p.service.ResolveSession(ctx, p.sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || user == nil {
		return authstate.NoSession{}, nil
	}
	return activeSession(session.ID, user.ID, user.Email, session.ExpiresAt, user), nil
}

// OnSessionChange はハブのイベントをセッション状態に変換して配信する。
func (p *SessionProvider) OnSessionChange(ctx context.Context) (<-chan authstate.Session, func(), error) {
	out := make(chan authstate.Session, 1)
	if p.sessionID == "" || p.service.hub == nil {
		// 変更が起こり得ないため、閉じないチャネルを返す
		return out, func() {}, nil
	}

	events, unsubscribe, err := p.service.hub.Subscribe(ctx, p.sessionID)
	if err != nil {
		return nil, nil, err
	}

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			unsubscribe()
		})
	}

	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				select {
				case out <- sessionFromEvent(e):
				case <-done:
					return
				}
			}
		}
	}()

	return out, cancel, nil
}

// EndSession はセッションを破棄する。
func (p *SessionProvider) EndSession(ctx context.Context) error {
	if p.sessionID == "" {
		return nil
	}
	return p.service.Logout(ctx, p.sessionID)
}

func sessionFromEvent(e sessionevent.Event) authstate.Session {
	if !e.Kind.Active() {
		return authstate.NoSession{}
	}
	return activeSession(e.SessionID, e.UserID, e.Email, e.ExpiresAt, nil)
}

func activeSession(sessionID, userID, email string, expiresAt time.Time, user *model.User) authstate.ActiveSession {
	identity := authstate.Identity{ID: userID, Email: email}
	if user != nil && user.Name != "" {
		identity.Claims = map[string]string{"name": user.Name}
	}
	return authstate.ActiveSession{ID: sessionID, Identity: identity, ExpiresAt: expiresAt}
}

var _ authstate.Provider = (*SessionProvider)(nil)
