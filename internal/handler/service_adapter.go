package handler

import (
	"context"

	"github.com/hitoshi/ytreply/internal/middleware"
	"github.com/hitoshi/ytreply/internal/model"
)

// SessionResolver はセッションIDから有効なセッションとユーザーを解決する。
// auth.Serviceが実装する。
type SessionResolver interface {
	ResolveSession(ctx context.Context, sessionID string) (*model.Session, *model.User, error)
}

// SessionFinderAdapter はSessionResolverをmiddleware.SessionFinderに適合させるアダプタ。
// 期限切れ間近のセッションはResolveSession側でスライディング延長される。
type SessionFinderAdapter struct {
	resolver SessionResolver
}

// NewSessionFinderAdapter はSessionFinderAdapterを生成する。
func NewSessionFinderAdapter(resolver SessionResolver) *SessionFinderAdapter {
	return &SessionFinderAdapter{resolver: resolver}
}

// FindByID は有効なセッションを返す。存在しない・期限切れの場合はnil。
func (a *SessionFinderAdapter) FindByID(ctx context.Context, id string) (*model.Session, error) {
	session, _, err := a.resolver.ResolveSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return session, nil
}

var _ middleware.SessionFinder = (*SessionFinderAdapter)(nil)
