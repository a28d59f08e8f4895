// Package authstate はブラウザセッションごとの認証状態ストアを提供する。
//
// Storeは「現在のユーザー」「読み込み中」「初期化済み」の3つの値を保持し、
// セッションプロバイダーからの初回取得と変更通知によって更新される。
// 初期化済みフラグは一度trueになると二度とfalseに戻らない。
package authstate

import (
	"context"
	"time"
)

// Identity は認証済みユーザーの識別情報。
// Storeから返されるIdentityは読み取り専用として扱う。
type Identity struct {
	ID     string
	Email  string
	Claims map[string]string
}

// Session はセッションプロバイダーが返すセッション状態。
// NoSession または ActiveSession のいずれか。
type Session interface {
	isSession()
}

// NoSession は有効なセッションが存在しないことを表す。
type NoSession struct{}

func (NoSession) isSession() {}

// ActiveSession は有効なセッションを表す。
type ActiveSession struct {
	ID        string
	Identity  Identity
	ExpiresAt time.Time
}

func (ActiveSession) isSession() {}

// Provider はStoreが利用するセッションプロバイダーの契約。
type Provider interface {
	// CurrentSession は現在のセッションを返す。セッションがない場合はNoSession。
	CurrentSession(ctx context.Context) (Session, error)
	// OnSessionChange はセッション変更の通知チャネルを返す。
	// cancelを呼ぶと購読が解除され、以降チャネルへは送信されない。
	OnSessionChange(ctx context.Context) (updates <-chan Session, cancel func(), err error)
	// EndSession はセッションを終了する。
	EndSession(ctx context.Context) error
}

// identityOf はセッションに含まれるユーザーを返す。セッションがなければnil。
func identityOf(s Session) *Identity {
	switch v := s.(type) {
	case ActiveSession:
		id := v.Identity
		return &id
	case *ActiveSession:
		if v == nil {
			return nil
		}
		id := v.Identity
		return &id
	default:
		return nil
	}
}

// expiryOf はセッションの有効期限を返す。不明な場合はゼロ値。
func expiryOf(s Session) time.Time {
	switch v := s.(type) {
	case ActiveSession:
		return v.ExpiresAt
	case *ActiveSession:
		if v != nil {
			return v.ExpiresAt
		}
	}
	return time.Time{}
}
