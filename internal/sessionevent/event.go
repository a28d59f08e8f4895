// Package sessionevent はセッションの状態変化をサブスクライバーへ配信する。
//
// サインイン、延長、サインアウト、期限切れの各イベントはセッションIDごとに配信され、
// 認証状態ストアの変更通知として使われる。
package sessionevent

import (
	"context"
	"errors"
	"time"
)

// Kind はセッションイベントの種別。
type Kind string

const (
	KindSignedIn  Kind = "signed_in"
	KindRefreshed Kind = "refreshed"
	KindSignedOut Kind = "signed_out"
	KindExpired   Kind = "expired"
)

// Active はイベント後もセッションが有効かどうかを返す。
func (k Kind) Active() bool {
	return k == KindSignedIn || k == KindRefreshed
}

// Event はセッションの状態変化を表す。
type Event struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Kind      Kind      `json:"kind"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	At        time.Time `json:"at"`
}

// ErrClosed はクローズ済みのハブを使用したときに返る。
var ErrClosed = errors.New("session event hub is closed")

// Hub はセッションイベントの配信路。
type Hub interface {
	// Publish はイベントを配信する。購読者がいなければ何もしない。
	Publish(ctx context.Context, e Event) error
	// Subscribe はsessionIDのイベントを受け取るチャネルと購読解除関数を返す。
	// 購読解除またはハブのクローズでチャネルは閉じられる。
	Subscribe(ctx context.Context, sessionID string) (<-chan Event, func(), error)
	Close() error
}
