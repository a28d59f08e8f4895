// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
//
// ユーザーが所有するデータへのクエリは、必ず所有者のuser_idで絞り込む。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/ytreply/internal/model"
)

// ErrNotFound は更新・削除対象の行が所有者の範囲に存在しないことを示す。
var ErrNotFound = errors.New("record not found")

// ErrDuplicate は一意制約に違反したことを示す。
var ErrDuplicate = errors.New("record already exists")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザー、identity、プロフィールを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity, profile *model.Profile) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 所有する全データはCASCADE削除される。存在しない場合はErrNotFound。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// ExtendExpiry は有効なセッションの期限を延長する。
	ExtendExpiry(ctx context.Context, id string, expiresAt time.Time) error
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除し、削除したセッションIDを返す。
	DeleteByUserID(ctx context.Context, userID string) ([]string, error)
	// DeleteExpired はnow時点で期限切れのセッションを削除し、削除したセッションを返す。
	DeleteExpired(ctx context.Context, now time.Time) ([]*model.Session, error)
}

// ProfileRepository はプロフィールの永続化インターフェース。
type ProfileRepository interface {
	// FindByUserID は見つからない場合nilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)
	// UpdateFullName は表示名を更新し、更新後のプロフィールを返す。存在しない場合はErrNotFound。
	UpdateFullName(ctx context.Context, userID, fullName string) (*model.Profile, error)
}

// ChannelRepository は連携チャンネルの永続化インターフェース。
type ChannelRepository interface {
	// ListByUserID は作成日時の新しい順に返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Channel, error)
	SetAutoReply(ctx context.Context, userID, id string, enabled bool) error
	Delete(ctx context.Context, userID, id string) error
}

// VideoRepository は登録動画の永続化インターフェース。
type VideoRepository interface {
	// ListByUserID は作成日時の新しい順に返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Video, error)
	CountByUserID(ctx context.Context, userID string) (int, error)
	// FindByYouTubeID は見つからない場合nilを返す。
	FindByYouTubeID(ctx context.Context, userID, youtubeVideoID string) (*model.Video, error)
	// Create は同じユーザーが同じ動画を登録済みの場合ErrDuplicateを返す。
	Create(ctx context.Context, video *model.Video) error
	SetAutoReply(ctx context.Context, userID, id string, enabled bool) error
	Delete(ctx context.Context, userID, id string) error
}

// UsageRepository は返信実績の集計インターフェース。
type UsageRepository interface {
	// CountReplies はユーザーの累計返信数を返す。
	CountReplies(ctx context.Context, userID string) (int, error)
	// MonthlyAutoReplies は指定月（YYYY-MM）の自動返信数を返す。記録がなければ0。
	MonthlyAutoReplies(ctx context.Context, userID, month string) (int, error)
}

// SubscriptionEventRepository は課金イベント履歴の永続化インターフェース。
type SubscriptionEventRepository interface {
	Create(ctx context.Context, event *model.SubscriptionEvent) error
}
