package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, video, channel, billing, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidVideoURL           = "INVALID_VIDEO_URL"
	ErrCodeVideoLimit                = "VIDEO_LIMIT"
	ErrCodeDuplicateVideo            = "DUPLICATE_VIDEO"
	ErrCodeVideoNotFound             = "VIDEO_NOT_FOUND"
	ErrCodeChannelNotFound           = "CHANNEL_NOT_FOUND"
	ErrCodeChannelConnectUnavailable = "CHANNEL_CONNECT_UNAVAILABLE"
	ErrCodeProfileNotFound           = "PROFILE_NOT_FOUND"
	ErrCodeInvalidPrice              = "INVALID_PRICE"
	ErrCodeCheckoutUnavailable       = "CHECKOUT_UNAVAILABLE"
	ErrCodeCheckoutFailed            = "CHECKOUT_FAILED"
	ErrCodeUserNotFound              = "USER_NOT_FOUND"
	ErrCodeValidation                = "VALIDATION_FAILED"
)

// NewInvalidVideoURLError はYouTube動画URLとして解釈できない場合のエラーを生成する。
func NewInvalidVideoURLError(rawURL string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidVideoURL,
		Message:  fmt.Sprintf("YouTube動画のURLとして認識できません: %s", rawURL),
		Category: "validation",
		Action:   "https://www.youtube.com/watch?v=... または https://youtu.be/... 形式のURLを入力してください。",
	}
}

// NewVideoLimitError はプランの動画登録上限に達した場合のエラーを生成する。
func NewVideoLimitError(limit int) *APIError {
	return &APIError{
		Code:     ErrCodeVideoLimit,
		Message:  fmt.Sprintf("登録できる動画数の上限（%d件）に達しています。", limit),
		Category: "video",
		Action:   "不要な動画を削除するか、プランをアップグレードしてください。",
	}
}

// NewDuplicateVideoError は同じ動画が登録済みの場合のエラーを生成する。
func NewDuplicateVideoError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateVideo,
		Message:  "この動画は既に登録されています。",
		Category: "video",
		Action:   "動画一覧から該当の動画を確認してください。",
	}
}

// NewVideoNotFoundError は動画が見つからない場合のエラーを生成する。
func NewVideoNotFoundError(videoID string) *APIError {
	return &APIError{
		Code:     ErrCodeVideoNotFound,
		Message:  fmt.Sprintf("指定された動画が見つかりません: %s", videoID),
		Category: "video",
		Action:   "動画IDを確認してください。",
	}
}

// NewChannelNotFoundError はチャンネルが見つからない場合のエラーを生成する。
func NewChannelNotFoundError(channelID string) *APIError {
	return &APIError{
		Code:     ErrCodeChannelNotFound,
		Message:  fmt.Sprintf("指定されたチャンネルが見つかりません: %s", channelID),
		Category: "channel",
		Action:   "チャンネルIDを確認してください。",
	}
}

// NewChannelConnectUnavailableError はチャンネル連携が未提供であることを示すエラーを生成する。
func NewChannelConnectUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeChannelConnectUnavailable,
		Message:  "YouTubeチャンネルの連携は現在準備中です。",
		Category: "channel",
		Action:   "動画URLを個別に登録してご利用ください。",
	}
}

// NewProfileNotFoundError はプロフィールが見つからない場合のエラーを生成する。
func NewProfileNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  "プロフィールが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidPriceError は存在しない価格IDが指定された場合のエラーを生成する。
func NewInvalidPriceError(priceID string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPrice,
		Message:  fmt.Sprintf("無効な価格IDです: %s", priceID),
		Category: "billing",
		Action:   "料金ページからプランを選択し直してください。",
	}
}

// NewCheckoutUnavailableError は決済機能が無効な場合のエラーを生成する。
func NewCheckoutUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeCheckoutUnavailable,
		Message:  "現在お支払い手続きを受け付けていません。",
		Category: "billing",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewCheckoutFailedError は決済セッションの作成に失敗した場合のエラーを生成する。
func NewCheckoutFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeCheckoutFailed,
		Message:  "お支払い手続きの開始に失敗しました。",
		Category: "billing",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewValidationError はリクエスト値の検証エラーを生成する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力値が不正です: %s (%s)", field, reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}
