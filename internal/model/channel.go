package model

import "time"

// Channel は連携済みのYouTubeチャンネルを表す。
type Channel struct {
	ID               string
	UserID           string
	ChannelID        string // YouTube側のチャンネルID
	Title            string
	Description      string
	ThumbnailURL     string
	SubscriberCount  int64
	VideoCount       int64
	AutoReplyEnabled bool
	CreatedAt        time.Time
}

// Video は自動返信の対象として登録された動画を表す。
type Video struct {
	ID               string
	UserID           string
	YouTubeVideoID   string
	Title            string
	Transcript       string // 文字起こし完了前は空
	AutoReplyEnabled bool
	CreatedAt        time.Time
}

// VideoStatus は動画の処理状態。
type VideoStatus string

const (
	VideoStatusProcessing  VideoStatus = "processing"
	VideoStatusTranscribed VideoStatus = "transcribed"
)

// Status は文字起こしの有無から処理状態を返す。
func (v *Video) Status() VideoStatus {
	if v.Transcript != "" {
		return VideoStatusTranscribed
	}
	return VideoStatusProcessing
}

// WatchURL はYouTubeの視聴ページURLを返す。
func (v *Video) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + v.YouTubeVideoID
}

// SubscriptionEvent は課金関連のイベント履歴を表す。
type SubscriptionEvent struct {
	ID        string
	UserID    string
	EventType string
	PlanType  PlanType
	Payload   []byte // JSON
	CreatedAt time.Time
}

// 課金イベント種別
const (
	SubscriptionEventCheckoutStarted = "checkout_started"
)
