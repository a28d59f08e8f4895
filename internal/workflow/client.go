// Package workflow は外部の文字起こしワークフローへの通知を提供する。
//
// 通知は動画登録のリクエストから切り離して送信し、失敗しても登録自体は取り消さない。
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const transcribePath = "/transcribe-video"

// Recorder は依頼結果を記録する。
type Recorder interface {
	RecordTranscription(err error, duration time.Duration)
}

// Config はワークフロークライアントの設定。
type Config struct {
	BaseURL        string        // 空の場合は通知を送らない
	Timeout        time.Duration // 1回の通知全体（リトライ込み）の上限
	AttemptTimeout time.Duration // 1回の送信の上限。0の場合はTimeout/MaxTries
	MaxTries       int
	Recorder       Recorder // 任意
}

// Client は文字起こしワークフローのWebhookクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	config     Config
	newBackOff func() backoff.BackOff

	wg sync.WaitGroup
}

// NewClient はClientを生成する。
func NewClient(httpClient *http.Client, config Config, logger *slog.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxTries <= 0 {
		config.MaxTries = 3
	}
	if config.AttemptTimeout <= 0 || config.AttemptTimeout > config.Timeout {
		config.AttemptTimeout = config.Timeout / time.Duration(config.MaxTries)
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		config:     config,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}
}

// Enabled はWebhookの送信先が設定されているかを返す。
func (c *Client) Enabled() bool {
	return c.config.BaseURL != ""
}

type transcribeRequest struct {
	VideoID string `json:"videoId"`
	UserID  string `json:"userId"`
}

// TranscribeVideo は文字起こしを依頼する。5xxと通信エラーは指数バックオフでMaxTries回まで再試行する。
// 各送信はAttemptTimeoutで打ち切り、応答しない送信先でも残りの試行を行う。
func (c *Client) TranscribeVideo(ctx context.Context, youtubeVideoID, userID string) error {
	if !c.Enabled() {
		return nil
	}

	body, err := json.Marshal(transcribeRequest{VideoID: youtubeVideoID, UserID: userID})
	if err != nil {
		return fmt.Errorf("failed to marshal transcription request: %w", err)
	}
	endpoint := c.config.BaseURL + transcribePath

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, c.config.AttemptTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn("transcription webhook request failed",
				slog.String("video_id", youtubeVideoID),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			return struct{}{}, err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

		switch {
		case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
			c.logger.Warn("transcription webhook returned retryable status",
				slog.String("video_id", youtubeVideoID),
				slog.Int("attempt", attempt),
				slog.Int("http_status", resp.StatusCode),
			)
			return struct{}{}, fmt.Errorf("transcription webhook returned status %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return struct{}{}, backoff.Permanent(fmt.Errorf("transcription webhook rejected request: status %d", resp.StatusCode))
		}
		return struct{}{}, nil
	}

	_, err = backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(c.config.MaxTries)),
	)
	if err != nil {
		return fmt.Errorf("failed to request transcription: %w", err)
	}

	c.logger.Info("transcription requested",
		slog.String("video_id", youtubeVideoID),
		slog.String("user_id", userID),
		slog.Int("attempts", attempt),
	)
	return nil
}

// RequestTranscription は文字起こし依頼をバックグラウンドで送信する。
// 呼び出し元のリクエストのキャンセルには影響されず、Timeoutで打ち切られる。
func (c *Client) RequestTranscription(ctx context.Context, youtubeVideoID, userID string) {
	if !c.Enabled() {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.Timeout)
		defer cancel()

		start := time.Now()
		err := c.TranscribeVideo(sendCtx, youtubeVideoID, userID)
		if c.config.Recorder != nil {
			c.config.Recorder.RecordTranscription(err, time.Since(start))
		}
		if err != nil {
			c.logger.Error("transcription request abandoned",
				slog.String("video_id", youtubeVideoID),
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Wait は送信中の依頼が全て終わるまで待つ。シャットダウン時に使う。
func (c *Client) Wait() {
	c.wg.Wait()
}
