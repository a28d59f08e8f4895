package sessionevent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultChannelPrefix はRedisのチャネル名の接頭辞。チャネル名は接頭辞+セッションID。
const DefaultChannelPrefix = "ytreply:session:"

// DialRedis はREDIS_URL形式の接続文字列からクライアントを生成し、疎通を確認する。
func DialRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// RedisHub はRedis Pub/Subで複数プロセス間にイベントを配信するHub。
// 受信はパターン購読1本で行い、プロセス内のMemoryHubへ振り分ける。
type RedisHub struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
	local  *MemoryHub

	pubsub *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewRedisHub はパターン購読を確立し、受信ループを開始する。
// clientの所有権は呼び出し側に残る。
func NewRedisHub(ctx context.Context, client *redis.Client, prefix string, logger *slog.Logger) (*RedisHub, error) {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	pubsub := client.PSubscribe(loopCtx, prefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe session events: %w", err)
	}

	h := &RedisHub{
		client: client,
		prefix: prefix,
		logger: logger,
		local:  NewMemoryHub(defaultBufferSize),
		pubsub: pubsub,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go h.receiveLoop(loopCtx)

	logger.Info("subscribed to session events", slog.String("pattern", prefix+"*"))
	return h, nil
}

func (h *RedisHub) receiveLoop(ctx context.Context) {
	defer close(h.done)

	ch := h.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				h.logger.Warn("failed to decode session event",
					slog.String("channel", msg.Channel),
					slog.String("error", err.Error()),
				)
				continue
			}
			if e.SessionID == "" {
				e.SessionID = strings.TrimPrefix(msg.Channel, h.prefix)
			}
			if err := h.local.Publish(ctx, e); err != nil {
				return
			}
		}
	}
}

// Publish はイベントをRedisチャネルへ送る。自プロセスの購読者にもRedis経由で届く。
func (h *RedisHub) Publish(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal session event: %w", err)
	}
	if err := h.client.Publish(ctx, h.prefix+e.SessionID, data).Err(); err != nil {
		return fmt.Errorf("failed to publish session event: %w", err)
	}
	return nil
}

// Subscribe はsessionIDの購読をプロセス内に登録する。
func (h *RedisHub) Subscribe(ctx context.Context, sessionID string) (<-chan Event, func(), error) {
	return h.local.Subscribe(ctx, sessionID)
}

// Close は受信ループを止め、全購読チャネルを閉じる。
func (h *RedisHub) Close() error {
	var err error
	h.once.Do(func() {
		h.cancel()
		err = h.pubsub.Close()
		<-h.done
		h.local.Close()
	})
	return err
}
