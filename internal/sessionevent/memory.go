package sessionevent

import (
	"context"
	"sync"
	"time"
)

const defaultBufferSize = 8

type subscriber struct {
	ch   chan Event
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// MemoryHub はプロセス内でイベントを配信するHub。
// 購読者のバッファが満杯の場合は最も古いイベントを捨てて最新のイベントを入れる。
type MemoryHub struct {
	bufferSize int

	mu     sync.Mutex
	subs   map[string]map[*subscriber]struct{}
	closed bool
}

// NewMemoryHub はMemoryHubを生成する。bufferSizeが0以下の場合は8を使う。
func NewMemoryHub(bufferSize int) *MemoryHub {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &MemoryHub{
		bufferSize: bufferSize,
		subs:       make(map[string]map[*subscriber]struct{}),
	}
}

// Publish は同じセッションIDの購読者全員にイベントを渡す。ブロックしない。
func (h *MemoryHub) Publish(_ context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	for sub := range h.subs[e.SessionID] {
		deliver(sub.ch, e)
	}
	return nil
}

// deliver はチャネルに送信する。満杯なら最古の1件を捨ててから送る。
// 送信側はハブのロックで直列化されているため、2回目の送信は必ず成功する。
func deliver(ch chan Event, e Event) {
	select {
	case ch <- e:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- e:
	default:
	}
}

// Subscribe はsessionIDの購読を登録する。
func (h *MemoryHub) Subscribe(_ context.Context, sessionID string) (<-chan Event, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, nil, ErrClosed
	}

	sub := &subscriber{ch: make(chan Event, h.bufferSize)}
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[sessionID] = set
	}
	set[sub] = struct{}{}

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[sessionID]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.subs, sessionID)
			}
		}
		h.mu.Unlock()
		sub.close()
	}
	return sub.ch, cancel, nil
}

// SubscriberCount はsessionIDの購読者数を返す。
func (h *MemoryHub) SubscriberCount(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

// Close は全購読チャネルを閉じる。2回目以降は何もしない。
func (h *MemoryHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	for id, set := range h.subs {
		for sub := range set {
			sub.close()
		}
		delete(h.subs, id)
	}
	return nil
}
