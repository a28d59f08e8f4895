package sessionevent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestKind_Active(t *testing.T) {
	assert.True(t, KindSignedIn.Active())
	assert.True(t, KindRefreshed.Active())
	assert.False(t, KindSignedOut.Active())
	assert.False(t, KindExpired.Active())
}

func TestMemoryHub_DeliversOnlyToMatchingSession(t *testing.T) {
	ctx := context.Background()
	hub := NewMemoryHub(0)
	defer hub.Close()

	a, cancelA, err := hub.Subscribe(ctx, "sess-a")
	require.NoError(t, err)
	defer cancelA()
	b, cancelB, err := hub.Subscribe(ctx, "sess-b")
	require.NoError(t, err)
	defer cancelB()

	require.NoError(t, hub.Publish(ctx, Event{SessionID: "sess-a", UserID: "u1", Kind: KindSignedOut}))

	e := receive(t, a)
	assert.Equal(t, KindSignedOut, e.Kind)
	assert.Equal(t, "u1", e.UserID)
	assert.False(t, e.At.IsZero(), "At should be stamped")

	select {
	case e := <-b:
		t.Fatalf("unexpected event for other session: %+v", e)
	default:
	}
}

func TestMemoryHub_FanOutToAllSubscribers(t *testing.T) {
	ctx := context.Background()
	hub := NewMemoryHub(0)
	defer hub.Close()

	first, c1, err := hub.Subscribe(ctx, "s")
	require.NoError(t, err)
	defer c1()
	second, c2, err := hub.Subscribe(ctx, "s")
	require.NoError(t, err)
	defer c2()
	assert.Equal(t, 2, hub.SubscriberCount("s"))

	require.NoError(t, hub.Publish(ctx, Event{SessionID: "s", Kind: KindRefreshed}))
	assert.Equal(t, KindRefreshed, receive(t, first).Kind)
	assert.Equal(t, KindRefreshed, receive(t, second).Kind)
}

func TestMemoryHub_FullBufferKeepsNewest(t *testing.T) {
	ctx := context.Background()
	hub := NewMemoryHub(2)
	defer hub.Close()

	ch, cancel, err := hub.Subscribe(ctx, "s")
	require.NoError(t, err)
	defer cancel()

	for _, k := range []Kind{KindSignedIn, KindRefreshed, KindSignedOut} {
		require.NoError(t, hub.Publish(ctx, Event{SessionID: "s", Kind: k}))
	}

	assert.Equal(t, KindRefreshed, receive(t, ch).Kind)
	assert.Equal(t, KindSignedOut, receive(t, ch).Kind)
}

func TestMemoryHub_CancelClosesChannel(t *testing.T) {
	ctx := context.Background()
	hub := NewMemoryHub(0)
	defer hub.Close()

	ch, cancel, err := hub.Subscribe(ctx, "s")
	require.NoError(t, err)

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, hub.SubscriberCount("s"))
	assert.NoError(t, hub.Publish(ctx, Event{SessionID: "s", Kind: KindExpired}))
}

func TestMemoryHub_Close(t *testing.T) {
	ctx := context.Background()
	hub := NewMemoryHub(0)

	ch, cancel, err := hub.Subscribe(ctx, "s")
	require.NoError(t, err)

	require.NoError(t, hub.Close())
	require.NoError(t, hub.Close())

	_, ok := <-ch
	assert.False(t, ok)
	cancel()

	assert.ErrorIs(t, hub.Publish(ctx, Event{SessionID: "s"}), ErrClosed)
	_, _, err = hub.Subscribe(ctx, "s")
	assert.ErrorIs(t, err, ErrClosed)
}
