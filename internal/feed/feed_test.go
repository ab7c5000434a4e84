package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpmh2023/sekretos-hunt-quest/internal/store"
)

// testClock is an injectable wall clock shared by the service and the test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T) (*Service, *testClock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rs := store.NewRedisStoreFromClient(client)
	t.Cleanup(func() { rs.Close() })

	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	svc := NewService(rs, DefaultTTL, zerolog.Nop())
	svc.now = clock.Now
	return svc, clock
}

func TestPublishValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Publish(ctx, Author{}, "hello")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = svc.Publish(ctx, Author{ID: "id-1"}, "hello")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = svc.Publish(ctx, Author{ID: "id-1", Name: "ORCA"}, "   \n\t ")
	assert.ErrorIs(t, err, ErrEmptyBody)
}

func TestPublishAssignsServerTimestamps(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	msg, err := svc.Publish(ctx, Author{ID: "id-1", Name: "ORCA"}, "hello")
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, clock.Now().UnixMilli(), msg.CreatedAt)
	assert.Equal(t, clock.Now().Add(DefaultTTL).UnixMilli(), msg.ExpiresAt)
	assert.Equal(t, "ORCA", msg.AgentName)
}

func TestVisibleExpiryBoundary(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	_, err := svc.Publish(ctx, Author{ID: "id-1", Name: "ORCA"}, "ephemeral")
	require.NoError(t, err)

	// Just inside the window.
	clock.Advance(DefaultTTL - time.Second)
	visible, err := svc.Visible(ctx)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "ephemeral", visible[0].Body)
	assert.Equal(t, int64(1000), visible[0].RemainingMS)
	assert.Equal(t, "00:01", visible[0].Countdown)

	// Exactly at expiry the message is gone.
	clock.Advance(time.Second)
	visible, err = svc.Visible(ctx)
	require.NoError(t, err)
	assert.Empty(t, visible)
}

func TestVisibleOrdering(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	_, err := svc.Publish(ctx, Author{ID: "id-1", Name: "ORCA"}, "one")
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = svc.Publish(ctx, Author{ID: "id-2", Name: "LYNX"}, "two")
	require.NoError(t, err)

	visible, err := svc.Visible(ctx)
	require.NoError(t, err)
	require.Len(t, visible, 2)
	assert.Equal(t, "one", visible[0].Body)
	assert.Equal(t, "two", visible[1].Body)
	assert.Greater(t, visible[1].RemainingMS, visible[0].RemainingMS)
}

func TestFormatCountdown(t *testing.T) {
	cases := []struct {
		millis int64
		want   string
	}{
		{0, "00:00"},
		{-500, "00:00"},
		{999, "00:00"},
		{1000, "00:01"},
		{299_000, "04:59"},
		{300_000, "05:00"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, formatCountdown(tc.millis), "millis=%d", tc.millis)
	}
}

func waitSnapshot(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.C:
		require.True(t, ok, "subscription channel closed unexpectedly")
		return snap
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func TestSubscribeEmitsInitialSnapshot(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Cancel()

	snap := waitSnapshot(t, sub)
	assert.Empty(t, snap.Messages, "empty feed still yields a first snapshot")
}

func TestSubscribeSeesNewMessage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Cancel()

	waitSnapshot(t, sub)

	_, err = svc.Publish(ctx, Author{ID: "id-1", Name: "ORCA"}, "incoming")
	require.NoError(t, err)

	snap := waitSnapshot(t, sub)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "incoming", snap.Messages[0].Body)
	assert.Equal(t, "ORCA", snap.Messages[0].AgentName)
}

func TestSubscribeDropsExpiredWithoutTraffic(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	_, err := svc.Publish(ctx, Author{ID: "id-1", Name: "ORCA"}, "fading")
	require.NoError(t, err)

	sub, err := svc.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Cancel()

	snap := waitSnapshot(t, sub)
	require.Len(t, snap.Messages, 1)

	// No new store events; the ticker refilter alone removes the message.
	clock.Advance(DefaultTTL + time.Second)
	snap = waitSnapshot(t, sub)
	assert.Empty(t, snap.Messages)
}

func TestSubscriptionCancel(t *testing.T) {
	svc, _ := newTestService(t)

	sub, err := svc.Subscribe(context.Background())
	require.NoError(t, err)

	waitSnapshot(t, sub)
	sub.Cancel()
	sub.Cancel() // idempotent

	// Drain until close.
	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-sub.C:
			if !ok {
				assert.NoError(t, sub.Err(), "clean cancel has no terminal error")
				return
			}
		case <-deadline:
			t.Fatal("subscription did not close after cancel")
		}
	}
}
