package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triggerd/internal/common/logging"
)

func newTestBus(opts ...Option) *LocalBus {
	return NewLocalBus(append([]Option{WithLogger(logging.NewNopLogger())}, opts...)...)
}

func TestLocalBus_BroadcastInOrder(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	var mu sync.Mutex
	got := map[string][]int{}
	for _, name := range []string{"a", "b"} {
		n := name
		_, err := b.Subscribe(TopicExecuteAction, func(ctx context.Context, msg Message) {
			mu.Lock()
			got[n] = append(got[n], msg.Payload.(int))
			mu.Unlock()
		})
		require.NoError(t, err)
	}

	for i := 0; i < 50; i++ {
		require.NoError(t, b.Publish(context.Background(), TopicExecuteAction, i))
	}
	require.NoError(t, b.Close())

	want := make([]int, 50)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got["a"])
	assert.Equal(t, want, got["b"])
}

func TestLocalBus_TopicsAreIsolated(t *testing.T) {
	b := newTestBus()
	var hits atomic.Int32
	_, err := b.Subscribe(EventTopic("follow"), func(ctx context.Context, msg Message) { hits.Add(1) })
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), EventTopic("chat"), "x"))
	require.NoError(t, b.Publish(context.Background(), EventTopic("follow"), "y"))
	require.NoError(t, b.Close())

	assert.Equal(t, int32(1), hits.Load())
}

func TestLocalBus_DropsWhenFull(t *testing.T) {
	var dropped atomic.Int32
	b := newTestBus(WithBufferSize(1), WithDropHook(func(string) { dropped.Add(1) }))

	release := make(chan struct{})
	_, err := b.Subscribe("slow", func(ctx context.Context, msg Message) { <-release })
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Publish(context.Background(), "slow", i))
	}
	assert.Eventually(t, func() bool { return dropped.Load() >= 3 }, time.Second, 10*time.Millisecond)

	close(release)
	require.NoError(t, b.Close())
}

func TestLocalBus_Unsubscribe(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	var hits atomic.Int32
	sub, err := b.Subscribe("t", func(ctx context.Context, msg Message) { hits.Add(1) })
	require.NoError(t, err)
	assert.Equal(t, 1, b.SubscriberCount("t"))

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, b.SubscriberCount("t"))

	require.NoError(t, b.Publish(context.Background(), "t", 1))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), hits.Load())
}

func TestLocalBus_PanicIsContained(t *testing.T) {
	b := newTestBus()
	var after atomic.Int32
	_, err := b.Subscribe("t", func(ctx context.Context, msg Message) {
		if msg.Payload.(int) == 0 {
			panic("boom")
		}
		after.Add(1)
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), "t", 0))
	require.NoError(t, b.Publish(context.Background(), "t", 1))
	require.NoError(t, b.Close())
	assert.Equal(t, int32(1), after.Load())
}

func TestLocalBus_Closed(t *testing.T) {
	b := newTestBus()
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	assert.ErrorIs(t, b.Publish(context.Background(), "t", 1), ErrClosed)
	_, err := b.Subscribe("t", func(context.Context, Message) {})
	assert.ErrorIs(t, err, ErrClosed)
}
