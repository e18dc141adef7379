package chat

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	id string

	mu     sync.Mutex
	frames [][]byte
	fail   error
	onSend func()
}

func newFakeSubscriber(id string) *fakeSubscriber {
	return &fakeSubscriber{id: id}
}

func (f *fakeSubscriber) ID() string { return f.id }

func (f *fakeSubscriber) Send(frame []byte) error {
	if f.onSend != nil {
		f.onSend()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeSubscriber) received() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func TestRegistry_SubscribeIsIdempotent(t *testing.T) {
	r := NewRegistry(4, nil)
	sub := newFakeSubscriber("c1")

	r.Subscribe(1, sub)
	r.Subscribe(1, sub)

	assert.Equal(t, 1, r.SubscriberCount(1))
	assert.Equal(t, 1, r.Broadcast(1, []byte("hi")))
	assert.Equal(t, 1, sub.received())
}

func TestRegistry_UnsubscribeRemovesEmptyStream(t *testing.T) {
	r := NewRegistry(4, nil)
	a, b := newFakeSubscriber("a"), newFakeSubscriber("b")

	r.Subscribe(7, a)
	r.Subscribe(7, b)
	assert.Equal(t, 1, r.StreamCount())

	r.Unsubscribe(7, a)
	assert.Equal(t, 1, r.SubscriberCount(7))

	// unknown pair is a no-op
	r.Unsubscribe(8, a)
	r.Unsubscribe(7, a)

	r.Unsubscribe(7, b)
	assert.Equal(t, 0, r.SubscriberCount(7))
	assert.Equal(t, 0, r.StreamCount())
}

func TestRegistry_UnsubscribeAll(t *testing.T) {
	r := NewRegistry(4, nil)
	sub := newFakeSubscriber("c1")
	other := newFakeSubscriber("c2")

	for id := domain.StreamID(1); id <= 5; id++ {
		r.Subscribe(id, sub)
	}
	r.Subscribe(3, other)

	r.UnsubscribeAll(sub)

	for id := domain.StreamID(1); id <= 5; id++ {
		assert.Equal(t, boolToInt(id == 3), r.Broadcast(id, []byte("x")), "stream %d", id)
	}
	assert.Equal(t, 1, r.StreamCount())
	assert.Equal(t, 0, sub.received())

	// second call has nothing left to remove
	r.UnsubscribeAll(sub)
}

func TestRegistry_BroadcastPrunesFailingSubscribers(t *testing.T) {
	var pruned []string
	r := NewRegistry(4, func(streamID domain.StreamID, sub ports.Subscriber, err error) {
		pruned = append(pruned, sub.ID())
		assert.Equal(t, domain.StreamID(1), streamID)
		assert.Error(t, err)
	})

	good1, good2 := newFakeSubscriber("good1"), newFakeSubscriber("good2")
	bad := newFakeSubscriber("bad")
	bad.fail = errors.New("send buffer full")

	r.Subscribe(1, good1)
	r.Subscribe(1, bad)
	r.Subscribe(1, good2)

	delivered := r.Broadcast(1, []byte(`{"content":"hi"}`))

	assert.Equal(t, 2, delivered)
	assert.Equal(t, []string{"bad"}, pruned)
	assert.Equal(t, 2, r.SubscriberCount(1))
	assert.Equal(t, 1, good1.received())
	assert.Equal(t, 1, good2.received())

	// the pruned subscriber is gone from the reverse index too
	r.UnsubscribeAll(bad)
	assert.Equal(t, 2, r.SubscriberCount(1))
}

func TestRegistry_BroadcastUsesSnapshot(t *testing.T) {
	r := NewRegistry(1, nil)
	late := newFakeSubscriber("late")

	first := newFakeSubscriber("first")
	first.onSend = func() {
		// joining during a broadcast does not receive that broadcast
		r.Subscribe(1, late)
	}
	r.Subscribe(1, first)

	assert.Equal(t, 1, r.Broadcast(1, []byte("one")))
	assert.Equal(t, 0, late.received())

	first.onSend = nil
	assert.Equal(t, 2, r.Broadcast(1, []byte("two")))
	assert.Equal(t, 1, late.received())
}

func TestRegistry_BroadcastToUnknownStream(t *testing.T) {
	r := NewRegistry(0, nil)
	assert.Len(t, r.shards, DefaultShardCount)
	assert.Equal(t, 0, r.Broadcast(42, []byte("x")))
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry(8, nil)
	const (
		streams = 16
		conns   = 32
	)

	var wg sync.WaitGroup
	var delivered atomic.Int64
	for c := 0; c < conns; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			sub := newFakeSubscriber(fmt.Sprintf("conn-%d", c))
			for s := 0; s < streams; s++ {
				r.Subscribe(domain.StreamID(s), sub)
			}
			for s := 0; s < streams; s++ {
				delivered.Add(int64(r.Broadcast(domain.StreamID(s), []byte("m"))))
			}
			if c%2 == 0 {
				r.UnsubscribeAll(sub)
			}
		}(c)
	}
	wg.Wait()

	require.Positive(t, delivered.Load())
	for s := 0; s < streams; s++ {
		assert.Equal(t, conns/2, r.SubscriberCount(domain.StreamID(s)))
	}
	assert.Equal(t, streams, r.StreamCount())
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
