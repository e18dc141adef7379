package chat

import (
	"strconv"
	"sync"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"

	"github.com/cespare/xxhash/v2"
)

const DefaultShardCount = 32

// PruneFunc is called once for every subscriber dropped by Broadcast.
type PruneFunc func(streamID domain.StreamID, sub ports.Subscriber, err error)

type shard struct {
	mu      sync.RWMutex
	streams map[domain.StreamID]map[string]ports.Subscriber
}

// Registry tracks which connections are subscribed to which stream.
//
// Streams are spread over shards by xxhash of the stream id, each shard
// guarded by its own RWMutex. Broadcast copies the subscriber set under the
// read lock and delivers outside it. The reverse index (connection ->
// streams) has its own mutex, always taken after a shard lock.
type Registry struct {
	shards []*shard

	indexMu sync.Mutex
	index   map[string]map[domain.StreamID]struct{}

	onPrune PruneFunc
}

func NewRegistry(shardCount int, onPrune PruneFunc) *Registry {
	if shardCount <= 0 {
		shardCount = DefaultShardCount
	}
	r := &Registry{
		shards:  make([]*shard, shardCount),
		index:   make(map[string]map[domain.StreamID]struct{}),
		onPrune: onPrune,
	}
	for i := range r.shards {
		r.shards[i] = &shard{streams: make(map[domain.StreamID]map[string]ports.Subscriber)}
	}
	return r
}

var _ ports.ChatFanout = (*Registry)(nil)

func (r *Registry) shardFor(streamID domain.StreamID) *shard {
	var buf [20]byte
	h := xxhash.Sum64(strconv.AppendInt(buf[:0], int64(streamID), 10))
	return r.shards[h%uint64(len(r.shards))]
}

// Subscribe is idempotent per connection id.
func (r *Registry) Subscribe(streamID domain.StreamID, sub ports.Subscriber) {
	sh := r.shardFor(streamID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	subs, ok := sh.streams[streamID]
	if !ok {
		subs = make(map[string]ports.Subscriber)
		sh.streams[streamID] = subs
	}
	subs[sub.ID()] = sub

	r.indexMu.Lock()
	streams, ok := r.index[sub.ID()]
	if !ok {
		streams = make(map[domain.StreamID]struct{})
		r.index[sub.ID()] = streams
	}
	streams[streamID] = struct{}{}
	r.indexMu.Unlock()
}

// Unsubscribe is a no-op for unknown pairs. Empty stream entries are removed.
func (r *Registry) Unsubscribe(streamID domain.StreamID, sub ports.Subscriber) {
	r.remove(streamID, sub.ID())
}

// UnsubscribeAll drops the connection from every stream it joined.
func (r *Registry) UnsubscribeAll(sub ports.Subscriber) {
	r.indexMu.Lock()
	streams := make([]domain.StreamID, 0, len(r.index[sub.ID()]))
	for streamID := range r.index[sub.ID()] {
		streams = append(streams, streamID)
	}
	r.indexMu.Unlock()

	for _, streamID := range streams {
		r.remove(streamID, sub.ID())
	}
}

// Broadcast delivers frame to the subscribers present when it was called and
// returns how many accepted it. Subscribers whose Send fails are removed;
// the remaining ones are still served.
func (r *Registry) Broadcast(streamID domain.StreamID, frame []byte) int {
	sh := r.shardFor(streamID)

	sh.mu.RLock()
	subs := sh.streams[streamID]
	snapshot := make([]ports.Subscriber, 0, len(subs))
	for _, sub := range subs {
		snapshot = append(snapshot, sub)
	}
	sh.mu.RUnlock()

	delivered := 0
	for _, sub := range snapshot {
		if err := sub.Send(frame); err != nil {
			if r.remove(streamID, sub.ID()) && r.onPrune != nil {
				r.onPrune(streamID, sub, err)
			}
			continue
		}
		delivered++
	}
	return delivered
}

func (r *Registry) SubscriberCount(streamID domain.StreamID) int {
	sh := r.shardFor(streamID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.streams[streamID])
}

// StreamCount is the number of streams with at least one subscriber.
func (r *Registry) StreamCount() int {
	n := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		n += len(sh.streams)
		sh.mu.RUnlock()
	}
	return n
}

// remove reports whether connID was subscribed to streamID.
func (r *Registry) remove(streamID domain.StreamID, connID string) bool {
	sh := r.shardFor(streamID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	subs, ok := sh.streams[streamID]
	if !ok {
		return false
	}
	if _, ok := subs[connID]; !ok {
		return false
	}
	delete(subs, connID)
	if len(subs) == 0 {
		delete(sh.streams, streamID)
	}

	r.indexMu.Lock()
	if streams, ok := r.index[connID]; ok {
		delete(streams, streamID)
		if len(streams) == 0 {
			delete(r.index, connID)
		}
	}
	r.indexMu.Unlock()
	return true
}
