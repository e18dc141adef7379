package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"vlsnet/internal/core/ports"
)

type kvItem struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (i *kvItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && !now.Before(i.expiresAt)
}

// KeyValueStore is an in-process TTL store used when Redis is disabled.
// Expired keys are dropped lazily and by an optional sweeper.
type KeyValueStore struct {
	items map[string]*kvItem
	mu    sync.Mutex
	now   func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

func NewKeyValueStore() *KeyValueStore {
	return NewKeyValueStoreWithClock(time.Now)
}

func NewKeyValueStoreWithClock(now func() time.Time) *KeyValueStore {
	return &KeyValueStore{
		items: make(map[string]*kvItem),
		now:   now,
		stop:  make(chan struct{}),
	}
}

var _ ports.KeyValueStore = (*KeyValueStore)(nil)

func (s *KeyValueStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := &kvItem{value: value}
	if ttl > 0 {
		item.expiresAt = s.now().Add(ttl)
	}
	s.items[key] = item
	return nil
}

func (s *KeyValueStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.live(key)
	if !ok {
		return "", ports.ErrKeyNotFound
	}
	return item.value, nil
}

func (s *KeyValueStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.items, key)
	}
	return nil
}

// IncrWithTTL keeps an existing expiry, so the window runs from the first
// increment.
func (s *KeyValueStore) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.live(key)
	if !ok {
		item = &kvItem{value: "0"}
		s.items[key] = item
	}
	n, err := strconv.ParseInt(item.value, 10, 64)
	if err != nil {
		return 0, err
	}
	n++
	item.value = strconv.FormatInt(n, 10)
	if item.expiresAt.IsZero() && ttl > 0 {
		item.expiresAt = s.now().Add(ttl)
	}
	return n, nil
}

func (s *KeyValueStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.live(key)
	return ok, nil
}

func (s *KeyValueStore) Ping(context.Context) error {
	return nil
}

// Len counts keys that have not expired.
func (s *KeyValueStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, item := range s.items {
		if !item.expired(now) {
			n++
		}
	}
	return n
}

// StartSweeper removes expired keys every interval until Stop is called.
func (s *KeyValueStore) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *KeyValueStore) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *KeyValueStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, item := range s.items {
		if item.expired(now) {
			delete(s.items, key)
		}
	}
}

// live must be called with mu held.
func (s *KeyValueStore) live(key string) (*kvItem, bool) {
	item, ok := s.items[key]
	if !ok {
		return nil, false
	}
	if item.expired(s.now()) {
		delete(s.items, key)
		return nil, false
	}
	return item, true
}
