package memory

import (
	"context"
	"sync"
	"time"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"
)

type moderationKey struct {
	stream domain.StreamID
	user   domain.UserID
}

type MemoryModerationRepository struct {
	records map[moderationKey]*domain.ModerationRecord
	nextID  int64
	mu      sync.RWMutex
}

func NewMemoryModerationRepository() ports.ModerationRepository {
	return &MemoryModerationRepository{
		records: make(map[moderationKey]*domain.ModerationRecord),
	}
}

func (r *MemoryModerationRepository) Get(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (*domain.ModerationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.records[moderationKey{streamID, userID}]
	if !exists {
		return nil, domain.ErrModerationNotFound
	}
	out := *rec
	return &out, nil
}

func (r *MemoryModerationRepository) Upsert(ctx context.Context, rec *domain.ModerationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := moderationKey{rec.StreamID, rec.UserID}
	if current, exists := r.records[key]; exists {
		current.IsMuted = rec.IsMuted
		current.IsBanned = rec.IsBanned
		rec.ID = current.ID
		rec.CreatedAt = current.CreatedAt
		return nil
	}

	r.nextID++
	rec.ID = r.nextID
	rec.CreatedAt = time.Now().UTC()
	stored := *rec
	r.records[key] = &stored
	return nil
}
