package memory

import (
	"context"
	"sort"
	"sync"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"
)

type MemoryStreamRepository struct {
	streams map[domain.StreamID]*domain.Stream
	byKey   map[string]domain.StreamID
	nextID  domain.StreamID
	mu      sync.RWMutex
}

func NewMemoryStreamRepository() ports.StreamRepository {
	return &MemoryStreamRepository{
		streams: make(map[domain.StreamID]*domain.Stream),
		byKey:   make(map[string]domain.StreamID),
	}
}

func (r *MemoryStreamRepository) Create(ctx context.Context, stream *domain.Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byKey[stream.StreamKey]; exists {
		return domain.ErrStreamKeyTaken
	}

	r.nextID++
	stream.ID = r.nextID
	stored := *stream
	r.streams[stream.ID] = &stored
	r.byKey[stream.StreamKey] = stream.ID
	return nil
}

func (r *MemoryStreamRepository) GetByID(ctx context.Context, id domain.StreamID) (*domain.Stream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stream, exists := r.streams[id]
	if !exists {
		return nil, domain.ErrStreamNotFound
	}
	out := *stream
	return &out, nil
}

func (r *MemoryStreamRepository) GetByKey(ctx context.Context, streamKey string) (*domain.Stream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byKey[streamKey]
	if !exists {
		return nil, domain.ErrStreamNotFound
	}
	out := *r.streams[id]
	return &out, nil
}

func (r *MemoryStreamRepository) Update(ctx context.Context, stream *domain.Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.streams[stream.ID]
	if !exists {
		return domain.ErrStreamNotFound
	}
	if current.StreamKey != stream.StreamKey {
		if _, taken := r.byKey[stream.StreamKey]; taken {
			return domain.ErrStreamKeyTaken
		}
		delete(r.byKey, current.StreamKey)
		r.byKey[stream.StreamKey] = stream.ID
	}

	stored := *stream
	r.streams[stream.ID] = &stored
	return nil
}

func (r *MemoryStreamRepository) Delete(ctx context.Context, id domain.StreamID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stream, exists := r.streams[id]
	if !exists {
		return domain.ErrStreamNotFound
	}

	delete(r.byKey, stream.StreamKey)
	delete(r.streams, id)
	return nil
}

func (r *MemoryStreamRepository) List(ctx context.Context, filter domain.StreamFilter) ([]*domain.Stream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Stream, 0, len(r.streams))
	for _, stream := range r.streams {
		if filter.Status != "" && stream.Status != filter.Status {
			continue
		}
		if filter.OwnerID != 0 && stream.OwnerID != filter.OwnerID {
			continue
		}
		if filter.IsPublic != nil && stream.IsPublic != *filter.IsPublic {
			continue
		}
		cp := *stream
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return paginate(out, filter.Offset, filter.Limit), nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
