package memory

import (
	"context"
	"sync"
	"time"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"
)

type MemoryChatMessageRepository struct {
	messages map[domain.StreamID][]*domain.ChatMessage
	nextID   domain.MessageID
	mu       sync.RWMutex
}

func NewMemoryChatMessageRepository() ports.ChatMessageRepository {
	return &MemoryChatMessageRepository{
		messages: make(map[domain.StreamID][]*domain.ChatMessage),
	}
}

func (r *MemoryChatMessageRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	msg.ID = r.nextID
	msg.Timestamp = time.Now().UTC()

	stored := *msg
	r.messages[msg.StreamID] = append(r.messages[msg.StreamID], &stored)
	return nil
}

func (r *MemoryChatMessageRepository) ListRecent(ctx context.Context, streamID domain.StreamID, limit int) ([]*domain.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.messages[streamID]
	out := make([]*domain.ChatMessage, 0, min(max(limit, 0), len(all)))
	// walk backwards to collect the newest, then restore chronological order
	for i := len(all) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if all[i].IsDeleted {
			continue
		}
		cp := *all[i]
		out = append(out, &cp)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
