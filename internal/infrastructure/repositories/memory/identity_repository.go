package memory

import (
	"context"
	"sync"
	"time"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"
)

type MemoryIdentityRepository struct {
	identities map[domain.UserID]*domain.Identity
	byEmail    map[string]domain.UserID
	nextID     domain.UserID
	mu         sync.RWMutex
}

func NewMemoryIdentityRepository() ports.IdentityRepository {
	return &MemoryIdentityRepository{
		identities: make(map[domain.UserID]*domain.Identity),
		byEmail:    make(map[string]domain.UserID),
	}
}

func (r *MemoryIdentityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[identity.Email]; exists {
		return domain.ErrEmailTaken
	}

	r.nextID++
	identity.ID = r.nextID
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}
	stored := *identity
	r.identities[identity.ID] = &stored
	r.byEmail[identity.Email] = identity.ID
	return nil
}

func (r *MemoryIdentityRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, exists := r.identities[id]
	if !exists {
		return nil, domain.ErrIdentityNotFound
	}
	out := *identity
	return &out, nil
}

func (r *MemoryIdentityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byEmail[email]
	if !exists {
		return nil, domain.ErrIdentityNotFound
	}
	out := *r.identities[id]
	return &out, nil
}
