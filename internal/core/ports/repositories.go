package ports

import (
	"context"
	"errors"
	"time"

	"vlsnet/internal/core/domain"
)

type IdentityRepository interface {
	// Create assigns identity.ID; a duplicate email yields domain.ErrEmailTaken.
	Create(ctx context.Context, identity *domain.Identity) error
	GetByID(ctx context.Context, id domain.UserID) (*domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
}

type StreamRepository interface {
	// Create assigns stream.ID; a duplicate key yields domain.ErrStreamKeyTaken.
	Create(ctx context.Context, stream *domain.Stream) error
	GetByID(ctx context.Context, id domain.StreamID) (*domain.Stream, error)
	GetByKey(ctx context.Context, streamKey string) (*domain.Stream, error)
	Update(ctx context.Context, stream *domain.Stream) error
	Delete(ctx context.Context, id domain.StreamID) error
	// List returns matches ordered by CreatedAt descending.
	List(ctx context.Context, filter domain.StreamFilter) ([]*domain.Stream, error)
}

type ChatMessageRepository interface {
	// Create assigns msg.ID and msg.Timestamp.
	Create(ctx context.Context, msg *domain.ChatMessage) error
	// ListRecent returns up to limit non-deleted messages, oldest first.
	ListRecent(ctx context.Context, streamID domain.StreamID, limit int) ([]*domain.ChatMessage, error)
}

type ModerationRepository interface {
	// Get returns domain.ErrModerationNotFound when no record exists.
	Get(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (*domain.ModerationRecord, error)
	// Upsert inserts or overwrites the flags of the (stream, user) record.
	Upsert(ctx context.Context, rec *domain.ModerationRecord) error
}

// ErrKeyNotFound is returned by KeyValueStore.Get for absent or expired keys.
var ErrKeyNotFound = errors.New("key not found")

// KeyValueStore is the TTL store behind refresh tokens and lockout state.
type KeyValueStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
	// IncrWithTTL atomically increments key, creating it at 0, and attaches
	// ttl only when the key has no expiry yet.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
}
