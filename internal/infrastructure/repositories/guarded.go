package repositories

import (
	"context"
	"errors"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"
	"vlsnet/pkg/circuitbreaker"

	"go.uber.org/zap"
)

// isBackendFailure keeps domain outcomes and caller cancellations from
// tripping a breaker.
func isBackendFailure(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		errors.Is(err, domain.ErrModerationNotFound),
		errors.Is(err, domain.ErrStreamNotFound),
		errors.Is(err, domain.ErrInvalidInput):
		return false
	}
	return true
}

func newBreaker(name string, logger *zap.SugaredLogger) *circuitbreaker.Breaker {
	cfg := circuitbreaker.DefaultConfig()
	cfg.IsFailure = isBackendFailure
	b := circuitbreaker.New(cfg)
	b.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("repository circuit breaker changed state",
			"repository", name,
			"from", from.String(),
			"to", to.String(),
		)
	})
	return b
}

// guardedModerationRepository fails fast while Postgres is down. The
// moderation gate turns the resulting error into a drop.
type guardedModerationRepository struct {
	next    ports.ModerationRepository
	breaker *circuitbreaker.Breaker
}

func newGuardedModerationRepository(next ports.ModerationRepository, logger *zap.SugaredLogger) ports.ModerationRepository {
	return &guardedModerationRepository{next: next, breaker: newBreaker("moderation", logger)}
}

func (r *guardedModerationRepository) Get(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (*domain.ModerationRecord, error) {
	return circuitbreaker.Do(r.breaker, func() (*domain.ModerationRecord, error) {
		return r.next.Get(ctx, streamID, userID)
	})
}

func (r *guardedModerationRepository) Upsert(ctx context.Context, rec *domain.ModerationRecord) error {
	return r.breaker.Execute(func() error {
		return r.next.Upsert(ctx, rec)
	})
}

type guardedChatMessageRepository struct {
	next    ports.ChatMessageRepository
	breaker *circuitbreaker.Breaker
}

func newGuardedChatMessageRepository(next ports.ChatMessageRepository, logger *zap.SugaredLogger) ports.ChatMessageRepository {
	return &guardedChatMessageRepository{next: next, breaker: newBreaker("chat_messages", logger)}
}

func (r *guardedChatMessageRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	return r.breaker.Execute(func() error {
		return r.next.Create(ctx, msg)
	})
}

func (r *guardedChatMessageRepository) ListRecent(ctx context.Context, streamID domain.StreamID, limit int) ([]*domain.ChatMessage, error) {
	return circuitbreaker.Do(r.breaker, func() ([]*domain.ChatMessage, error) {
		return r.next.ListRecent(ctx, streamID, limit)
	})
}
