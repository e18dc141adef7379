package services

import (
	"context"
	"errors"
	"fmt"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"

	"go.uber.org/zap"
)

type moderationService struct {
	moderationRepo ports.ModerationRepository
	streamRepo     ports.StreamRepository
	logger         *zap.SugaredLogger
}

func NewModerationService(
	moderationRepo ports.ModerationRepository,
	streamRepo ports.StreamRepository,
	logger *zap.SugaredLogger,
) ports.ModerationService {
	return &moderationService{
		moderationRepo: moderationRepo,
		streamRepo:     streamRepo,
		logger:         logger,
	}
}

// CheckAdmission only rejects banned users; muted users may still connect and read.
func (s *moderationService) CheckAdmission(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (domain.Verdict, error) {
	rec, err := s.lookup(ctx, streamID, userID)
	if err != nil {
		return domain.VerdictBanned, err
	}
	if rec != nil && rec.IsBanned {
		return domain.VerdictBanned, nil
	}
	return domain.VerdictAllow, nil
}

// CheckMessage is evaluated per message so moderation changes apply to open
// connections. On a repository error the verdict is VerdictBanned.
func (s *moderationService) CheckMessage(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (domain.Verdict, error) {
	rec, err := s.lookup(ctx, streamID, userID)
	if err != nil {
		return domain.VerdictBanned, err
	}
	switch {
	case rec == nil:
		return domain.VerdictAllow, nil
	case rec.IsBanned:
		return domain.VerdictBanned, nil
	case rec.IsMuted:
		return domain.VerdictMuted, nil
	}
	return domain.VerdictAllow, nil
}

func (s *moderationService) SetModeration(
	ctx context.Context,
	actor domain.Actor,
	streamID domain.StreamID,
	target domain.UserID,
	update domain.ModerationUpdate,
) (*domain.ModerationRecord, error) {
	if err := s.authorize(ctx, actor, streamID); err != nil {
		return nil, err
	}

	rec, err := s.lookup(ctx, streamID, target)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &domain.ModerationRecord{StreamID: streamID, UserID: target}
	}
	update.Apply(rec)

	if err := s.moderationRepo.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save moderation record: %w", err)
	}

	s.logger.Infow("moderation updated",
		"stream_id", streamID,
		"user_id", target,
		"actor_id", actor.ID,
		"is_muted", rec.IsMuted,
		"is_banned", rec.IsBanned,
	)
	return rec, nil
}

// GetModeration returns a zero record (not an error) when none exists yet.
func (s *moderationService) GetModeration(ctx context.Context, actor domain.Actor, streamID domain.StreamID, target domain.UserID) (*domain.ModerationRecord, error) {
	if err := s.authorize(ctx, actor, streamID); err != nil {
		return nil, err
	}
	rec, err := s.lookup(ctx, streamID, target)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &domain.ModerationRecord{StreamID: streamID, UserID: target}
	}
	return rec, nil
}

func (s *moderationService) authorize(ctx context.Context, actor domain.Actor, streamID domain.StreamID) error {
	stream, err := s.streamRepo.GetByID(ctx, streamID)
	if err != nil {
		return err
	}
	if !stream.CanManage(actor) {
		return domain.ErrForbidden
	}
	return nil
}

// lookup maps "no record" to (nil, nil).
func (s *moderationService) lookup(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (*domain.ModerationRecord, error) {
	rec, err := s.moderationRepo.Get(ctx, streamID, userID)
	if errors.Is(err, domain.ErrModerationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load moderation record: %w", err)
	}
	return rec, nil
}
