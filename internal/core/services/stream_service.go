package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"
	"vlsnet/pkg/utils"
	"vlsnet/pkg/validation"

	"go.uber.org/zap"
)

const (
	streamKeyBytes    = 32
	streamKeyAttempts = 3
)

type StreamURLConfig struct {
	IngestBaseURL   string
	PlaybackBaseURL string
}

type streamService struct {
	streamRepo ports.StreamRepository
	urls       StreamURLConfig
	logger     *zap.SugaredLogger
	now        func() time.Time
}

func NewStreamService(
	streamRepo ports.StreamRepository,
	urls StreamURLConfig,
	logger *zap.SugaredLogger,
) ports.StreamService {
	urls.IngestBaseURL = strings.TrimRight(urls.IngestBaseURL, "/")
	urls.PlaybackBaseURL = strings.TrimRight(urls.PlaybackBaseURL, "/")
	return &streamService{
		streamRepo: streamRepo,
		urls:       urls,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateStream is limited to streamers and admins. The stream starts
// scheduled with a fresh random key.
func (s *streamService) CreateStream(ctx context.Context, actor domain.Actor, title, description string, isPublic bool) (*domain.Stream, error) {
	if actor.Role != domain.RoleStreamer && !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	title = strings.TrimSpace(title)
	if err := validation.ValidateStreamTitle(title); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err := validation.ValidateStreamDescription(description); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	now := s.now().UTC()
	stream := &domain.Stream{
		Title:       title,
		Description: description,
		Status:      domain.StreamScheduled,
		OwnerID:     actor.ID,
		IsPublic:    isPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var err error
	for attempt := 0; attempt < streamKeyAttempts; attempt++ {
		stream.StreamKey, err = utils.RandomToken(streamKeyBytes)
		if err != nil {
			return nil, err
		}
		err = s.streamRepo.Create(ctx, stream)
		if !errors.Is(err, domain.ErrStreamKeyTaken) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	s.logger.Infow("stream created", "stream_id", stream.ID, "owner_id", actor.ID)
	return stream, nil
}

func (s *streamService) GetStream(ctx context.Context, id domain.StreamID) (*domain.Stream, error) {
	return s.streamRepo.GetByID(ctx, id)
}

func (s *streamService) ListStreams(ctx context.Context, filter domain.StreamFilter) ([]*domain.Stream, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, filter.Status)
	}
	return s.streamRepo.List(ctx, filter)
}

func (s *streamService) UpdateStream(ctx context.Context, actor domain.Actor, id domain.StreamID, update domain.StreamUpdate) (*domain.Stream, error) {
	stream, err := s.managed(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if err := validation.ValidateStreamTitle(title); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		stream.Title = title
	}
	if update.Description != nil {
		if err := validation.ValidateStreamDescription(*update.Description); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		stream.Description = *update.Description
	}
	if update.IsPublic != nil {
		stream.IsPublic = *update.IsPublic
	}
	if update.StartTime != nil {
		stream.StartTime = update.StartTime
	}
	if update.EndTime != nil {
		stream.EndTime = update.EndTime
	}
	if update.Status != nil {
		if !update.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, *update.Status)
		}
		s.applyStatus(stream, *update.Status)
	}

	return s.save(ctx, stream)
}

func (s *streamService) UpdateStatus(ctx context.Context, actor domain.Actor, id domain.StreamID, status domain.StreamStatus) (*domain.Stream, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}
	stream, err := s.managed(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	s.applyStatus(stream, status)
	return s.save(ctx, stream)
}

func (s *streamService) DeleteStream(ctx context.Context, actor domain.Actor, id domain.StreamID) error {
	if _, err := s.managed(ctx, actor, id); err != nil {
		return err
	}
	if err := s.streamRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete stream: %w", err)
	}
	s.logger.Infow("stream deleted", "stream_id", id, "actor_id", actor.ID)
	return nil
}

func (s *streamService) IngestURL(ctx context.Context, actor domain.Actor, id domain.StreamID) (string, error) {
	stream, err := s.managed(ctx, actor, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s", s.urls.IngestBaseURL, stream.StreamKey), nil
}

// PlaybackURL is public, so the path carries the stream id and never the
// stream key.
func (s *streamService) PlaybackURL(ctx context.Context, id domain.StreamID) (string, error) {
	stream, err := s.streamRepo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%d.m3u8", s.urls.PlaybackBaseURL, stream.ID), nil
}

// HandleIngestEvent flips a stream live (started) or ended when the media
// server reports a publish start or stop for streamKey.
func (s *streamService) HandleIngestEvent(ctx context.Context, streamKey string, started bool) (*domain.Stream, error) {
	if err := validation.ValidateStreamKey(streamKey); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	stream, err := s.streamRepo.GetByKey(ctx, streamKey)
	if err != nil {
		return nil, err
	}

	status := domain.StreamEnded
	if started {
		status = domain.StreamLive
	}
	s.applyStatus(stream, status)

	updated, err := s.save(ctx, stream)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("ingest event", "stream_id", stream.ID, "status", status)
	return updated, nil
}

func (s *streamService) managed(ctx context.Context, actor domain.Actor, id domain.StreamID) (*domain.Stream, error) {
	stream, err := s.streamRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !stream.CanManage(actor) {
		return nil, domain.ErrForbidden
	}
	return stream, nil
}

// applyStatus stamps start/end times on the first transition into live/ended.
func (s *streamService) applyStatus(stream *domain.Stream, status domain.StreamStatus) {
	now := s.now().UTC()
	switch status {
	case domain.StreamLive:
		if stream.StartTime == nil || stream.Status != domain.StreamLive {
			stream.StartTime = &now
			stream.EndTime = nil
		}
	case domain.StreamEnded:
		if stream.EndTime == nil || stream.Status != domain.StreamEnded {
			stream.EndTime = &now
		}
	}
	stream.Status = status
}

func (s *streamService) save(ctx context.Context, stream *domain.Stream) (*domain.Stream, error) {
	stream.UpdatedAt = s.now().UTC()
	if err := s.streamRepo.Update(ctx, stream); err != nil {
		return nil, fmt.Errorf("failed to update stream: %w", err)
	}
	return stream, nil
}
