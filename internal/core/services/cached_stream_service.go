package services

import (
	"context"
	"time"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"
	"vlsnet/pkg/cache"
)

// CachedStreamService caches GetStream, which every chat connection and
// history read hits. Writes through this instance invalidate the entry;
// writes elsewhere become visible after the TTL.
type CachedStreamService struct {
	ports.StreamService
	cache *cache.Cache[domain.StreamID, *domain.Stream]
}

func NewCachedStreamService(base ports.StreamService, ttl time.Duration) *CachedStreamService {
	c := cache.New[domain.StreamID, *domain.Stream](ttl)
	c.StartSweeper(ttl * 10)
	return &CachedStreamService{StreamService: base, cache: c}
}

func (s *CachedStreamService) GetStream(ctx context.Context, id domain.StreamID) (*domain.Stream, error) {
	stream, err := s.cache.GetOrLoad(ctx, id, func(ctx context.Context) (*domain.Stream, error) {
		return s.StreamService.GetStream(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	out := *stream
	return &out, nil
}

func (s *CachedStreamService) UpdateStream(ctx context.Context, actor domain.Actor, id domain.StreamID, update domain.StreamUpdate) (*domain.Stream, error) {
	defer s.cache.Delete(id)
	return s.StreamService.UpdateStream(ctx, actor, id, update)
}

func (s *CachedStreamService) UpdateStatus(ctx context.Context, actor domain.Actor, id domain.StreamID, status domain.StreamStatus) (*domain.Stream, error) {
	defer s.cache.Delete(id)
	return s.StreamService.UpdateStatus(ctx, actor, id, status)
}

func (s *CachedStreamService) DeleteStream(ctx context.Context, actor domain.Actor, id domain.StreamID) error {
	defer s.cache.Delete(id)
	return s.StreamService.DeleteStream(ctx, actor, id)
}

func (s *CachedStreamService) HandleIngestEvent(ctx context.Context, streamKey string, started bool) (*domain.Stream, error) {
	stream, err := s.StreamService.HandleIngestEvent(ctx, streamKey, started)
	if stream != nil {
		s.cache.Delete(stream.ID)
	}
	return stream, err
}

func (s *CachedStreamService) Stop() {
	s.cache.Stop()
}
