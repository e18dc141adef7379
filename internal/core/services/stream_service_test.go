package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"
	"vlsnet/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestStreamService(t *testing.T) (*streamService, ports.StreamRepository, *testClock) {
	t.Helper()
	repo := memory.NewMemoryStreamRepository()
	svc := NewStreamService(repo, StreamURLConfig{
		IngestBaseURL:   "rtmp://ingest.local/live/",
		PlaybackBaseURL: "https://cdn.local/hls",
	}, zaptest.NewLogger(t).Sugar()).(*streamService)
	clock := &testClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	svc.now = clock.Now
	return svc, repo, clock
}

func TestStreamService_Create(t *testing.T) {
	svc, _, clock := newTestStreamService(t)
	ctx := context.Background()

	stream, err := svc.CreateStream(ctx, streamOwner, "  Morning show ", "coffee", true)
	require.NoError(t, err)
	assert.NotZero(t, stream.ID)
	assert.Equal(t, "Morning show", stream.Title)
	assert.Equal(t, domain.StreamScheduled, stream.Status)
	assert.Equal(t, streamOwner.ID, stream.OwnerID)
	assert.Len(t, stream.StreamKey, 43)
	assert.Equal(t, clock.now, stream.CreatedAt)

	other, err := svc.CreateStream(ctx, adminUser, "Admin show", "", false)
	require.NoError(t, err)
	assert.NotEqual(t, stream.StreamKey, other.StreamKey)

	_, err = svc.CreateStream(ctx, chatter, "viewer show", "", true)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.CreateStream(ctx, streamOwner, "   ", "", true)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStreamService_OwnershipAndUpdates(t *testing.T) {
	svc, _, _ := newTestStreamService(t)
	ctx := context.Background()

	stream, err := svc.CreateStream(ctx, streamOwner, "Show", "", true)
	require.NoError(t, err)

	title := "Renamed"
	_, err = svc.UpdateStream(ctx, otherUser, stream.ID, domain.StreamUpdate{Title: &title})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	updated, err := svc.UpdateStream(ctx, adminUser, stream.ID, domain.StreamUpdate{Title: &title, IsPublic: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.False(t, updated.IsPublic)

	bogus := domain.StreamStatus("paused")
	_, err = svc.UpdateStream(ctx, streamOwner, stream.ID, domain.StreamUpdate{Status: &bogus})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.IngestURL(ctx, otherUser, stream.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	assert.ErrorIs(t, svc.DeleteStream(ctx, otherUser, stream.ID), domain.ErrForbidden)
	require.NoError(t, svc.DeleteStream(ctx, streamOwner, stream.ID))
	_, err = svc.GetStream(ctx, stream.ID)
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
}

func TestStreamService_StatusTimestamps(t *testing.T) {
	svc, _, clock := newTestStreamService(t)
	ctx := context.Background()

	stream, err := svc.CreateStream(ctx, streamOwner, "Show", "", true)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	live, err := svc.UpdateStatus(ctx, streamOwner, stream.ID, domain.StreamLive)
	require.NoError(t, err)
	require.NotNil(t, live.StartTime)
	startedAt := *live.StartTime
	assert.Equal(t, clock.now, startedAt)

	// repeating the same status keeps the original start time
	clock.Advance(time.Minute)
	live, err = svc.UpdateStatus(ctx, streamOwner, stream.ID, domain.StreamLive)
	require.NoError(t, err)
	assert.Equal(t, startedAt, *live.StartTime)

	clock.Advance(time.Minute)
	ended, err := svc.UpdateStatus(ctx, streamOwner, stream.ID, domain.StreamEnded)
	require.NoError(t, err)
	require.NotNil(t, ended.EndTime)
	assert.Equal(t, clock.now, *ended.EndTime)

	_, err = svc.UpdateStatus(ctx, streamOwner, stream.ID, "offline")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStreamService_URLsAndIngestEvents(t *testing.T) {
	svc, _, _ := newTestStreamService(t)
	ctx := context.Background()

	stream, err := svc.CreateStream(ctx, streamOwner, "Show", "", true)
	require.NoError(t, err)

	ingest, err := svc.IngestURL(ctx, streamOwner, stream.ID)
	require.NoError(t, err)
	assert.Equal(t, "rtmp://ingest.local/live/"+stream.StreamKey, ingest)

	playback, err := svc.PlaybackURL(ctx, stream.ID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("https://cdn.local/hls/%d.m3u8", stream.ID), playback)
	assert.NotContains(t, playback, stream.StreamKey)

	live, err := svc.HandleIngestEvent(ctx, stream.StreamKey, true)
	require.NoError(t, err)
	assert.Equal(t, domain.StreamLive, live.Status)

	ended, err := svc.HandleIngestEvent(ctx, stream.StreamKey, false)
	require.NoError(t, err)
	assert.Equal(t, domain.StreamEnded, ended.Status)

	_, err = svc.HandleIngestEvent(ctx, "does-not-exist", true)
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
	_, err = svc.HandleIngestEvent(ctx, "bad key!", true)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStreamService_ListFilters(t *testing.T) {
	svc, _, clock := newTestStreamService(t)
	ctx := context.Background()

	first, err := svc.CreateStream(ctx, streamOwner, "First", "", true)
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = svc.CreateStream(ctx, adminUser, "Second", "", false)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, streamOwner, first.ID, domain.StreamLive)
	require.NoError(t, err)

	all, err := svc.ListStreams(ctx, domain.StreamFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Second", all[0].Title, "newest first")

	live, err := svc.ListStreams(ctx, domain.StreamFilter{Status: domain.StreamLive})
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, first.ID, live[0].ID)

	owned, err := svc.ListStreams(ctx, domain.StreamFilter{OwnerID: adminUser.ID})
	require.NoError(t, err)
	assert.Len(t, owned, 1)

	_, err = svc.ListStreams(ctx, domain.StreamFilter{Status: "paused"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
