package services

import (
	"context"
	"testing"
	"time"

	"vlsnet/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedStreamService_InvalidatesOnWrites(t *testing.T) {
	base, repo, _ := newTestStreamService(t)
	svc := NewCachedStreamService(base, time.Minute)
	t.Cleanup(svc.Stop)
	ctx := context.Background()

	stream, err := svc.CreateStream(ctx, streamOwner, "Cached", "", true)
	require.NoError(t, err)

	got, err := svc.GetStream(ctx, stream.ID)
	require.NoError(t, err)
	got.Title = "mutated by caller"

	// a direct repository write is hidden until the entry is invalidated
	stored, err := repo.GetByID(ctx, stream.ID)
	require.NoError(t, err)
	stored.Title = "changed underneath"
	require.NoError(t, repo.Update(ctx, stored))

	got, err = svc.GetStream(ctx, stream.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cached", got.Title)

	_, err = svc.UpdateStatus(ctx, streamOwner, stream.ID, domain.StreamLive)
	require.NoError(t, err)
	got, err = svc.GetStream(ctx, stream.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StreamLive, got.Status)
	assert.Equal(t, "changed underneath", got.Title)

	_, err = svc.HandleIngestEvent(ctx, stream.StreamKey, false)
	require.NoError(t, err)
	got, err = svc.GetStream(ctx, stream.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StreamEnded, got.Status)

	require.NoError(t, svc.DeleteStream(ctx, streamOwner, stream.ID))
	_, err = svc.GetStream(ctx, stream.ID)
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
}
