package services

import (
	"context"
	"errors"
	"testing"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"
	"vlsnet/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type failingModerationRepo struct{}

func (failingModerationRepo) Get(context.Context, domain.StreamID, domain.UserID) (*domain.ModerationRecord, error) {
	return nil, errors.New("connection refused")
}

func (failingModerationRepo) Upsert(context.Context, *domain.ModerationRecord) error {
	return errors.New("connection refused")
}

var (
	streamOwner = domain.Actor{ID: 1, Email: "owner@x.com", Role: domain.RoleStreamer}
	otherUser   = domain.Actor{ID: 2, Email: "other@x.com", Role: domain.RoleStreamer}
	adminUser   = domain.Actor{ID: 3, Email: "admin@x.com", Role: domain.RoleAdmin}
)

func seedStream(t *testing.T, repo ports.StreamRepository, owner domain.UserID) *domain.Stream {
	t.Helper()
	stream := &domain.Stream{Title: "test", Status: domain.StreamLive, OwnerID: owner, StreamKey: "key-" + owner.String(), IsPublic: true}
	require.NoError(t, repo.Create(context.Background(), stream))
	return stream
}

func boolPtr(b bool) *bool { return &b }

func TestModerationService_Verdicts(t *testing.T) {
	streams := memory.NewMemoryStreamRepository()
	svc := NewModerationService(memory.NewMemoryModerationRepository(), streams, zaptest.NewLogger(t).Sugar())
	ctx := context.Background()
	stream := seedStream(t, streams, streamOwner.ID)

	verdict, err := svc.CheckMessage(ctx, stream.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictAllow, verdict)

	_, err = svc.SetModeration(ctx, streamOwner, stream.ID, 10, domain.ModerationUpdate{IsMuted: boolPtr(true)})
	require.NoError(t, err)

	verdict, err = svc.CheckMessage(ctx, stream.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictMuted, verdict)

	verdict, err = svc.CheckAdmission(ctx, stream.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictAllow, verdict, "muted users may still connect")

	_, err = svc.SetModeration(ctx, adminUser, stream.ID, 10, domain.ModerationUpdate{IsBanned: boolPtr(true)})
	require.NoError(t, err)

	verdict, err = svc.CheckMessage(ctx, stream.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictBanned, verdict, "ban wins over mute")

	verdict, err = svc.CheckAdmission(ctx, stream.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictBanned, verdict)

	// moderation is per stream
	verdict, err = svc.CheckMessage(ctx, stream.ID+1, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictAllow, verdict)
}

func TestModerationService_PartialUpdates(t *testing.T) {
	streams := memory.NewMemoryStreamRepository()
	svc := NewModerationService(memory.NewMemoryModerationRepository(), streams, zaptest.NewLogger(t).Sugar())
	ctx := context.Background()
	stream := seedStream(t, streams, streamOwner.ID)

	rec, err := svc.GetModeration(ctx, streamOwner, stream.ID, 20)
	require.NoError(t, err)
	assert.False(t, rec.IsMuted)
	assert.False(t, rec.IsBanned)

	rec, err = svc.SetModeration(ctx, streamOwner, stream.ID, 20, domain.ModerationUpdate{IsMuted: boolPtr(true), IsBanned: boolPtr(true)})
	require.NoError(t, err)
	firstID := rec.ID

	rec, err = svc.SetModeration(ctx, streamOwner, stream.ID, 20, domain.ModerationUpdate{IsBanned: boolPtr(false)})
	require.NoError(t, err)
	assert.True(t, rec.IsMuted)
	assert.False(t, rec.IsBanned)
	assert.Equal(t, firstID, rec.ID, "one record per stream and user")
}

func TestModerationService_Authorization(t *testing.T) {
	streams := memory.NewMemoryStreamRepository()
	svc := NewModerationService(memory.NewMemoryModerationRepository(), streams, zaptest.NewLogger(t).Sugar())
	ctx := context.Background()
	stream := seedStream(t, streams, streamOwner.ID)

	_, err := svc.SetModeration(ctx, otherUser, stream.ID, 10, domain.ModerationUpdate{IsMuted: boolPtr(true)})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.GetModeration(ctx, otherUser, stream.ID, 10)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.SetModeration(ctx, streamOwner, 999, 10, domain.ModerationUpdate{IsMuted: boolPtr(true)})
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
}

func TestModerationService_FailsClosed(t *testing.T) {
	svc := NewModerationService(failingModerationRepo{}, memory.NewMemoryStreamRepository(), zaptest.NewLogger(t).Sugar())

	verdict, err := svc.CheckMessage(context.Background(), 1, 10)
	assert.Error(t, err)
	assert.Equal(t, domain.VerdictBanned, verdict)

	verdict, err = svc.CheckAdmission(context.Background(), 1, 10)
	assert.Error(t, err)
	assert.Equal(t, domain.VerdictBanned, verdict)
}
