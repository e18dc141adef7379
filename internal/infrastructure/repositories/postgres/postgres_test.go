package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"vlsnet/internal/core/domain"
	"vlsnet/pkg/retry"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB connects to TEST_PG_DSN, applies the schema and truncates all
// tables. Tests are skipped when the variable is unset.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := Connect(ctx, dsn, 4, retry.Config{MaxAttempts: 1}, nil)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	// running twice must be harmless
	require.NoError(t, Migrate(ctx, pool))

	_, err = pool.Exec(ctx, `TRUNCATE chat_bans, chat_messages, streams, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return pool
}

func seedIdentity(t *testing.T, repo *IdentityRepository, email string) *domain.Identity {
	t.Helper()
	id := &domain.Identity{Email: email, PasswordHash: "hash", Role: domain.RoleStreamer, IsActive: true}
	require.NoError(t, repo.Create(context.Background(), id))
	return id
}

func TestIdentityRepository(t *testing.T) {
	pool := setupTestDB(t)
	repo := &IdentityRepository{pool: pool}
	ctx := context.Background()

	id := seedIdentity(t, repo, "a@x.com")
	assert.NotZero(t, id.ID)

	assert.ErrorIs(t, repo.Create(ctx, &domain.Identity{Email: "a@x.com", PasswordHash: "h", Role: domain.RoleViewer}), domain.ErrEmailTaken)

	got, err := repo.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, id.ID, got.ID)
	assert.Equal(t, domain.RoleStreamer, got.Role)

	_, err = repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
}

func TestStreamAndModerationRepositories(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	owner := seedIdentity(t, &IdentityRepository{pool: pool}, "owner@x.com")
	viewer := seedIdentity(t, &IdentityRepository{pool: pool}, "viewer@x.com")

	streams := &StreamRepository{pool: pool}
	now := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 2; i++ {
		s := &domain.Stream{
			Title:     fmt.Sprintf("s%d", i),
			Status:    domain.StreamScheduled,
			StreamKey: fmt.Sprintf("key-%d", i),
			OwnerID:   owner.ID,
			IsPublic:  true,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
			UpdatedAt: now,
		}
		require.NoError(t, streams.Create(ctx, s))
	}
	assert.ErrorIs(t, streams.Create(ctx, &domain.Stream{Title: "dup", Status: domain.StreamScheduled, StreamKey: "key-0", OwnerID: owner.ID, CreatedAt: now, UpdatedAt: now}), domain.ErrStreamKeyTaken)

	list, err := streams.List(ctx, domain.StreamFilter{OwnerID: owner.ID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "s1", list[0].Title)

	live := list[1]
	live.Status = domain.StreamLive
	live.StartTime = &now
	require.NoError(t, streams.Update(ctx, live))

	byKey, err := streams.GetByKey(ctx, "key-0")
	require.NoError(t, err)
	assert.Equal(t, domain.StreamLive, byKey.Status)
	require.NotNil(t, byKey.StartTime)

	mods := &ModerationRepository{pool: pool}
	_, err = mods.Get(ctx, live.ID, viewer.ID)
	assert.ErrorIs(t, err, domain.ErrModerationNotFound)

	rec := &domain.ModerationRecord{StreamID: live.ID, UserID: viewer.ID, IsMuted: true}
	require.NoError(t, mods.Upsert(ctx, rec))
	first := rec.ID

	rec2 := &domain.ModerationRecord{StreamID: live.ID, UserID: viewer.ID, IsBanned: true}
	require.NoError(t, mods.Upsert(ctx, rec2))
	assert.Equal(t, first, rec2.ID)

	chat := &ChatMessageRepository{pool: pool}
	for i := 0; i < 3; i++ {
		msg := &domain.ChatMessage{StreamID: live.ID, UserID: viewer.ID, Content: fmt.Sprintf("m%d", i)}
		require.NoError(t, chat.Create(ctx, msg))
		assert.NotZero(t, msg.ID)
	}
	recent, err := chat.ListRecent(ctx, live.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "m1", recent[0].Content)
	assert.Equal(t, "m2", recent[1].Content)

	require.NoError(t, streams.Delete(ctx, live.ID))
	assert.ErrorIs(t, streams.Delete(ctx, live.ID), domain.ErrStreamNotFound)
}
