package postgres

import (
	"context"
	"fmt"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ModerationRepository struct {
	pool *pgxpool.Pool
}

func NewModerationRepository(pool *pgxpool.Pool) ports.ModerationRepository {
	return &ModerationRepository{pool: pool}
}

func (r *ModerationRepository) Get(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (*domain.ModerationRecord, error) {
	var rec domain.ModerationRecord
	err := r.pool.QueryRow(ctx,
		`SELECT id, stream_id, user_id, is_muted, is_banned, created_at
		 FROM chat_bans WHERE stream_id = $1 AND user_id = $2`,
		int64(streamID), int64(userID),
	).Scan(&rec.ID, &rec.StreamID, &rec.UserID, &rec.IsMuted, &rec.IsBanned, &rec.CreatedAt)
	if isNoRows(err) {
		return nil, domain.ErrModerationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chat ban: %w", err)
	}
	return &rec, nil
}

// Upsert relies on the (stream_id, user_id) unique constraint.
func (r *ModerationRepository) Upsert(ctx context.Context, rec *domain.ModerationRecord) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO chat_bans (stream_id, user_id, is_muted, is_banned)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT ON CONSTRAINT uq_chat_ban_stream_user
		 DO UPDATE SET is_muted = EXCLUDED.is_muted, is_banned = EXCLUDED.is_banned
		 RETURNING id, created_at`,
		int64(rec.StreamID), int64(rec.UserID), rec.IsMuted, rec.IsBanned,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert chat ban: %w", err)
	}
	return nil
}
