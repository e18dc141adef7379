package postgres

import (
	"context"
	"fmt"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"
	"vlsnet/pkg/tracing"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ChatMessageRepository struct {
	pool *pgxpool.Pool
}

func NewChatMessageRepository(pool *pgxpool.Pool) ports.ChatMessageRepository {
	return &ChatMessageRepository{pool: pool}
}

func (r *ChatMessageRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "insert", "chat_messages")
	defer span.End()

	err := r.pool.QueryRow(ctx,
		`INSERT INTO chat_messages (stream_id, user_id, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, timestamp, is_deleted`,
		int64(msg.StreamID), int64(msg.UserID), msg.Content,
	).Scan(&msg.ID, &msg.Timestamp, &msg.IsDeleted)
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

func (r *ChatMessageRepository) ListRecent(ctx context.Context, streamID domain.StreamID, limit int) ([]*domain.ChatMessage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, stream_id, user_id, content, timestamp, is_deleted FROM (
			SELECT id, stream_id, user_id, content, timestamp, is_deleted
			FROM chat_messages
			WHERE stream_id = $1 AND NOT is_deleted
			ORDER BY id DESC
			LIMIT $2
		) recent ORDER BY id ASC`,
		int64(streamID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var out []*domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.StreamID, &m.UserID, &m.Content, &m.Timestamp, &m.IsDeleted); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	return out, nil
}
