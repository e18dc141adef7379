package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate applies the bootstrap schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email TEXT NOT NULL,
			hashed_password TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'viewer',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT users_email_key UNIQUE (email)
		)`,
		`CREATE TABLE IF NOT EXISTS streams (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'scheduled',
			start_time TIMESTAMPTZ,
			end_time TIMESTAMPTZ,
			stream_key TEXT NOT NULL,
			owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			is_public BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT streams_stream_key_key UNIQUE (stream_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_streams_owner ON streams(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_streams_status_created ON streams(status, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id BIGSERIAL PRIMARY KEY,
			stream_id BIGINT NOT NULL REFERENCES streams(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			content VARCHAR(1000) NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_stream_id ON chat_messages(stream_id, id DESC)`,
		`CREATE TABLE IF NOT EXISTS chat_bans (
			id BIGSERIAL PRIMARY KEY,
			stream_id BIGINT NOT NULL REFERENCES streams(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			is_muted BOOLEAN NOT NULL DEFAULT FALSE,
			is_banned BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT uq_chat_ban_stream_user UNIQUE (stream_id, user_id)
		)`,
	}

	for i, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
