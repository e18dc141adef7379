package postgres

import (
	"context"
	"fmt"
	"strings"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"
	"vlsnet/pkg/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StreamRepository struct {
	pool *pgxpool.Pool
}

func NewStreamRepository(pool *pgxpool.Pool) ports.StreamRepository {
	return &StreamRepository{pool: pool}
}

const streamColumns = `id, title, description, status, start_time, end_time, stream_key, owner_id, is_public, created_at, updated_at`

func (r *StreamRepository) Create(ctx context.Context, stream *domain.Stream) error {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "insert", "streams")
	defer span.End()

	err := r.pool.QueryRow(ctx,
		`INSERT INTO streams (title, description, status, start_time, end_time, stream_key, owner_id, is_public, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		stream.Title, stream.Description, string(stream.Status), stream.StartTime, stream.EndTime,
		stream.StreamKey, int64(stream.OwnerID), stream.IsPublic, stream.CreatedAt, stream.UpdatedAt,
	).Scan(&stream.ID)
	if isUniqueViolation(err, "streams_stream_key_key") {
		return domain.ErrStreamKeyTaken
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("insert stream: %w", err)
	}
	return nil
}

func (r *StreamRepository) GetByID(ctx context.Context, id domain.StreamID) (*domain.Stream, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+streamColumns+` FROM streams WHERE id = $1`, int64(id))
	return scanStream(row)
}

func (r *StreamRepository) GetByKey(ctx context.Context, streamKey string) (*domain.Stream, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+streamColumns+` FROM streams WHERE stream_key = $1`, streamKey)
	return scanStream(row)
}

func (r *StreamRepository) Update(ctx context.Context, stream *domain.Stream) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE streams
		 SET title = $2, description = $3, status = $4, start_time = $5, end_time = $6,
		     stream_key = $7, is_public = $8, updated_at = $9
		 WHERE id = $1`,
		int64(stream.ID), stream.Title, stream.Description, string(stream.Status), stream.StartTime,
		stream.EndTime, stream.StreamKey, stream.IsPublic, stream.UpdatedAt,
	)
	if isUniqueViolation(err, "streams_stream_key_key") {
		return domain.ErrStreamKeyTaken
	}
	if err != nil {
		return fmt.Errorf("update stream: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStreamNotFound
	}
	return nil
}

func (r *StreamRepository) Delete(ctx context.Context, id domain.StreamID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM streams WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("delete stream: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStreamNotFound
	}
	return nil
}

func (r *StreamRepository) List(ctx context.Context, filter domain.StreamFilter) ([]*domain.Stream, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.OwnerID != 0 {
		args = append(args, int64(filter.OwnerID))
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.IsPublic != nil {
		args = append(args, *filter.IsPublic)
		where = append(where, fmt.Sprintf("is_public = $%d", len(args)))
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + streamColumns + ` FROM streams`)
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC, id DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}
	defer rows.Close()

	var out []*domain.Stream
	for rows.Next() {
		stream, err := scanStream(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, stream)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}
	return out, nil
}

func scanStream(row pgx.Row) (*domain.Stream, error) {
	var (
		s      domain.Stream
		status string
	)
	err := row.Scan(&s.ID, &s.Title, &s.Description, &status, &s.StartTime, &s.EndTime,
		&s.StreamKey, &s.OwnerID, &s.IsPublic, &s.CreatedAt, &s.UpdatedAt)
	if isNoRows(err) {
		return nil, domain.ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan stream: %w", err)
	}
	s.Status = domain.StreamStatus(status)
	return &s, nil
}
