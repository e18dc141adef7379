package postgres

import (
	"context"
	"fmt"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type IdentityRepository struct {
	pool *pgxpool.Pool
}

func NewIdentityRepository(pool *pgxpool.Pool) ports.IdentityRepository {
	return &IdentityRepository{pool: pool}
}

const identityColumns = `id, email, hashed_password, role, is_active, is_superuser, created_at`

func (r *IdentityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, hashed_password, role, is_active, is_superuser)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		identity.Email, identity.PasswordHash, string(identity.Role), identity.IsActive, identity.IsSuperuser,
	).Scan(&identity.ID, &identity.CreatedAt)
	if isUniqueViolation(err, "users_email_key") {
		return domain.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *IdentityRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.Identity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM users WHERE id = $1`, int64(id))
	return scanIdentity(row)
}

func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM users WHERE email = $1`, email)
	return scanIdentity(row)
}

func scanIdentity(row pgx.Row) (*domain.Identity, error) {
	var (
		identity domain.Identity
		role     string
	)
	err := row.Scan(&identity.ID, &identity.Email, &identity.PasswordHash, &role,
		&identity.IsActive, &identity.IsSuperuser, &identity.CreatedAt)
	if isNoRows(err) {
		return nil, domain.ErrIdentityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	identity.Role = domain.Role(role)
	return &identity, nil
}
