package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"
	"vlsnet/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
)

const (
	refreshTokenPrefix = "refresh_token:"
	refreshTokenBytes  = 32
)

type accessClaims struct {
	UserID    domain.UserID `json:"uid"`
	Role      domain.Role   `json:"role"`
	Superuser bool          `json:"su,omitempty"`
	jwt.RegisteredClaims
}

type tokenService struct {
	jwtSecret       []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	store           ports.KeyValueStore
	now             func() time.Time
}

func NewTokenService(
	jwtSecret string,
	accessTokenTTL time.Duration,
	refreshTokenTTL time.Duration,
	store ports.KeyValueStore,
) ports.TokenService {
	return &tokenService{
		jwtSecret:       []byte(jwtSecret),
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
		store:           store,
		now:             time.Now,
	}
}

// IssueAccessToken signs an HS256 token for identity; ttl <= 0 uses the
// configured default.
func (s *tokenService) IssueAccessToken(identity *domain.Identity, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.accessTokenTTL
	}
	now := s.now()
	claims := &accessClaims{
		UserID:    identity.ID,
		Role:      identity.Role,
		Superuser: identity.IsSuperuser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Email,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken returns only domain.ErrExpiredToken or domain.ErrInvalidToken on failure.
func (s *tokenService) VerifyAccessToken(tokenString string) (*domain.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &accessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return s.jwtSecret, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrExpiredToken
		}
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*accessClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, domain.ErrInvalidToken
	}

	out := &domain.Claims{
		Subject:   claims.Subject,
		UserID:    claims.UserID,
		Role:      claims.Role,
		Superuser: claims.Superuser,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// IssueRefreshToken stores an opaque token mapped to email for the refresh TTL.
func (s *tokenService) IssueRefreshToken(ctx context.Context, email string) (string, error) {
	token, err := utils.RandomToken(refreshTokenBytes)
	if err != nil {
		return "", err
	}
	if err := s.store.Set(ctx, refreshTokenPrefix+token, email, s.refreshTokenTTL); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return token, nil
}

// RedeemRefreshToken resolves the email behind token. The token stays valid
// until it is revoked or expires.
func (s *tokenService) RedeemRefreshToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", domain.ErrRefreshTokenInvalid
	}
	email, err := s.store.Get(ctx, refreshTokenPrefix+token)
	if err != nil {
		if errors.Is(err, ports.ErrKeyNotFound) {
			return "", domain.ErrRefreshTokenInvalid
		}
		return "", fmt.Errorf("load refresh token: %w", err)
	}
	return email, nil
}

// RevokeRefreshToken is idempotent.
func (s *tokenService) RevokeRefreshToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.store.Delete(ctx, refreshTokenPrefix+token); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}
