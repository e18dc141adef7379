package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"
	"vlsnet/pkg/tracing"
	"vlsnet/pkg/utils"
	"vlsnet/pkg/validation"

	"go.uber.org/zap"
)

// Audit event names written under the "auth_event" log message.
const (
	EventRegisterSuccess  = "register_success"
	EventRegisterFailed   = "register_failed"
	EventLoginSuccess     = "login_success"
	EventLoginFailed      = "login_failed"
	EventLoginLockout     = "login_lockout"
	EventLockoutTriggered = "lockout_triggered"
	EventRefreshToken     = "refresh_token"
	EventRefreshFailed    = "refresh_failed"
	EventLogout           = "logout"
)

type authService struct {
	identities  ports.IdentityRepository
	credentials ports.CredentialService
	tokens      ports.TokenService
	lockout     ports.LockoutService
	metrics     ports.AuthMetrics
	logger      *zap.SugaredLogger

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(
	identities ports.IdentityRepository,
	credentials ports.CredentialService,
	tokens ports.TokenService,
	lockout ports.LockoutService,
	metrics ports.AuthMetrics,
	logger *zap.SugaredLogger,
) ports.AuthService {
	if metrics == nil {
		metrics = NopMetrics
	}
	return &authService{
		identities:  identities,
		credentials: credentials,
		tokens:      tokens,
		lockout:     lockout,
		metrics:     metrics,
		logger:      logger,
	}
}

func (s *authService) Register(ctx context.Context, email, password string, role domain.Role) (*domain.TokenPair, error) {
	email = utils.NormalizeEmail(email)

	if err := validation.ValidateEmail(email); err != nil {
		s.audit(EventRegisterFailed, email, err.Error())
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if role == "" {
		role = domain.RoleViewer
	}
	if !role.Valid() {
		s.audit(EventRegisterFailed, email, "unknown role")
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, role)
	}
	if role == domain.RoleAdmin {
		s.audit(EventRegisterFailed, email, "admin self-registration")
		return nil, domain.ErrForbidden
	}
	if err := s.credentials.ValidateComplexity(password); err != nil {
		s.audit(EventRegisterFailed, email, err.Error())
		return nil, err
	}

	if _, err := s.identities.GetByEmail(ctx, email); err == nil {
		s.audit(EventRegisterFailed, email, "email already registered")
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrIdentityNotFound) {
		return nil, err
	}

	hash, err := s.credentials.Hash(password)
	if err != nil {
		return nil, err
	}

	identity := &domain.Identity{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		s.audit(EventRegisterFailed, email, err.Error())
		return nil, err
	}

	pair, err := s.issuePair(ctx, identity)
	if err != nil {
		return nil, err
	}
	s.audit(EventRegisterSuccess, email, "")
	return pair, nil
}

// Login checks the lockout flag before touching the password hash. Unknown
// emails and wrong passwords both count as failures.
func (s *authService) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	ctx, span := tracing.TraceAuthOperation(ctx, "login")
	defer span.End()

	email = utils.NormalizeEmail(email)

	locked, err := s.lockout.IsLocked(ctx, email)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	if locked {
		s.metrics.LoginOutcome("locked")
		s.audit(EventLoginLockout, email, "account locked")
		return nil, domain.ErrAccountLocked
	}

	identity, err := s.identities.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrIdentityNotFound):
		// keep the bcrypt cost on the unknown-email path
		s.credentials.Verify(password, s.placeholderHash())
		return nil, s.recordFailure(ctx, email, "unknown email")
	case err != nil:
		tracing.RecordError(ctx, err)
		return nil, err
	}

	if !s.credentials.Verify(password, identity.PasswordHash) {
		return nil, s.recordFailure(ctx, email, "invalid password")
	}
	if !identity.IsActive {
		s.metrics.LoginOutcome("inactive")
		s.audit(EventLoginFailed, email, "identity inactive")
		return nil, domain.ErrInvalidCredentials
	}

	if err := s.lockout.Reset(ctx, email); err != nil {
		s.logger.Warnw("failed to reset lockout state", "email", email, "error", err)
	}

	pair, err := s.issuePair(ctx, identity)
	if err != nil {
		return nil, err
	}
	s.metrics.LoginOutcome("success")
	s.audit(EventLoginSuccess, email, "")
	return pair, nil
}

// Refresh mints a new access token; the refresh token itself is not rotated.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*domain.AccessTokenResponse, error) {
	email, err := s.tokens.RedeemRefreshToken(ctx, refreshToken)
	if err != nil {
		s.audit(EventRefreshFailed, "", err.Error())
		return nil, err
	}

	identity, err := s.identities.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrIdentityNotFound) || (err == nil && !identity.IsActive) {
		s.audit(EventRefreshFailed, email, "identity unavailable")
		return nil, domain.ErrRefreshTokenInvalid
	}
	if err != nil {
		return nil, err
	}

	access, err := s.tokens.IssueAccessToken(identity, 0)
	if err != nil {
		return nil, err
	}
	s.audit(EventRefreshToken, email, "")
	return &domain.AccessTokenResponse{AccessToken: access, TokenType: domain.TokenTypeBearer}, nil
}

// Logout rejects unknown tokens before revoking.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	email, err := s.tokens.RedeemRefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}
	if err := s.tokens.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return err
	}
	s.audit(EventLogout, email, "")
	return nil
}

func (s *authService) Me(ctx context.Context, claims *domain.Claims) (*domain.Identity, error) {
	if claims == nil {
		return nil, domain.ErrInvalidToken
	}
	var (
		identity *domain.Identity
		err      error
	)
	if claims.UserID != 0 {
		identity, err = s.identities.GetByID(ctx, claims.UserID)
	} else {
		identity, err = s.identities.GetByEmail(ctx, claims.Subject)
	}
	if err != nil {
		return nil, err
	}
	if !identity.IsActive {
		return nil, domain.ErrInvalidCredentials
	}
	return identity, nil
}

func (s *authService) recordFailure(ctx context.Context, email, detail string) error {
	s.metrics.LoginOutcome("failure")
	s.audit(EventLoginFailed, email, detail)

	lockedNow, err := s.lockout.RecordFailure(ctx, email)
	if err != nil {
		s.logger.Errorw("failed to record login failure", "email", email, "error", err)
		return err
	}
	if lockedNow {
		s.metrics.LockoutTriggered()
		s.audit(EventLockoutTriggered, email, "too many failed attempts")
	}
	return domain.ErrInvalidCredentials
}

func (s *authService) issuePair(ctx context.Context, identity *domain.Identity) (*domain.TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(identity, 0)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefreshToken(ctx, identity.Email)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:  access,
		TokenType:    domain.TokenTypeBearer,
		RefreshToken: refresh,
	}, nil
}

func (s *authService) placeholderHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.credentials.Hash("placeholder-password")
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

func (s *authService) audit(event, email, detail string) {
	s.logger.Infow("auth_event",
		"event", event,
		"email", email,
		"detail", detail,
	)
}
