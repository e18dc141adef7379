package services

import (
	"context"
	"fmt"
	"time"

	"vlsnet/internal/core/ports"
)

const (
	failedAttemptsPrefix = "failed_attempts:"
	lockoutPrefix        = "lockout:"
)

type LockoutPolicy struct {
	MaxFailedAttempts int
	// Window bounds the failure counter, measured from the first failure.
	Window   time.Duration
	Duration time.Duration
}

func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxFailedAttempts: 5,
		Window:            15 * time.Minute,
		Duration:          15 * time.Minute,
	}
}

type lockoutService struct {
	store  ports.KeyValueStore
	policy LockoutPolicy
}

func NewLockoutService(store ports.KeyValueStore, policy LockoutPolicy) ports.LockoutService {
	def := DefaultLockoutPolicy()
	if policy.MaxFailedAttempts <= 0 {
		policy.MaxFailedAttempts = def.MaxFailedAttempts
	}
	if policy.Window <= 0 {
		policy.Window = def.Window
	}
	if policy.Duration <= 0 {
		policy.Duration = def.Duration
	}
	return &lockoutService{store: store, policy: policy}
}

func (s *lockoutService) IsLocked(ctx context.Context, email string) (bool, error) {
	locked, err := s.store.Exists(ctx, lockoutPrefix+email)
	if err != nil {
		return false, fmt.Errorf("check lockout: %w", err)
	}
	return locked, nil
}

// RecordFailure counts one failed login. Reaching the threshold sets the
// lockout flag and clears the counter.
func (s *lockoutService) RecordFailure(ctx context.Context, email string) (bool, error) {
	counterKey := failedAttemptsPrefix + email

	attempts, err := s.store.IncrWithTTL(ctx, counterKey, s.policy.Window)
	if err != nil {
		return false, fmt.Errorf("increment failed attempts: %w", err)
	}

	if attempts < int64(s.policy.MaxFailedAttempts) {
		return false, nil
	}

	if err := s.store.Set(ctx, lockoutPrefix+email, "1", s.policy.Duration); err != nil {
		return false, fmt.Errorf("set lockout: %w", err)
	}
	if err := s.store.Delete(ctx, counterKey); err != nil {
		return true, fmt.Errorf("clear failed attempts: %w", err)
	}
	return true, nil
}

// Reset clears both the counter and the lockout flag.
func (s *lockoutService) Reset(ctx context.Context, email string) error {
	if err := s.store.Delete(ctx, failedAttemptsPrefix+email, lockoutPrefix+email); err != nil {
		return fmt.Errorf("reset lockout: %w", err)
	}
	return nil
}
