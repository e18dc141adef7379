package domain

import (
	"errors"
	"strings"
)

var (
	ErrInvalidInput = errors.New("invalid input")

	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrRefreshTokenInvalid = errors.New("refresh token invalid or expired")

	ErrAccountLocked = errors.New("account temporarily locked")

	ErrForbidden = errors.New("forbidden")

	ErrStreamNotFound     = errors.New("stream not found")
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrModerationNotFound = errors.New("moderation record not found")

	ErrEmailTaken       = errors.New("email already registered")
	ErrStreamKeyTaken   = errors.New("stream key already in use")
	ErrMessageDropped   = errors.New("message dropped by moderation")
	ErrInvalidChatInput = errors.New("invalid chat message")
)

// Password rule names, in evaluation order.
const (
	RuleMinLength = "min_length"
	RuleUppercase = "uppercase"
	RuleLowercase = "lowercase"
	RuleDigit     = "digit"
	RuleSpecial   = "special"
)

// PasswordPolicyError lists every complexity rule a candidate password broke.
type PasswordPolicyError struct {
	Violations []string
}

func (e *PasswordPolicyError) Error() string {
	return "password policy violated: " + strings.Join(e.Violations, ", ")
}

// Is lets errors.Is(err, ErrInvalidInput) match policy failures.
func (e *PasswordPolicyError) Is(target error) bool {
	return target == ErrInvalidInput
}
