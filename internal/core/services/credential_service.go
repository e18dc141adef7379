package services

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8

	PasswordSpecialChars = `!@#$%^&*(),.?":{}|<>`
)

type credentialService struct {
	cost int
}

// NewCredentialService hashes with the given bcrypt cost; out-of-range costs
// fall back to bcrypt.DefaultCost.
func NewCredentialService(cost int) ports.CredentialService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &credentialService{cost: cost}
}

// prehash digests the password to 44 bytes so bcrypt's 72 byte input limit
// never truncates or rejects a long password.
func prehash(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}

func (s *credentialService) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(prehash(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *credentialService) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), prehash(password)) == nil
}

// ValidateComplexity reports every violated rule at once, in the order
// min_length, uppercase, lowercase, digit, special. Letter and digit classes
// are ASCII only.
func (s *credentialService) ValidateComplexity(password string) error {
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(PasswordSpecialChars, r):
			special = true
		}
	}

	var violations []string
	if utf8.RuneCountInString(password) < MinPasswordLength {
		violations = append(violations, domain.RuleMinLength)
	}
	if !upper {
		violations = append(violations, domain.RuleUppercase)
	}
	if !lower {
		violations = append(violations, domain.RuleLowercase)
	}
	if !digit {
		violations = append(violations, domain.RuleDigit)
	}
	if !special {
		violations = append(violations, domain.RuleSpecial)
	}

	if len(violations) > 0 {
		return &domain.PasswordPolicyError{Violations: violations}
	}
	return nil
}
