package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	EmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// StreamKeyRegex matches URL-safe base64 without padding.
	StreamKeyRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

const (
	MaxEmailLength       = 254
	MaxStreamTitle       = 255
	MaxStreamDescription = 2000
	MaxStreamKeyLength   = 128
)

func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > MaxEmailLength {
		return fmt.Errorf("email is too long (max %d characters)", MaxEmailLength)
	}
	if !EmailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

func ValidateStreamTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title is required")
	}
	if !utf8.ValidString(title) {
		return fmt.Errorf("title contains invalid characters")
	}
	return ValidateStringLength(title, 1, MaxStreamTitle, "title")
}

func ValidateStreamDescription(description string) error {
	return ValidateStringLength(description, 0, MaxStreamDescription, "description")
}

// ValidateStreamKey checks the shape of a key received from the ingest server.
func ValidateStreamKey(key string) error {
	if key == "" {
		return fmt.Errorf("stream key is required")
	}
	if len(key) > MaxStreamKeyLength {
		return fmt.Errorf("stream key is too long (max %d characters)", MaxStreamKeyLength)
	}
	if !StreamKeyRegex.MatchString(key) {
		return fmt.Errorf("invalid stream key format")
	}
	return nil
}

// ValidateStringLength counts runes, not bytes.
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
