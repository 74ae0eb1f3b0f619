// Package validation contains input validation rules for accounts.
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"tidepool/internal/models"
)

const (
	// MinPasswordLength is the minimum accepted password length.
	MinPasswordLength = 6
	// MaxPasswordLength caps passwords so bcrypt never silently
	// truncates the input.
	MaxPasswordLength = 72

	// MaxEmailLength is the RFC 5321 limit on a full address.
	MaxEmailLength = 254
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,30}$`)

// ValidatePassword checks password length bounds. Failures are
// validation errors and map to 400.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return models.NewValidationError(
			fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordLength {
		return models.NewValidationError(
			fmt.Sprintf("Password must be at most %d characters", MaxPasswordLength))
	}
	return nil
}

// ValidateUsername checks username format: 3-30 characters, letters,
// digits, underscores and hyphens, not starting or ending with a
// separator.
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return models.NewValidationError(
			"Username must be 3-30 characters and contain only letters, numbers, underscores, and hyphens")
	}
	if strings.HasPrefix(username, "-") || strings.HasPrefix(username, "_") ||
		strings.HasSuffix(username, "-") || strings.HasSuffix(username, "_") {
		return models.NewValidationError("Username cannot start or end with a separator")
	}
	return nil
}

// ValidateEmail checks that the address parses and fits the length
// limit. Addresses are stored lowercase; callers normalize before
// persisting.
func ValidateEmail(email string) error {
	if len(email) > MaxEmailLength {
		return models.NewValidationError(
			fmt.Sprintf("Email must be at most %d characters", MaxEmailLength))
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return models.NewValidationError("Invalid email address")
	}
	return nil
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
