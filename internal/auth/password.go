// Package auth holds credential helpers shared by the server and the CLI.
package auth

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	maxLoginLength    = 60
)

var loginPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9._@-]*[a-z0-9])?$`)

// NormalizeLogin returns the canonical lowercase login and validates allowed characters.
func NormalizeLogin(raw string) (string, error) {
	login := strings.TrimSpace(strings.ToLower(raw))
	if login == "" {
		return "", fmt.Errorf("login is required")
	}
	if len(login) > maxLoginLength {
		return "", fmt.Errorf("login too long")
	}
	if !loginPattern.MatchString(login) {
		return "", fmt.Errorf("invalid login")
	}
	return login, nil
}

// ValidatePassword checks minimal password requirements.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

// HashPassword hashes one plaintext password for persistent storage.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword verifies plaintext password against a bcrypt hash.
func VerifyPassword(passwordHash, candidate string) bool {
	if strings.TrimSpace(passwordHash) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(candidate)) == nil
}
