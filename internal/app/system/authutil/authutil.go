// Package authutil handles password hashing, validation rules, and
// temporary-password generation.
package authutil

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for password hashes.
const BcryptCost = 10

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword enforces the minimum password rules.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// PasswordRules returns the rules text shown to users.
func PasswordRules() string {
	return fmt.Sprintf("At least %d characters.", MinPasswordLength)
}

// tempPasswordAlphabet avoids ambiguous characters (0/O, 1/l/I).
const tempPasswordAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateTempPassword creates a random temporary password of the given
// length for accounts provisioned during application approval.
func GenerateTempPassword(length int) (string, error) {
	if length < MinPasswordLength {
		length = 12
	}
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", errors.New("generate temp password: random source unavailable")
	}
	for i := range b {
		b[i] = tempPasswordAlphabet[int(b[i])%len(tempPasswordAlphabet)]
	}
	return string(b), nil
}
