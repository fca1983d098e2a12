// Package auth: password hashing for local (email + password) accounts.
//
// Local accounts sit next to GitHub sign-in. Their passwords are stored
// only as bcrypt hashes:
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (12 rounds → 2^12 iterations)
//	 version
//
// The salt travels inside the hash, so the credentials table needs a single
// password_hash column.
package auth

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor for production hashing.
const defaultCost = 12

const (
	// MinPasswordLength is counted in characters, not bytes.
	MinPasswordLength = 8
	// MaxPasswordBytes is bcrypt's input limit. Longer inputs are rejected
	// rather than silently truncated.
	MaxPasswordBytes = 72
)

var (
	// ErrInvalidPassword is returned by Verify when the password does not match.
	ErrInvalidPassword = errors.New("auth: invalid password")
	// ErrWeakPassword is returned by CheckPolicy and Hash for passwords that
	// are too short or too long.
	ErrWeakPassword = errors.New("auth: password does not meet policy")
)

// PasswordService provides bcrypt hashing and verification.
// The cost is a field so tests can run at bcrypt.MinCost.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with the given cost.
// Other packages pass bcrypt.MinCost to keep their tests fast.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// CheckPolicy reports whether plaintext is acceptable as a new password.
func CheckPolicy(plaintext string) error {
	if utf8.RuneCountInString(plaintext) < MinPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, MinPasswordLength)
	}
	if len(plaintext) > MaxPasswordBytes {
		return fmt.Errorf("%w: must be %d bytes or fewer", ErrWeakPassword, MaxPasswordBytes)
	}
	return nil
}

// Hash checks the policy and hashes plaintext with bcrypt. The returned
// string is stored as is.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if err := CheckPolicy(plaintext); err != nil {
		return "", err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify returns nil when plaintext matches hash and ErrInvalidPassword when
// it does not. Any other error means the stored hash is unusable.
//
// bcrypt compares in constant time.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
