package security

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// ErrCodeMismatch is returned when a presented code does not match its hash.
var ErrCodeMismatch = errors.New("verification code mismatch")

const (
	minCodeDigits = 4
	maxCodeDigits = 10
)

// GenerateNumericCode returns a uniformly random decimal code with the given
// number of digits, left-padded with zeros.
func GenerateNumericCode(digits int) (string, error) {
	if digits < minCodeDigits || digits > maxCodeDigits {
		return "", fmt.Errorf("code length must be between %d and %d", minCodeDigits, maxCodeDigits)
	}

	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

// HashCode bcrypt-hashes a one-time code for storage.
func HashCode(code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("code cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash code: %w", err)
	}
	return string(hash), nil
}

// VerifyCode compares a presented code with its stored hash. A plain mismatch
// yields ErrCodeMismatch; malformed hashes surface as other errors.
func VerifyCode(code, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrCodeMismatch
	default:
		return fmt.Errorf("compare code: %w", err)
	}
}
