package users

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/geoapp/geoapp-api/internal/platform/httpx"
)

// MinPasswordLength is the shortest credential accepted, in characters.
const MinPasswordLength = 6

// MaxPasswordBytes is the longest credential bcrypt can hash.
const MaxPasswordBytes = 72

// ErrPasswordPolicy is returned when a credential fails the policy.
var ErrPasswordPolicy = fmt.Errorf("password policy: %w", httpx.ErrValidation)

// NormalizeName returns the lookup key for usernames and role names.
func NormalizeName(name string) string {
	// A Caser is stateful; one per call.
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(name)))
}

// ValidatePassword enforces length plus upper, lower, digit and symbol classes.
func ValidatePassword(password string) error {
	var problems []string
	if len([]rune(password)) < MinPasswordLength {
		problems = append(problems, fmt.Sprintf("at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordBytes {
		problems = append(problems, fmt.Sprintf("at most %d bytes", MaxPasswordBytes))
	}
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r) && !unicode.IsSpace(r):
			symbol = true
		}
	}
	if !upper {
		problems = append(problems, "an uppercase letter")
	}
	if !lower {
		problems = append(problems, "a lowercase letter")
	}
	if !digit {
		problems = append(problems, "a digit")
	}
	if !symbol {
		problems = append(problems, "a non-alphanumeric character")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: requires %s", ErrPasswordPolicy, strings.Join(problems, ", "))
	}
	return nil
}

// HashPassword produces a bcrypt digest.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: at most %d bytes", ErrPasswordPolicy, MaxPasswordBytes)
	}
	if err != nil {
		return "", fmt.Errorf("users: hash password: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword reports whether password matches the digest.
func VerifyPassword(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("users: verify password: %w", err)
	}
}
