package helpers

import (
	"errors"
	"regexp"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// Hasher wraps bcrypt with a configurable cost factor. The cost comes from
// configuration at process start, never from ambient state.
type Hasher struct {
	Cost int
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{Cost: cost}
}

// bcrypt reads at most 72 bytes of input and rejects anything longer.
// The account policy accepts up to 128 characters, so longer passwords are
// truncated to the bcrypt window instead of surfacing an internal error.
func bcryptInput(plain string) []byte {
	b := []byte(plain)
	if len(b) > 72 {
		b = b[:72]
	}
	return b
}

// Hash derives a salted bcrypt digest from the plain text password.
// Each call produces a different digest for the same input.
func (h *Hasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword(bcryptInput(plain), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Check compares a plain password against a bcrypt digest. Malformed digests
// yield false, never a panic or error.
func (h *Hasher) Check(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(plain)) == nil
}

var (
	hasLetter = regexp.MustCompile(`[A-Za-z]`)
	hasDigit  = regexp.MustCompile(`[0-9]`)
)

// ValidatePassword enforces the account password policy: 8-128 characters
// with at least one letter and one digit. Lengths count characters, not
// bytes, so multibyte passwords are measured the way callers see them.
func ValidatePassword(plain string) error {
	n := utf8.RuneCountInString(plain)
	if n < 8 {
		return errors.New("must be at least 8 characters long")
	}
	if n > 128 {
		return errors.New("must be at most 128 characters long")
	}
	if !hasLetter.MatchString(plain) {
		return errors.New("must contain at least one letter")
	}
	if !hasDigit.MatchString(plain) {
		return errors.New("must contain at least one digit")
	}
	return nil
}
