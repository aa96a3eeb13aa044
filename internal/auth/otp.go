package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// OTPLength is the number of digits in a generated one-time code.
const OTPLength = 6

// GenerateOTP returns a uniformly random 6-digit numeric code, zero-padded.
func GenerateOTP() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < OTPLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", OTPLength, n), nil
}

// PendingOTP is an issued one-time-code challenge held in the caller's
// session. A newly issued challenge overwrites any previous one.
type PendingOTP struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	Purpose   string    `json:"purpose"` // "registration" or "password-reset"
	ExpiresAt time.Time `json:"expires_at"`
}

// Matches checks the submitted email and code against the challenge.
// The code must match exactly after trimming surrounding whitespace; the
// email comparison is case-insensitive.
func (p PendingOTP) Matches(email, code string) bool {
	code = strings.TrimSpace(code)
	if code == "" || code != strings.TrimSpace(p.Code) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(email), strings.TrimSpace(p.Email))
}

// Expired reports whether the challenge has outlived its TTL.
func (p PendingOTP) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}
