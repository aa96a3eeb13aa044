package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOTPFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateOTP()
		require.NoError(t, err)
		require.Len(t, code, OTPLength)
		for _, c := range code {
			assert.True(t, c >= '0' && c <= '9', "code %q contains non-digit", code)
		}
		seen[code] = true
	}
	// 50 draws from a million-code space should not all collide.
	assert.Greater(t, len(seen), 1)
}

func TestPendingOTPMatches(t *testing.T) {
	p := PendingOTP{Email: "asha@x.com", Code: "482913"}

	assert.True(t, p.Matches("asha@x.com", "482913"))
	assert.True(t, p.Matches("ASHA@X.COM", "482913"), "email match is case-insensitive")
	assert.True(t, p.Matches("asha@x.com", "  482913  "), "code is trimmed before comparison")

	assert.False(t, p.Matches("asha@x.com", "482914"))
	assert.False(t, p.Matches("other@x.com", "482913"))
	assert.False(t, p.Matches("asha@x.com", ""))
}

func TestPendingOTPExpired(t *testing.T) {
	now := time.Now()

	p := PendingOTP{Code: "111111", ExpiresAt: now.Add(10 * time.Minute)}
	assert.False(t, p.Expired(now))
	assert.True(t, p.Expired(now.Add(11*time.Minute)))

	// Zero expiry means no TTL.
	assert.False(t, PendingOTP{Code: "111111"}.Expired(now))
}
