package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	h := NewBcryptHasher()

	digest, err := h.Hash("P@ssw0rd")
	require.NoError(t, err)
	assert.NotEqual(t, "P@ssw0rd", digest)

	assert.True(t, h.Verify(digest, "P@ssw0rd"))
	assert.False(t, h.Verify(digest, "p@ssw0rd"))
	assert.False(t, h.Verify(digest, ""))
}

func TestBcryptHasherDistinctDigests(t *testing.T) {
	h := NewBcryptHasher()

	first, err := h.Hash("same-password")
	require.NoError(t, err)
	second, err := h.Hash("same-password")
	require.NoError(t, err)

	// Salted: two hashes of the same input differ, both verify.
	assert.NotEqual(t, first, second)
	assert.True(t, h.Verify(first, "same-password"))
	assert.True(t, h.Verify(second, "same-password"))
}

func TestBcryptHasherMalformedDigest(t *testing.T) {
	h := NewBcryptHasher()

	assert.False(t, h.Verify("", "anything"))
	assert.False(t, h.Verify("not-a-bcrypt-digest", "anything"))
	assert.False(t, h.Verify("$2a$garbage", "anything"))
}
