package helpers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasherHashProducesDistinctDigests(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	first, err := h.Hash("secret4you")
	require.NoError(t, err)
	second, err := h.Hash("secret4you")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "salting must make each digest unique")
	assert.True(t, h.Check("secret4you", first))
	assert.True(t, h.Check("secret4you", second))
}

func TestHasherCheckRejectsWrongPassword(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	digest, err := h.Hash("secret4you")
	require.NoError(t, err)

	assert.False(t, h.Check("secret4them", digest))
}

func TestHasherCheckMalformedDigest(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	assert.False(t, h.Check("secret4you", "not-a-bcrypt-digest"))
	assert.False(t, h.Check("secret4you", ""))
}

func TestHasherAcceptsFullPolicyLength(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	// 128 characters is within policy but past bcrypt's 72-byte window;
	// hashing must still succeed and verify.
	long := strings.Repeat("a1", 64)
	require.NoError(t, ValidatePassword(long))

	digest, err := h.Hash(long)
	require.NoError(t, err)
	assert.True(t, h.Check(long, digest))
}

func TestHasherTruncatesAtBcryptWindow(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	base := strings.Repeat("x", 72)
	digest, err := h.Hash(base + "tail1one")
	require.NoError(t, err)

	// Only the first 72 bytes take part in the digest.
	assert.True(t, h.Check(base+"tail1one", digest))
	assert.True(t, h.Check(base+"different9", digest))
	assert.False(t, h.Check(base[:71]+"y", digest))
}

func TestNewHasherClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).Cost)
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(99).Cost)
	assert.Equal(t, bcrypt.MinCost, NewHasher(bcrypt.MinCost).Cost)
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		name     string
		password string
		wantErr  string
	}{
		{"valid", "abcdef12", ""},
		{"too short", "ab1", "at least 8"},
		{"too long", strings.Repeat("a1", 65), "at most 128"},
		{"only letters", "abcdefgh", "at least one digit"},
		{"only digits", "12345678", "at least one letter"},
		{"exactly 128", strings.Repeat("a1", 64), ""},
		// lengths count characters, not bytes
		{"multibyte under minimum", "ééééa1", "at least 8"},
		{"multibyte at minimum", "ééééééa1", ""},
		{"multibyte at maximum", strings.Repeat("é", 126) + "a1", ""},
		{"multibyte over maximum", strings.Repeat("é", 127) + "a1", "at most 128"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
