// ABOUTME: Tests for argon2id hashing and password strength rules
// ABOUTME: Most cases use cheap parameters; one round-trips the production defaults

package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testArgon2Params = Argon2Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

func TestPasswordHasher_DefaultParams(t *testing.T) {
	h := NewPasswordHasher(DefaultArgon2Params)

	encoded, err := h.Hash("Correct-Horse-9")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=65536,t=3,p=4$"))

	assert.True(t, h.Verify("Correct-Horse-9", encoded))
	assert.False(t, h.Verify("correct-horse-9", encoded))
	assert.False(t, h.NeedsRehash(encoded))
}

func TestPasswordHasher_SaltsDiffer(t *testing.T) {
	h := NewPasswordHasher(testArgon2Params)

	a, err := h.Hash("Secret123")
	require.NoError(t, err)
	b, err := h.Hash("Secret123")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify("Secret123", a))
	assert.True(t, h.Verify("Secret123", b))
}

func TestPasswordHasher_VerifyMalformed(t *testing.T) {
	h := NewPasswordHasher(testArgon2Params)

	tests := []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0$aGFzaA",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0$aGFzaA",
		"$argon2id$v=19$m=1024,t=1$c2FsdHNhbHRzYWx0$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0$",
		"$argon2id$v=19$m=4294967295,t=1,p=1$c2FsdHNhbHRzYWx0$aGFzaA",
		"$argon2id$v=19$m=1024,t=0,p=1$c2FsdHNhbHRzYWx0$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=0$c2FsdHNhbHRzYWx0$aGFzaA",
	}
	for _, encoded := range tests {
		assert.NotPanics(t, func() {
			assert.False(t, h.Verify("anything", encoded), encoded)
		})
	}
}

func TestPasswordHasher_NeedsRehash(t *testing.T) {
	weak := NewPasswordHasher(testArgon2Params)
	strong := NewPasswordHasher(DefaultArgon2Params)

	encoded, err := weak.Hash("Secret123")
	require.NoError(t, err)

	assert.False(t, weak.NeedsRehash(encoded))
	assert.True(t, strong.NeedsRehash(encoded))
	assert.True(t, strong.NeedsRehash("garbage"))
}

func TestValidatePasswordStrength(t *testing.T) {
	ok, violations := ValidatePasswordStrength("ab")
	assert.False(t, ok)
	assert.Len(t, violations, 3)
	assert.Contains(t, violations, "password must be at least 8 characters")
	assert.Contains(t, violations, "password must contain an uppercase letter")
	assert.Contains(t, violations, "password must contain a digit")
	assert.NotContains(t, violations, "password must contain a lowercase letter")

	ok, violations = ValidatePasswordStrength("Abcdefg1")
	assert.True(t, ok)
	assert.Empty(t, violations)
}

func TestValidatePasswordStrength_Length(t *testing.T) {
	ok, violations := ValidatePasswordStrength("Aa1" + strings.Repeat("x", 126))
	assert.False(t, ok)
	assert.Equal(t, []string{"password must be at most 128 characters"}, violations)

	// Counted in characters, not bytes.
	ok, _ = ValidatePasswordStrength("Äöü1äöüß")
	assert.True(t, ok)

	ok, violations = ValidatePasswordStrength("")
	assert.False(t, ok)
	assert.Len(t, violations, 4)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestPasswordHasher_SaltSourceFailure(t *testing.T) {
	h := NewPasswordHasher(testArgon2Params).WithSaltSource(failingReader{})

	_, err := h.Hash("Correct-Horse-9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generating salt")
}

func TestPasswordHasher_Placeholder(t *testing.T) {
	h := NewPasswordHasher(testArgon2Params)

	placeholder := h.Placeholder()
	assert.True(t, strings.HasPrefix(placeholder, "$argon2id$v=19$"))
	assert.Equal(t, placeholder, h.Placeholder())
	assert.False(t, h.NeedsRehash(placeholder), "placeholder must decode with the current parameters")
	assert.False(t, h.Verify("Correct-Horse-9", placeholder))
	assert.False(t, h.Verify("", placeholder))
}
