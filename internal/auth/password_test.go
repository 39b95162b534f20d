package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestArgon2Hasher(t *testing.T) {
	h := NewArgon2Hasher()

	hash, err := h.Hash("correct horse battery")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=19456,t=2,p=1$"))

	assert.True(t, h.Compare(hash, "correct horse battery"))
	assert.False(t, h.Compare(hash, "correct horse batterY"))
	assert.False(t, h.Compare("", "anything"))
	assert.False(t, h.Compare("$argon2i$v=19$m=1,t=1,p=1$AA$AA", "anything"))

	other, err := h.Hash("correct horse battery")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salted")
}

func TestArgon2HasherAcceptsPaddedSegments(t *testing.T) {
	h := &Argon2Hasher{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	hash, err := h.Hash("pw")
	require.NoError(t, err)

	parts := strings.Split(hash, "$")
	parts[4] += "=="
	padded := strings.Join(parts, "$")
	assert.True(t, h.Compare(padded, "pw"))
}

func TestBcryptHasher(t *testing.T) {
	h := &BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := h.Hash("hunter22")
	require.NoError(t, err)
	assert.True(t, h.Compare(hash, "hunter22"))
	assert.False(t, h.Compare(hash, "hunter23"))
	assert.False(t, h.Compare("", "hunter22"))
}

func TestNewPasswordHasher(t *testing.T) {
	assert.IsType(t, &BcryptHasher{}, NewPasswordHasher(" BCrypt "))
	assert.IsType(t, &Argon2Hasher{}, NewPasswordHasher("argon2"))
	assert.IsType(t, &Argon2Hasher{}, NewPasswordHasher(""))
}
