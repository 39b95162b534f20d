package auth

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSessionToken(t *testing.T) {
	token, err := GenerateSessionToken()
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[a-z2-7]{32}$`), token)

	other, err := GenerateSessionToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestGenerateCodes(t *testing.T) {
	otp, err := GenerateRandomOTP()
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[A-Z2-7]{8}$`), otp)

	rc, err := GenerateRandomRecoveryCode()
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[A-Z2-7]{16}$`), rc)
}

func TestHashToken(t *testing.T) {
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", HashToken("hello"))
	assert.NotEqual(t, HashToken("a"), HashToken("b"))
}

func TestCodesEqual(t *testing.T) {
	assert.True(t, CodesEqual("ABCDEFGH", "ABCDEFGH"))
	assert.False(t, CodesEqual("ABCDEFGH", "abcdefgh"))
	assert.False(t, CodesEqual("ABCDEFGH", "ABCDEFG"))
	assert.False(t, CodesEqual("ABCDEFGH", ""))
}
