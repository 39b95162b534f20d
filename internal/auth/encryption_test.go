package auth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher(testKey)
	require.NoError(t, err)

	for _, plain := range [][]byte{{0x01}, []byte("JBSWY3DPEHPK3PXP"), make([]byte, 1024)} {
		enc, err := c.Encrypt(plain)
		require.NoError(t, err)
		assert.Len(t, enc, ivSize+len(plain)+tagSize)

		dec, err := c.Decrypt(enc)
		require.NoError(t, err)
		assert.Equal(t, plain, dec)
	}
}

func TestCipherUsesFreshIV(t *testing.T) {
	c, err := NewCipher(testKey)
	require.NoError(t, err)

	a, err := c.EncryptString("same")
	require.NoError(t, err)
	b, err := c.EncryptString("same")
	require.NoError(t, err)
	assert.NotEqual(t, a[:ivSize], b[:ivSize])
}

func TestCipherDecryptShortBuffer(t *testing.T) {
	c, err := NewCipher(testKey)
	require.NoError(t, err)

	for _, n := range []int{0, 16, 32} {
		_, err := c.Decrypt(make([]byte, n))
		assert.ErrorIs(t, err, ErrInvalidData, "len %d", n)
	}
}

func TestCipherDecryptTampered(t *testing.T) {
	c, err := NewCipher(testKey)
	require.NoError(t, err)

	enc, err := c.EncryptString("recovery-code")
	require.NoError(t, err)

	body := append([]byte(nil), enc...)
	body[ivSize] ^= 0xff
	_, err = c.Decrypt(body)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidData)

	tag := append([]byte(nil), enc...)
	tag[len(tag)-1] ^= 0x01
	_, err = c.Decrypt(tag)
	assert.Error(t, err)
}

func TestCipherWrongKey(t *testing.T) {
	a, err := NewCipher(testKey)
	require.NoError(t, err)
	b, err := NewCipher([]byte("fedcba9876543210"))
	require.NoError(t, err)

	enc, err := a.EncryptString("secret")
	require.NoError(t, err)
	_, err = b.DecryptToString(enc)
	assert.Error(t, err)
}

func TestNewCipherKeyValidation(t *testing.T) {
	_, err := NewCipher([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKey)

	c, err := NewCipherFromBase64(base64.StdEncoding.EncodeToString(testKey))
	require.NoError(t, err)
	enc, err := c.EncryptString("x")
	require.NoError(t, err)
	got, err := c.DecryptToString(enc)
	require.NoError(t, err)
	assert.Equal(t, "x", got)

	_, err = NewCipherFromBase64("not base64 !!")
	assert.Error(t, err)
}
