package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/hex"
	"strings"
)

var base32NoPad = base32.StdEncoding.WithPadding(base32.NoPadding)

// HashToken returns the hex SHA-256 of a bearer token. Only this value is
// ever persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// GenerateSessionToken returns 160 random bits as lowercase base32.
func GenerateSessionToken() (string, error) {
	b, err := randomBytes(20)
	if err != nil {
		return "", err
	}
	return strings.ToLower(base32NoPad.EncodeToString(b)), nil
}

// GenerateRandomOTP returns an 8 character uppercase base32 code.
func GenerateRandomOTP() (string, error) {
	b, err := randomBytes(5)
	if err != nil {
		return "", err
	}
	return base32NoPad.EncodeToString(b), nil
}

// GenerateRandomRecoveryCode returns a 16 character uppercase base32 code.
func GenerateRandomRecoveryCode() (string, error) {
	b, err := randomBytes(10)
	if err != nil {
		return "", err
	}
	return base32NoPad.EncodeToString(b), nil
}

// CodesEqual compares a stored secret code with user input in constant time.
func CodesEqual(stored, input string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(input)) == 1
}
