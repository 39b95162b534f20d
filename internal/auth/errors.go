package auth

import "errors"

var (
	// ErrInvalidData is returned when an encrypted buffer is too short to
	// hold the IV and the authentication tag.
	ErrInvalidData = errors.New("invalid data")
	// ErrInvalidUserID is returned by lookups that expect the user to exist.
	ErrInvalidUserID = errors.New("invalid user id")
	ErrUnexpected    = errors.New("unexpected error")
	ErrInvalidKey    = errors.New("encryption key must be 16 bytes")
)
