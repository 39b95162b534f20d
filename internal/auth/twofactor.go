package auth

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod = 30
	totpKeyLen = 20
)

type TwoFactor struct {
	Users    UserStore
	Sessions SessionStore
	Cipher   *Cipher
	Issuer   string
	now      func() time.Time
}

func NewTwoFactor(users UserStore, sessions SessionStore, cipher *Cipher, issuer string) *TwoFactor {
	return &TwoFactor{Users: users, Sessions: sessions, Cipher: cipher, Issuer: issuer, now: time.Now}
}

func GenerateTOTPKey() ([]byte, error) {
	return randomBytes(totpKeyLen)
}

func totpValidateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// KeyURI returns the otpauth:// provisioning URI for key and a PNG QR code
// of it as a data URL.
func (t *TwoFactor) KeyURI(accountName string, key []byte) (string, string, error) {
	k, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.Issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		Secret:      key,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}

	uri := k.URL()
	img, err := k.Image(200, 200)
	if err != nil {
		return uri, "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return uri, "", err
	}
	return uri, "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (t *TwoFactor) VerifyTOTP(key []byte, code string) bool {
	if len(key) == 0 || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, base32NoPad.EncodeToString(key), t.now(), totpValidateOpts())
	return err == nil && ok
}

// GenerateTOTPCode is mostly useful in tests and for tooling.
func GenerateTOTPCode(key []byte, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(base32NoPad.EncodeToString(key), at, totpValidateOpts())
}

// RegisterTOTP commits key for the user only if code proves possession of
// it. On success the given session is marked 2FA verified.
func (t *TwoFactor) RegisterTOTP(ctx context.Context, sessionID, userID string, key []byte, code string) (bool, error) {
	if len(key) != totpKeyLen || !t.VerifyTOTP(key, code) {
		return false, nil
	}
	if err := t.UpdateUserTOTPKey(ctx, userID, key); err != nil {
		return false, err
	}
	if err := t.Sessions.SetSessionTwoFactorVerified(ctx, sessionID, true); err != nil {
		return false, fmt.Errorf("set session 2fa verified: %w", err)
	}
	return true, nil
}

// VerifyUserTOTP checks code against the user's stored key. Users without
// a key never verify.
func (t *TwoFactor) VerifyUserTOTP(ctx context.Context, userID, code string) (bool, error) {
	key, err := t.GetUserTOTPKey(ctx, userID)
	if err != nil {
		return false, err
	}
	if key == nil {
		return false, nil
	}
	return t.VerifyTOTP(key, code), nil
}

func (t *TwoFactor) GetUserTOTPKey(ctx context.Context, userID string) ([]byte, error) {
	rec, err := t.Users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrInvalidUserID
	}
	if rec.TOTPKey == nil {
		return nil, nil
	}
	return t.Cipher.Decrypt(rec.TOTPKey)
}

func (t *TwoFactor) UpdateUserTOTPKey(ctx context.Context, userID string, key []byte) error {
	encrypted, err := t.Cipher.Encrypt(key)
	if err != nil {
		return fmt.Errorf("encrypt totp key: %w", err)
	}
	return t.Users.UpdateUserTOTPKey(ctx, userID, encrypted)
}

func (t *TwoFactor) GetUserRecoveryCode(ctx context.Context, userID string) (string, error) {
	rec, err := t.Users.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", ErrInvalidUserID
	}
	return t.Cipher.DecryptToString(rec.RecoveryCode)
}

// ResetUserRecoveryCode issues and stores a new recovery code.
func (t *TwoFactor) ResetUserRecoveryCode(ctx context.Context, userID string) (string, error) {
	code, err := GenerateRandomRecoveryCode()
	if err != nil {
		return "", err
	}
	encrypted, err := t.Cipher.EncryptString(code)
	if err != nil {
		return "", fmt.Errorf("encrypt recovery code: %w", err)
	}
	if err := t.Users.UpdateUserRecoveryCode(ctx, userID, encrypted); err != nil {
		return "", err
	}
	return code, nil
}

// ResetUser2FAWithRecoveryCode removes the user's TOTP key when code matches
// the stored recovery code. The recovery code is rotated and every session
// of the user drops back to 2FA unverified. A wrong code changes nothing.
func (t *TwoFactor) ResetUser2FAWithRecoveryCode(ctx context.Context, userID, code string) (bool, error) {
	stored, err := t.GetUserRecoveryCode(ctx, userID)
	if err != nil {
		return false, err
	}
	if !CodesEqual(stored, code) {
		return false, nil
	}

	fresh, err := GenerateRandomRecoveryCode()
	if err != nil {
		return false, err
	}
	encrypted, err := t.Cipher.EncryptString(fresh)
	if err != nil {
		return false, fmt.Errorf("encrypt recovery code: %w", err)
	}

	if err := t.Sessions.SetUserSessionsTwoFactorVerified(ctx, userID, false); err != nil {
		return false, fmt.Errorf("reset session 2fa flags: %w", err)
	}
	if err := t.Users.ResetUserTwoFactor(ctx, userID, encrypted); err != nil {
		return false, fmt.Errorf("reset two factor: %w", err)
	}
	return true, nil
}
