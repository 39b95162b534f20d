package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type UserService struct {
	Store  UserStore
	Hasher PasswordHasher
	Cipher *Cipher
	now    func() time.Time
}

func NewUserService(store UserStore, hasher PasswordHasher, cipher *Cipher) *UserService {
	return &UserService{Store: store, Hasher: hasher, Cipher: cipher, now: time.Now}
}

// CreateUser hashes the password and issues an encrypted recovery code.
// Input validation is the caller's job.
func (s *UserService) CreateUser(ctx context.Context, email, username, password string) (*User, error) {
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	recoveryCode, err := GenerateRandomRecoveryCode()
	if err != nil {
		return nil, err
	}
	encrypted, err := s.Cipher.EncryptString(recoveryCode)
	if err != nil {
		return nil, fmt.Errorf("encrypt recovery code: %w", err)
	}

	rec := UserRecord{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		RecoveryCode: encrypted,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.Store.CreateUser(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: create user: %v", ErrUnexpected, err)
	}
	return rec.User(), nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*User, error) {
	rec, err := s.Store.GetUser(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.User(), nil
}

func (s *UserService) GetUserFromEmail(ctx context.Context, email string) (*User, error) {
	rec, err := s.Store.GetUserByEmail(ctx, email)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.User(), nil
}

func (s *UserService) CheckEmailAvailability(ctx context.Context, email string) (bool, error) {
	rec, err := s.Store.GetUserByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return rec == nil, nil
}

func (s *UserService) GetUserPasswordHash(ctx context.Context, userID string) (string, error) {
	rec, err := s.Store.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", ErrInvalidUserID
	}
	return rec.PasswordHash, nil
}

func (s *UserService) VerifyPassword(ctx context.Context, userID, password string) (bool, error) {
	hash, err := s.GetUserPasswordHash(ctx, userID)
	if err != nil {
		return false, err
	}
	return s.Hasher.Compare(hash, password), nil
}

func (s *UserService) UpdateUserPassword(ctx context.Context, userID, password string) error {
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.Store.UpdateUserPasswordHash(ctx, userID, hash)
}

func (s *UserService) UpdateUserEmailAndSetEmailAsVerified(ctx context.Context, userID, email string) error {
	return s.Store.UpdateUserEmail(ctx, userID, email, true)
}

func (s *UserService) SetUserAsEmailVerifiedIfEmailMatches(ctx context.Context, userID, email string) (bool, error) {
	return s.Store.SetUserEmailVerifiedIfMatches(ctx, userID, email)
}

func (s *UserService) SetLastLogin(ctx context.Context, userID string) error {
	return s.Store.SetUserLastLogin(ctx, userID, s.now().UTC())
}
