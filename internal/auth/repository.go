package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository stores users, password reset sessions and email
// verification requests in PostgreSQL.
type UserRepository struct {
	DB *pgxpool.Pool
}

var (
	_ UserStore              = (*UserRepository)(nil)
	_ PasswordResetStore     = (*UserRepository)(nil)
	_ EmailVerificationStore = (*UserRepository)(nil)
)

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{DB: db}
}

const userColumns = `id, email, username, password_hash, email_verified, recovery_code, totp_key, created_at, last_login`

func (r *UserRepository) CreateUser(ctx context.Context, u UserRecord) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO app_user (id, email, username, password_hash, email_verified, recovery_code, totp_key, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, u.ID, u.Email, u.Username, u.PasswordHash, u.EmailVerified, u.RecoveryCode, u.TOTPKey, u.CreatedAt)
	return err
}

func (r *UserRepository) GetUser(ctx context.Context, id string) (*UserRecord, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM app_user WHERE id=$1`, id)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM app_user WHERE email=$1`, email)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (r *UserRepository) UpdateUserPasswordHash(ctx context.Context, id, hash string) error {
	_, err := r.DB.Exec(ctx, `UPDATE app_user SET password_hash=$2 WHERE id=$1`, id, hash)
	return err
}

func (r *UserRepository) UpdateUserEmail(ctx context.Context, id, email string, verified bool) error {
	_, err := r.DB.Exec(ctx, `UPDATE app_user SET email=$2, email_verified=$3 WHERE id=$1`, id, email, verified)
	return err
}

func (r *UserRepository) SetUserEmailVerifiedIfMatches(ctx context.Context, id, email string) (bool, error) {
	tag, err := r.DB.Exec(ctx, `UPDATE app_user SET email_verified=TRUE WHERE id=$1 AND email=$2`, id, email)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *UserRepository) UpdateUserTOTPKey(ctx context.Context, id string, key []byte) error {
	_, err := r.DB.Exec(ctx, `UPDATE app_user SET totp_key=$2 WHERE id=$1`, id, key)
	return err
}

func (r *UserRepository) UpdateUserRecoveryCode(ctx context.Context, id string, code []byte) error {
	_, err := r.DB.Exec(ctx, `UPDATE app_user SET recovery_code=$2 WHERE id=$1`, id, code)
	return err
}

func (r *UserRepository) ResetUserTwoFactor(ctx context.Context, id string, recoveryCode []byte) error {
	_, err := r.DB.Exec(ctx, `UPDATE app_user SET recovery_code=$2, totp_key=NULL WHERE id=$1`, id, recoveryCode)
	return err
}

func (r *UserRepository) SetUserLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.Exec(ctx, `UPDATE app_user SET last_login=$2 WHERE id=$1`, id, at)
	return err
}

func (r *UserRepository) CreatePasswordResetSession(ctx context.Context, s PasswordResetSession) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO password_reset_session (id, user_id, email, code, expires_at, email_verified, two_factor_verified)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, s.ID, s.UserID, s.Email, s.Code, s.ExpiresAt, s.EmailVerified, s.TwoFactorVerified)
	return err
}

func (r *UserRepository) GetPasswordResetSession(ctx context.Context, id string) (*PasswordResetSession, error) {
	var s PasswordResetSession
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, email, code, expires_at, email_verified, two_factor_verified
		FROM password_reset_session
		WHERE id=$1
	`, id).Scan(&s.ID, &s.UserID, &s.Email, &s.Code, &s.ExpiresAt, &s.EmailVerified, &s.TwoFactorVerified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *UserRepository) SetPasswordResetSessionEmailVerified(ctx context.Context, id string) error {
	_, err := r.DB.Exec(ctx, `UPDATE password_reset_session SET email_verified=TRUE WHERE id=$1`, id)
	return err
}

func (r *UserRepository) SetPasswordResetSessionTwoFactorVerified(ctx context.Context, id string) error {
	_, err := r.DB.Exec(ctx, `UPDATE password_reset_session SET two_factor_verified=TRUE WHERE id=$1`, id)
	return err
}

func (r *UserRepository) DeletePasswordResetSession(ctx context.Context, id string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM password_reset_session WHERE id=$1`, id)
	return err
}

func (r *UserRepository) DeleteUserPasswordResetSessions(ctx context.Context, userID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM password_reset_session WHERE user_id=$1`, userID)
	return err
}

func (r *UserRepository) CreateEmailVerificationRequest(ctx context.Context, req EmailVerificationRequest) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO email_verification_request (id, user_id, code, email, expires_at)
		VALUES ($1,$2,$3,$4,$5)
	`, req.ID, req.UserID, req.Code, req.Email, req.ExpiresAt)
	return err
}

func (r *UserRepository) GetEmailVerificationRequest(ctx context.Context, userID, id string) (*EmailVerificationRequest, error) {
	var req EmailVerificationRequest
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, code, email, expires_at
		FROM email_verification_request
		WHERE id=$1 AND user_id=$2
	`, id, userID).Scan(&req.ID, &req.UserID, &req.Code, &req.Email, &req.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *UserRepository) DeleteUserEmailVerificationRequests(ctx context.Context, userID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM email_verification_request WHERE user_id=$1`, userID)
	return err
}

func scanUser(row pgx.Row) (*UserRecord, error) {
	var (
		u         UserRecord
		lastLogin sql.NullTime
	)
	if err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&u.EmailVerified,
		&u.RecoveryCode,
		&u.TOTPKey,
		&u.CreatedAt,
		&lastLogin,
	); err != nil {
		return nil, err
	}

	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}
