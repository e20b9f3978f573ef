package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AccountTokenRepository stores single-use emailed tokens (email verification
// and password reset). Both tables share a schema; the repository is
// parameterized by table name at construction.
type AccountTokenRepository struct {
	db       *DB
	table    string
	idPrefix string
}

func NewEmailVerificationTokenRepository(db *DB) *AccountTokenRepository {
	return &AccountTokenRepository{db: db, table: "email_verification_tokens", idPrefix: "evt"}
}

func NewPasswordResetTokenRepository(db *DB) *AccountTokenRepository {
	return &AccountTokenRepository{db: db, table: "password_reset_tokens", idPrefix: "prt"}
}

func (r *AccountTokenRepository) Create(userID, tokenHash string, expiresAt time.Time) error {
	id, err := GenerateID(r.idPrefix)
	if err != nil {
		return fmt.Errorf("generating token ID: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO `+r.table+` (id, user_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, userID, tokenHash, expiresAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating account token: %w", err)
	}
	return nil
}

// Consume atomically marks an unused, unexpired token as used and returns the
// owning user ID. ErrNotFound covers missing, expired, and already-used
// tokens alike.
func (r *AccountTokenRepository) Consume(tokenHash string) (string, error) {
	now := time.Now().UTC()
	var userID string

	err := r.db.QueryRow(
		`UPDATE `+r.table+`
		    SET used_at = ?
		  WHERE token_hash = ?
		    AND used_at IS NULL
		    AND expires_at > ?
		 RETURNING user_id`,
		now, tokenHash, now,
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("consuming account token: %w", err)
	}

	return userID, nil
}

func (r *AccountTokenRepository) DeleteExpired() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM `+r.table+` WHERE expires_at < ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}

	return result.RowsAffected()
}
