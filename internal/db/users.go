package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tusome/internal/models"
)

const userColumns = `id, first_name, last_name, email, password_hash, grade, grade_category,
	grade_tier, profile_image, is_active, email_verified, trial_start_date, trial_end_date,
	subscription_status, last_login_at, created_at, updated_at`

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a fully-populated user row. A unique constraint violation on
// email is surfaced as ErrDuplicate; it is the authoritative signal that the
// address is already registered.
func (r *UserRepository) Create(u *models.User) error {
	_, err := r.db.Exec(
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Grade, u.GradeCategory,
		u.GradeTier, u.ProfileImage, u.IsActive, u.EmailVerified, u.TrialStartDate, u.TrialEndDate,
		u.SubscriptionStatus, u.LastLoginAt, u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(id string) (*models.User, error) {
	return r.findOne(`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// FindByEmail looks a user up case-insensitively; the email column is
// declared COLLATE NOCASE.
func (r *UserRepository) FindByEmail(email string) (*models.User, error) {
	return r.findOne(`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *UserRepository) ExistsByEmail(email string) (bool, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM users WHERE email = ?`, email).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking email existence: %w", err)
	}
	return count > 0, nil
}

func (r *UserRepository) FindAll() ([]*models.User, error) {
	rows, err := r.db.Query(`SELECT ` + userColumns + ` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// UpdateProfile overwrites the caller-editable fields only.
func (r *UserRepository) UpdateProfile(id, firstName, lastName string, profileImage *string) error {
	result, err := r.db.Exec(
		`UPDATE users SET first_name = ?, last_name = ?, profile_image = ?, updated_at = ? WHERE id = ?`,
		firstName, lastName, profileImage, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) RecordLogin(id string, at time.Time) error {
	result, err := r.db.Exec(
		`UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("recording login: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) UpdatePassword(id, passwordHash string) error {
	result, err := r.db.Exec(
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) SetEmailVerified(id string) error {
	result, err := r.db.Exec(
		`UPDATE users SET email_verified = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("marking email verified: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) findOne(query string, args ...any) (*models.User, error) {
	row := r.db.QueryRow(query, args...)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var profileImage sql.NullString
	var trialStart, trialEnd, lastLogin sql.NullTime

	err := row.Scan(
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.PasswordHash,
		&u.Grade,
		&u.GradeCategory,
		&u.GradeTier,
		&profileImage,
		&u.IsActive,
		&u.EmailVerified,
		&trialStart,
		&trialEnd,
		&u.SubscriptionStatus,
		&lastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.ProfileImage = nullStringToPtr(profileImage)
	u.TrialStartDate = nullTimeToPtr(trialStart)
	u.TrialEndDate = nullTimeToPtr(trialEnd)
	u.LastLoginAt = nullTimeToPtr(lastLogin)

	return &u, nil
}
