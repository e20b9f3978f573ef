package db

import (
	"fmt"
	"time"

	"tusome/internal/models"
)

type ProgressRepository struct {
	db *DB
}

func NewProgressRepository(db *DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Initialize seeds one progress row per subject for a newly registered user.
// Re-running is harmless; existing rows are left untouched.
func (r *ProgressRepository) Initialize(userID string, subjects []string) error {
	now := time.Now().UTC()
	for _, subject := range subjects {
		_, err := r.db.Exec(
			`INSERT OR IGNORE INTO user_subject_progress (user_id, subject, completed_lessons, total_lessons, created_at, updated_at)
			 VALUES (?, ?, 0, 0, ?, ?)`,
			userID, subject, now, now,
		)
		if err != nil {
			return fmt.Errorf("initializing progress for %s: %w", subject, err)
		}
	}
	return nil
}

func (r *ProgressRepository) ListForUser(userID string) ([]models.SubjectProgress, error) {
	rows, err := r.db.Query(
		`SELECT user_id, subject, completed_lessons, total_lessons, created_at, updated_at
		   FROM user_subject_progress WHERE user_id = ? ORDER BY subject`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying progress: %w", err)
	}
	defer rows.Close()

	var out []models.SubjectProgress
	for rows.Next() {
		var p models.SubjectProgress
		if err := rows.Scan(&p.UserID, &p.Subject, &p.CompletedLessons, &p.TotalLessons, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning progress: %w", err)
		}
		out = append(out, p)
	}

	return out, rows.Err()
}
