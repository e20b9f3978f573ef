package db

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActivityRepository appends to the user activity log. Writes here are
// best-effort side channels: callers log failures and move on.
type ActivityRepository struct {
	db *DB
}

func NewActivityRepository(db *DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Log(userID, activityType string, metadata map[string]any) error {
	id, err := GenerateID("act")
	if err != nil {
		return fmt.Errorf("generating activity ID: %w", err)
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encoding activity metadata: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO user_activities (id, user_id, activity_type, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, userID, activityType, string(encoded), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("logging activity: %w", err)
	}
	return nil
}

func (r *ActivityRepository) CountForUser(userID string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM user_activities WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting activities: %w", err)
	}
	return count, nil
}
