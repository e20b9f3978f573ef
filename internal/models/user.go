package models

import "time"

type SubscriptionStatus string

const (
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// User is the identity and subscription record. GradeCategory and GradeTier
// are derived from Grade via the catalog at write time and never set
// independently.
type User struct {
	ID                 string             `json:"id"`
	FirstName          string             `json:"first_name"`
	LastName           string             `json:"last_name"`
	Email              string             `json:"email"`
	PasswordHash       string             `json:"-"`
	Grade              string             `json:"grade"`
	GradeCategory      string             `json:"grade_category"`
	GradeTier          string             `json:"grade_tier"`
	ProfileImage       *string            `json:"profile_image,omitempty"`
	IsActive           bool               `json:"is_active"`
	EmailVerified      bool               `json:"email_verified"`
	TrialStartDate     *time.Time         `json:"trial_start_date,omitempty"`
	TrialEndDate       *time.Time         `json:"trial_end_date,omitempty"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	LastLoginAt        *time.Time         `json:"last_login_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

type SubjectProgress struct {
	UserID           string    `json:"-"`
	Subject          string    `json:"subject"`
	CompletedLessons int       `json:"completed_lessons"`
	TotalLessons     int       `json:"total_lessons"`
	CreatedAt        time.Time `json:"-"`
	UpdatedAt        time.Time `json:"-"`
}
