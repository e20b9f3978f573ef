package api

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"tusome/internal/auth"
	"tusome/internal/catalog"
	"tusome/internal/db"
	"tusome/internal/models"
)

// EmailSender is the outbound mail dependency. Sends are best-effort side
// effects: a failure is logged and never fails the parent operation.
type EmailSender interface {
	SendWelcome(user *models.User, verificationToken string) error
	SendPasswordReset(user *models.User, resetToken string) error
}

type AuthHandler struct {
	users              *db.UserRepository
	refreshTokens      *db.RefreshTokenRepository
	verificationTokens *db.AccountTokenRepository
	resetTokens        *db.AccountTokenRepository
	activities         *db.ActivityRepository
	progress           *db.ProgressRepository
	tokens             *auth.TokenService
	emailService       EmailSender
	trialDays          int
	verificationTTL    time.Duration
	resetTTL           time.Duration
}

func NewAuthHandler(
	users *db.UserRepository,
	refreshTokens *db.RefreshTokenRepository,
	verificationTokens *db.AccountTokenRepository,
	resetTokens *db.AccountTokenRepository,
	activities *db.ActivityRepository,
	progress *db.ProgressRepository,
	tokens *auth.TokenService,
	emailService EmailSender,
	trialDays int,
	verificationTTL time.Duration,
	resetTTL time.Duration,
) *AuthHandler {
	return &AuthHandler{
		users:              users,
		refreshTokens:      refreshTokens,
		verificationTokens: verificationTokens,
		resetTokens:        resetTokens,
		activities:         activities,
		progress:           progress,
		tokens:             tokens,
		emailService:       emailService,
		trialDays:          trialDays,
		verificationTTL:    verificationTTL,
		resetTTL:           resetTTL,
	}
}

type RegisterRequest struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Grade           string `json:"grade"`
	GradeLevel      string `json:"gradeLevel"`
	GradeTier       string `json:"gradeTier"`
	GradeCategory   string `json:"gradeCategory"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	AgreeTerms      bool   `json:"agreeTerms"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User         *models.User `json:"user"`
	Token        string       `json:"token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	Message      string       `json:"message"`
}

// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if verr := validateRegistration(&req); verr != nil {
		validationFailed(w, verr)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	// Early exit; the unique constraint on insert is the authoritative guard.
	exists, err := h.users.ExistsByEmail(email)
	if err != nil {
		slog.Error("error checking email existence", "error", err)
		internalError(w)
		return
	}
	if exists {
		conflict(w, "A user with this email address already exists")
		return
	}

	gradeInfo, ok := catalog.Lookup(req.GradeLevel)
	if !ok {
		badRequest(w, "Invalid grade level selected")
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("error hashing password", "error", err)
		internalError(w)
		return
	}

	now := time.Now().UTC()
	trialEnd := now.AddDate(0, 0, h.trialDays)
	user := &models.User{
		ID:                 uuid.NewString(),
		FirstName:          strings.TrimSpace(req.FirstName),
		LastName:           strings.TrimSpace(req.LastName),
		Email:              email,
		PasswordHash:       passwordHash,
		Grade:              req.GradeLevel,
		GradeCategory:      gradeInfo.Category,
		GradeTier:          gradeInfo.Tier,
		IsActive:           true,
		EmailVerified:      false,
		TrialStartDate:     &now,
		TrialEndDate:       &trialEnd,
		SubscriptionStatus: models.SubscriptionTrial,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := h.users.Create(user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			conflict(w, "A user with this email address already exists")
			return
		}
		slog.Error("error creating user", "error", err)
		internalError(w)
		return
	}

	authResponse, err := h.issueTokens(user, "Account created successfully! Your 7-day free trial has started.")
	if err != nil {
		slog.Error("error issuing auth tokens", "error", err, "user_id", user.ID)
		internalError(w)
		return
	}

	go h.runRegistrationSideEffects(user)

	writeJSON(w, http.StatusOK, authResponse)
}

// runRegistrationSideEffects performs the post-registration work that must
// never roll back the created account: welcome email with verification
// token, initial progress rows, and the activity log entry.
func (h *AuthHandler) runRegistrationSideEffects(user *models.User) {
	verificationToken, err := auth.GenerateOpaqueToken(32)
	if err != nil {
		slog.Error("error generating verification token", "error", err, "user_id", user.ID)
	} else {
		err = h.verificationTokens.Create(user.ID, auth.HashAccountToken(verificationToken), time.Now().Add(h.verificationTTL))
		if err != nil {
			slog.Error("error storing verification token", "error", err, "user_id", user.ID)
		} else if err := h.emailService.SendWelcome(user, verificationToken); err != nil {
			slog.Error("error sending welcome email", "error", err, "user_id", user.ID)
		}
	}

	subjects := catalog.SubjectSlugsForCategory(user.GradeCategory)
	if err := h.progress.Initialize(user.ID, subjects); err != nil {
		slog.Error("error initializing progress", "error", err, "user_id", user.ID)
	}

	h.logActivity(user.ID, "user_registered", map[string]any{
		"grade":      user.Grade,
		"grade_tier": user.GradeTier,
	})
}

// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if verr := validateLogin(&req); verr != nil {
		validationFailed(w, verr)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.users.FindByEmail(email)
	if errors.Is(err, db.ErrNotFound) {
		// Same message as a bad password; do not reveal which one it was.
		unauthorized(w, "Invalid email or password")
		return
	}
	if err != nil {
		slog.Error("error finding user", "error", err)
		internalError(w)
		return
	}

	if !auth.VerifyPassword(req.Password, user.PasswordHash) {
		go h.logActivity(user.ID, "login_failed", map[string]any{"reason": "invalid_password"})
		unauthorized(w, "Invalid email or password")
		return
	}

	if !user.IsActive {
		unauthorized(w, "Your account has been deactivated. Please contact support.")
		return
	}

	now := time.Now().UTC()
	if err := h.users.RecordLogin(user.ID, now); err != nil {
		slog.Error("error recording login", "error", err, "user_id", user.ID)
		internalError(w)
		return
	}
	user.LastLoginAt = &now
	user.UpdatedAt = now

	authResponse, err := h.issueTokens(user, loginMessage(user))
	if err != nil {
		slog.Error("error issuing auth tokens", "error", err, "user_id", user.ID)
		internalError(w)
		return
	}

	go h.logActivity(user.ID, "user_login", map[string]any{
		"subscription_status": string(user.SubscriptionStatus),
	})

	writeJSON(w, http.StatusOK, authResponse)
}

func loginMessage(user *models.User) string {
	if user.SubscriptionStatus == models.SubscriptionTrial && user.TrialEndDate != nil {
		daysLeft := int(math.Ceil(time.Until(*user.TrialEndDate).Hours() / 24))
		if daysLeft > 0 {
			return fmt.Sprintf("Welcome back! You have %d days left in your free trial.", daysLeft)
		}
		return "Welcome back! Your trial has expired. Please subscribe to continue."
	}
	return "Welcome back to Tusome!"
}

// GET /auth/profile
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r)
	if user == nil {
		unauthorized(w, "Authentication required")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type UpdateProfileRequest struct {
	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
	ProfileImage *string `json:"profile_image"`
}

// PUT /auth/profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r)
	if user == nil {
		unauthorized(w, "Authentication required")
		return
	}

	var req UpdateProfileRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	firstName := user.FirstName
	if req.FirstName != nil && strings.TrimSpace(*req.FirstName) != "" {
		firstName = strings.TrimSpace(*req.FirstName)
	}
	lastName := user.LastName
	if req.LastName != nil && strings.TrimSpace(*req.LastName) != "" {
		lastName = strings.TrimSpace(*req.LastName)
	}
	profileImage := user.ProfileImage
	if req.ProfileImage != nil {
		profileImage = req.ProfileImage
	}

	if err := h.users.UpdateProfile(user.ID, firstName, lastName, profileImage); err != nil {
		slog.Error("error updating profile", "error", err, "user_id", user.ID)
		internalError(w)
		return
	}

	updated, err := h.users.FindByID(user.ID)
	if err != nil {
		slog.Error("error reloading user", "error", err, "user_id", user.ID)
		internalError(w)
		return
	}

	go h.logActivity(user.ID, "profile_updated", map[string]any{})

	writeJSON(w, http.StatusOK, updated)
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	tokenHash := auth.HashRefreshToken(req.RefreshToken)
	refreshToken, err := h.refreshTokens.FindByHash(tokenHash)
	if errors.Is(err, db.ErrNotFound) {
		unauthorized(w, "Invalid refresh token")
		return
	}
	if err != nil {
		slog.Error("error finding refresh token", "error", err)
		internalError(w)
		return
	}

	if refreshToken.RevokedAt != nil {
		unauthorized(w, "Refresh token has been revoked")
		return
	}

	if time.Now().After(refreshToken.ExpiresAt) {
		writeError(w, http.StatusUnauthorized, ErrCodeAuthExpired, "Refresh token has expired")
		return
	}

	user, err := h.users.FindByID(refreshToken.UserID)
	if errors.Is(err, db.ErrNotFound) {
		unauthorized(w, "User not found")
		return
	}
	if err != nil {
		slog.Error("error finding user", "error", err)
		internalError(w)
		return
	}

	if !user.IsActive {
		unauthorized(w, "Your account has been deactivated. Please contact support.")
		return
	}

	tokenPair, newRefreshHash, err := h.tokens.GenerateTokenPair(user)
	if err != nil {
		slog.Error("error generating refreshed token pair", "error", err)
		internalError(w)
		return
	}

	err = h.refreshTokens.Rotate(refreshToken.ID, user.ID, newRefreshHash, h.tokens.RefreshTokenExpiry())
	if errors.Is(err, db.ErrNotFound) {
		unauthorized(w, "Refresh token has already been used")
		return
	}
	if err != nil {
		slog.Error("error rotating refresh token", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		User:         user,
		Token:        tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
		Message:      "Tokens refreshed successfully",
	})
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// POST /auth/logout
//
// Always succeeds: invalidating an already-invalid refresh token is a no-op,
// and access tokens stay valid until natural expiry.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r)
	if user == nil {
		unauthorized(w, "Authentication required")
		return
	}

	var req LogoutRequest
	if err := decodeJSON(r.Body, &req); err == nil && req.RefreshToken != "" {
		if err := h.refreshTokens.RevokeByHash(auth.HashRefreshToken(req.RefreshToken)); err != nil {
			slog.Error("error revoking refresh token", "error", err, "user_id", user.ID)
		}
	}

	go h.logActivity(user.ID, "user_logout", map[string]any{})

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,max=254"`
}

// POST /auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.users.FindByEmail(email)
	if err == nil {
		resetToken, tokenErr := auth.GenerateOpaqueToken(32)
		if tokenErr != nil {
			slog.Error("error generating reset token", "error", tokenErr)
		} else if tokenErr = h.resetTokens.Create(user.ID, auth.HashAccountToken(resetToken), time.Now().Add(h.resetTTL)); tokenErr != nil {
			slog.Error("error storing reset token", "error", tokenErr, "user_id", user.ID)
		} else {
			go func() {
				if sendErr := h.emailService.SendPasswordReset(user, resetToken); sendErr != nil {
					slog.Error("error sending password reset email", "error", sendErr, "user_id", user.ID)
				}
				h.logActivity(user.ID, "password_reset_requested", map[string]any{})
			}()
		}
	} else if !errors.Is(err, db.ErrNotFound) {
		slog.Error("error finding user for password reset", "error", err)
	}

	// Always the same response; prevents email enumeration.
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "If an account exists with this email, a password reset link has been sent",
	})
}

type ResetPasswordRequest struct {
	Token           string `json:"token"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// POST /auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if req.Token == "" {
		badRequest(w, "Reset token is required")
		return
	}
	if len(req.NewPassword) < 8 {
		badRequest(w, "Password must be at least 8 characters long")
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		badRequest(w, "Password and confirmation do not match")
		return
	}

	userID, err := h.resetTokens.Consume(auth.HashAccountToken(req.Token))
	if errors.Is(err, db.ErrNotFound) {
		badRequest(w, "Invalid or expired reset token")
		return
	}
	if err != nil {
		slog.Error("error consuming reset token", "error", err)
		internalError(w)
		return
	}

	passwordHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		slog.Error("error hashing password", "error", err, "user_id", userID)
		internalError(w)
		return
	}

	if err := h.users.UpdatePassword(userID, passwordHash); err != nil {
		slog.Error("error updating password", "error", err, "user_id", userID)
		internalError(w)
		return
	}

	// A reset means the credentials may be compromised; end every session.
	if err := h.refreshTokens.RevokeAllForUser(userID); err != nil {
		slog.Error("error revoking sessions after reset", "error", err, "user_id", userID)
	}

	go h.logActivity(userID, "password_reset", map[string]any{})

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Password reset successfully. Please log in with your new password.",
	})
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// POST /auth/verify-email
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	userID, err := h.verificationTokens.Consume(auth.HashAccountToken(req.Token))
	if errors.Is(err, db.ErrNotFound) {
		badRequest(w, "Invalid or expired verification token")
		return
	}
	if err != nil {
		slog.Error("error consuming verification token", "error", err)
		internalError(w)
		return
	}

	if err := h.users.SetEmailVerified(userID); err != nil {
		slog.Error("error marking email verified", "error", err, "user_id", userID)
		internalError(w)
		return
	}

	go h.logActivity(userID, "email_verified", map[string]any{})

	writeJSON(w, http.StatusOK, map[string]string{"message": "Email verified successfully"})
}

func (h *AuthHandler) issueTokens(user *models.User, message string) (*AuthResponse, error) {
	tokenPair, refreshHash, err := h.tokens.GenerateTokenPair(user)
	if err != nil {
		return nil, err
	}

	if _, err := h.refreshTokens.Create(user.ID, refreshHash, h.tokens.RefreshTokenExpiry()); err != nil {
		return nil, err
	}

	return &AuthResponse{
		User:         user,
		Token:        tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
		Message:      message,
	}, nil
}

func (h *AuthHandler) logActivity(userID, activityType string, metadata map[string]any) {
	if err := h.activities.Log(userID, activityType, metadata); err != nil {
		slog.Error("error logging activity", "error", err, "user_id", userID, "activity_type", activityType)
	}
}
