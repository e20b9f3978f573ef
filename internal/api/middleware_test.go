package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tusome/internal/auth"
	"tusome/internal/db"
	"tusome/internal/models"
)

func seedUser(t *testing.T, users *db.UserRepository, mutate func(*models.User)) *models.User {
	t.Helper()

	now := time.Now().UTC()
	trialEnd := now.AddDate(0, 0, 7)
	user := &models.User{
		ID:                 uuid.NewString(),
		FirstName:          "Jane",
		LastName:           "Wanjiku",
		Email:              "jane@example.com",
		PasswordHash:       "unused",
		Grade:              "grade-8",
		GradeCategory:      "junior",
		GradeTier:          "Junior Secondary",
		IsActive:           true,
		TrialStartDate:     &now,
		TrialEndDate:       &trialEnd,
		SubscriptionStatus: models.SubscriptionTrial,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if mutate != nil {
		mutate(user)
	}
	if err := users.Create(user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return user
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func newTestMiddleware(t *testing.T) (*AuthMiddleware, *db.UserRepository, *auth.TokenService) {
	t.Helper()

	database := openTestDB(t)
	users := db.NewUserRepository(database)
	tokens := auth.NewTokenService(testJWTSecret, 24*time.Hour, 30*24*time.Hour)
	mw := NewAuthMiddleware(tokens, users, "tusome.ke", []string{"admin@tusome.com"})
	return mw, users, tokens
}

func bearerFor(t *testing.T, tokens *auth.TokenService, user *models.User) string {
	t.Helper()

	pair, _, err := tokens.GenerateTokenPair(user)
	if err != nil {
		t.Fatalf("GenerateTokenPair() error = %v", err)
	}
	return "Bearer " + pair.AccessToken
}

func TestRequireAuthRejectsMissingAndMalformedHeaders(t *testing.T) {
	mw, _, _ := newTestMiddleware(t)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"missing", "", "Authorization header required"},
		{"not bearer", "Basic abc123", "Invalid authorization header format"},
		{"no token", "Bearer", "Invalid authorization header format"},
		{"garbage token", "Bearer garbage", "Invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			mw.RequireAuth(okHandler()).ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusUnauthorized, rr.Body.String())
			}
			resp := decodeError(t, rr)
			if resp.Error.Code != ErrCodeAuthFailed {
				t.Fatalf("error.code = %q, want %q", resp.Error.Code, ErrCodeAuthFailed)
			}
			if resp.Error.Message != tt.message {
				t.Fatalf("error.message = %q, want %q", resp.Error.Message, tt.message)
			}
		})
	}
}

func TestRequireAuthExpiredToken(t *testing.T) {
	mw, users, _ := newTestMiddleware(t)
	user := seedUser(t, users, nil)

	expiredTokens := auth.NewTokenService(testJWTSecret, -time.Minute, 30*24*time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil)
	req.Header.Set("Authorization", bearerFor(t, expiredTokens, user))
	rr := httptest.NewRecorder()
	mw.RequireAuth(okHandler()).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusUnauthorized, rr.Body.String())
	}
	resp := decodeError(t, rr)
	if resp.Error.Code != ErrCodeAuthExpired {
		t.Fatalf("error.code = %q, want %q", resp.Error.Code, ErrCodeAuthExpired)
	}
	if resp.Error.Message != "Token has expired" {
		t.Fatalf("error.message = %q", resp.Error.Message)
	}
}

func TestRequireAuthAttachesUser(t *testing.T) {
	mw, users, tokens := newTestMiddleware(t)
	user := seedUser(t, users, nil)

	var seen *models.User
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUser(r)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil)
	req.Header.Set("Authorization", bearerFor(t, tokens, user))
	rr := httptest.NewRecorder()
	mw.RequireAuth(handler).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}
	if seen == nil || seen.ID != user.ID {
		t.Fatalf("GetUser() = %v, want user %q", seen, user.ID)
	}
}

func TestRequireAuthDeactivatedUser(t *testing.T) {
	mw, users, tokens := newTestMiddleware(t)
	user := seedUser(t, users, func(u *models.User) { u.IsActive = false })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil)
	req.Header.Set("Authorization", bearerFor(t, tokens, user))
	rr := httptest.NewRecorder()
	mw.RequireAuth(okHandler()).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusUnauthorized, rr.Body.String())
	}
	resp := decodeError(t, rr)
	if resp.Error.Message != "Account has been deactivated" {
		t.Fatalf("error.message = %q", resp.Error.Message)
	}
}

func TestOptionalAuthNeverRejects(t *testing.T) {
	mw, _, _ := newTestMiddleware(t)

	var seen *models.User
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUser(r)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/grades", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rr := httptest.NewRecorder()
	mw.OptionalAuth(handler).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}
	if seen != nil {
		t.Fatalf("GetUser() = %v, want nil for failed optional auth", seen)
	}
}

func TestRequireSubscription(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.User)
		status  int
		message string
	}{
		{
			name:   "trial within window",
			mutate: nil,
			status: http.StatusOK,
		},
		{
			name:   "active subscription",
			mutate: func(u *models.User) { u.SubscriptionStatus = models.SubscriptionActive },
			status: http.StatusOK,
		},
		{
			name:    "expired subscription",
			mutate:  func(u *models.User) { u.SubscriptionStatus = models.SubscriptionExpired },
			status:  http.StatusForbidden,
			message: "Active subscription required",
		},
		{
			name:    "cancelled subscription",
			mutate:  func(u *models.User) { u.SubscriptionStatus = models.SubscriptionCancelled },
			status:  http.StatusForbidden,
			message: "Active subscription required",
		},
		{
			name: "lapsed trial",
			mutate: func(u *models.User) {
				past := time.Now().AddDate(0, 0, -1)
				u.TrialEndDate = &past
			},
			status:  http.StatusForbidden,
			message: "Trial period has expired. Please subscribe to continue.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw, users, _ := newTestMiddleware(t)
			user := seedUser(t, users, tt.mutate)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/subjects", nil)
			req = req.WithContext(withUser(req.Context(), user))
			rr := httptest.NewRecorder()
			mw.RequireSubscription(okHandler()).ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d, body=%q", rr.Code, tt.status, rr.Body.String())
			}
			if tt.message != "" {
				resp := decodeError(t, rr)
				if resp.Error.Message != tt.message {
					t.Fatalf("error.message = %q, want %q", resp.Error.Message, tt.message)
				}
			}
		})
	}
}

func TestRequireGrade(t *testing.T) {
	mw, users, _ := newTestMiddleware(t)
	user := seedUser(t, users, nil) // junior

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subjects/senior", nil)
	req = req.WithContext(withUser(req.Context(), user))
	rr := httptest.NewRecorder()
	mw.RequireGrade("senior")(okHandler()).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusForbidden, rr.Body.String())
	}
	resp := decodeError(t, rr)
	if resp.Error.Message != "This content is only available for senior students" {
		t.Fatalf("error.message = %q", resp.Error.Message)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/subjects/junior", nil)
	req = req.WithContext(withUser(req.Context(), user))
	rr = httptest.NewRecorder()
	mw.RequireGrade("junior")(okHandler()).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestRequireGradeParam(t *testing.T) {
	mw, users, _ := newTestMiddleware(t)
	user := seedUser(t, users, nil) // junior

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(withUser(req.Context(), user)))
		})
	})
	r.With(mw.RequireGradeParam).Get("/subjects/{category}", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		path   string
		status int
	}{
		{"/subjects/junior", http.StatusOK},
		{"/subjects/senior", http.StatusForbidden},
		{"/subjects/postgraduate", http.StatusNotFound},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		if rr.Code != tt.status {
			t.Fatalf("%s status = %d, want %d, body=%q", tt.path, rr.Code, tt.status, rr.Body.String())
		}
	}
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name   string
		email  string
		status int
	}{
		{"staff domain", "ops@tusome.ke", http.StatusOK},
		{"staff domain mixed case", "Ops@Tusome.KE", http.StatusOK},
		{"allow-listed", "admin@tusome.com", http.StatusOK},
		{"regular user", "jane@example.com", http.StatusForbidden},
		{"lookalike domain", "jane@nottusome.ke", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw, users, _ := newTestMiddleware(t)
			user := seedUser(t, users, func(u *models.User) { u.Email = tt.email })

			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
			req = req.WithContext(withUser(req.Context(), user))
			rr := httptest.NewRecorder()
			mw.RequireAdmin(okHandler()).ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d, body=%q", rr.Code, tt.status, rr.Body.String())
			}
		})
	}
}
