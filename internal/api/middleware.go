package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"tusome/internal/auth"
	"tusome/internal/catalog"
	"tusome/internal/db"
	"tusome/internal/models"
)

type contextKey string

const userKey contextKey = "user"

// AuthMiddleware gates requests on a valid bearer token and the predicates
// layered on top of it (active account, live subscription, grade category,
// admin). It is a pure gate: it loads state but never mutates it.
type AuthMiddleware struct {
	tokens      *auth.TokenService
	users       *db.UserRepository
	adminDomain string
	adminEmails []string
}

func NewAuthMiddleware(tokens *auth.TokenService, users *db.UserRepository, adminDomain string, adminEmails []string) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:      tokens,
		users:       users,
		adminDomain: adminDomain,
		adminEmails: adminEmails,
	}
}

// RequireAuth validates the bearer token, loads the user, and rejects
// deactivated accounts. Expired tokens get a distinct message so clients
// know to call refresh.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, errStatus := m.authenticate(r)
		if errStatus != nil {
			writeError(w, http.StatusUnauthorized, errStatus.code, errStatus.message)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// OptionalAuth attaches the user when a valid token is presented but never
// rejects; failures are reported to the log and the request proceeds
// anonymous.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			user, errStatus := m.authenticate(r)
			if errStatus != nil {
				slog.Debug("optional auth failed, continuing as anonymous",
					"component", "auth", "reason", errStatus.message)
			} else {
				r = r.WithContext(withUser(r.Context(), user))
			}
		}

		next.ServeHTTP(w, r)
	})
}

// RequireSubscription rejects expired and cancelled subscriptions, and
// trials whose window has lapsed. Mount inside RequireAuth.
func (m *AuthMiddleware) RequireSubscription(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r)
		if user == nil {
			unauthorized(w, "Authentication required")
			return
		}

		switch user.SubscriptionStatus {
		case models.SubscriptionExpired, models.SubscriptionCancelled:
			forbidden(w, "Active subscription required")
			return
		case models.SubscriptionTrial:
			if user.TrialEndDate != nil && time.Now().After(*user.TrialEndDate) {
				forbidden(w, "Trial period has expired. Please subscribe to continue.")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// RequireGrade restricts a route to users in the given grade category.
func (m *AuthMiddleware) RequireGrade(category string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r)
			if user == nil {
				unauthorized(w, "Authentication required")
				return
			}

			if user.GradeCategory != category {
				forbidden(w, fmt.Sprintf("This content is only available for %s students", category))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireGradeParam is the URL-parameter form of RequireGrade, for routes
// shaped like /subjects/{category}.
func (m *AuthMiddleware) RequireGradeParam(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		category := chi.URLParam(r, "category")
		if !catalog.ValidCategory(category) {
			notFound(w, "Unknown grade category")
			return
		}

		m.RequireGrade(category)(next).ServeHTTP(w, r)
	})
}

// RequireAdmin restricts a route to staff accounts: an email on the
// organization's own domain or an explicitly allow-listed address.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r)
		if user == nil {
			unauthorized(w, "Authentication required")
			return
		}

		if !m.isAdmin(user) {
			forbidden(w, "Administrator access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) isAdmin(user *models.User) bool {
	email := strings.ToLower(user.Email)
	if strings.HasSuffix(email, "@"+m.adminDomain) {
		return true
	}
	for _, allowed := range m.adminEmails {
		if email == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

type authFailure struct {
	code    string
	message string
}

func (m *AuthMiddleware) authenticate(r *http.Request) (*models.User, *authFailure) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, &authFailure{ErrCodeAuthFailed, "Authorization header required"}
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return nil, &authFailure{ErrCodeAuthFailed, "Invalid authorization header format"}
	}

	claims, err := m.tokens.ValidateAccessToken(parts[1])
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, &authFailure{ErrCodeAuthExpired, "Token has expired"}
		}
		return nil, &authFailure{ErrCodeAuthFailed, "Invalid token"}
	}

	user, err := m.users.FindByID(claims.UserID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, &authFailure{ErrCodeAuthFailed, "User not found"}
	}
	if err != nil {
		slog.Error("error loading user for auth", "component", "auth", "error", err)
		return nil, &authFailure{ErrCodeAuthFailed, "Authentication failed"}
	}

	if !user.IsActive {
		return nil, &authFailure{ErrCodeAuthFailed, "Account has been deactivated"}
	}

	return user, nil
}

func withUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// GetUser returns the authenticated user attached by RequireAuth or
// OptionalAuth, or nil for anonymous requests.
func GetUser(r *http.Request) *models.User {
	if v := r.Context().Value(userKey); v != nil {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}
