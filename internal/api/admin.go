package api

import (
	"log/slog"
	"net/http"

	"tusome/internal/db"
	"tusome/internal/models"
)

type AdminHandler struct {
	users      *db.UserRepository
	activities *db.ActivityRepository
}

func NewAdminHandler(users *db.UserRepository, activities *db.ActivityRepository) *AdminHandler {
	return &AdminHandler{users: users, activities: activities}
}

type adminUserEntry struct {
	*models.User
	ActivityCount int `json:"activity_count"`
}

// GET /admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.FindAll()
	if err != nil {
		slog.Error("error listing users", "error", err)
		internalError(w)
		return
	}

	entries := make([]adminUserEntry, 0, len(users))
	for _, user := range users {
		activityCount, err := h.activities.CountForUser(user.ID)
		if err != nil {
			slog.Error("error counting activities", "error", err, "user_id", user.ID)
			internalError(w)
			return
		}
		entries = append(entries, adminUserEntry{User: user, ActivityCount: activityCount})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": entries,
		"count": len(entries),
	})
}
