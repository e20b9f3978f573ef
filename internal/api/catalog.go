package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tusome/internal/catalog"
	"tusome/internal/db"
)

type CatalogHandler struct {
	progress *db.ProgressRepository
}

func NewCatalogHandler(progress *db.ProgressRepository) *CatalogHandler {
	return &CatalogHandler{progress: progress}
}

// GET /catalog/grades
func (h *CatalogHandler) ListGrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"grades": catalog.Grades()})
}

// GET /subjects/{category}
func (h *CatalogHandler) ListSubjectsForCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	writeJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"subjects": catalog.SubjectsForCategory(category),
	})
}

// GET /subjects
//
// Returns the authenticated user's subjects with their stored progress.
func (h *CatalogHandler) ListMySubjects(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r)
	if user == nil {
		unauthorized(w, "Authentication required")
		return
	}

	progress, err := h.progress.ListForUser(user.ID)
	if err != nil {
		slog.Error("error listing subject progress", "error", err, "user_id", user.ID)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"category": user.GradeCategory,
		"subjects": progress,
	})
}
