package api

import (
	"net/http"
	"time"

	"tusome/internal/db"
)

type HealthHandler struct {
	serviceName string
	database    *db.DB
	startedAt   time.Time
}

func NewHealthHandler(serviceName string, database *db.DB) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		database:    database,
		startedAt:   time.Now(),
	}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	status := http.StatusOK

	if err := h.database.Ping(); err != nil {
		dbStatus = "error"
		status = http.StatusServiceUnavailable
	}

	result := "ok"
	if status != http.StatusOK {
		result = "degraded"
	}

	writeJSON(w, status, map[string]any{
		"service": h.serviceName,
		"status":  result,
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
		"checks": map[string]string{
			"database": dbStatus,
		},
	})
}
