package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tusome/internal/config"
	"tusome/internal/db"
)

func newTestServer(t *testing.T) (*Server, *fakeEmailSender) {
	t.Helper()

	database := openTestDB(t)
	email := newFakeEmailSender()

	cfg := &config.Config{}
	cfg.Server.Name = "Tusome Auth"
	cfg.Auth.JWTSecret = testJWTSecret
	cfg.Auth.AccessTokenTTL = 24 * time.Hour
	cfg.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	cfg.Auth.VerificationTokenTTL = 24 * time.Hour
	cfg.Auth.ResetTokenTTL = time.Hour
	cfg.Auth.TrialDays = 7
	cfg.Auth.AdminDomain = "tusome.ke"
	cfg.Auth.AdminEmails = []string{"admin@tusome.com"}

	server := NewServer(
		cfg,
		database,
		email,
		db.NewUserRepository(database),
		db.NewRefreshTokenRepository(database),
		db.NewEmailVerificationTokenRepository(database),
		db.NewPasswordResetTokenRepository(database),
		db.NewActivityRepository(database),
		db.NewProgressRepository(database),
	)
	return server, email
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp struct {
		Service string            `json:"service"`
		Status  string            `json:"status"`
		Uptime  string            `json:"uptime"`
		Checks  map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, body=%q", err, rr.Body.String())
	}
	if resp.Service != "Tusome Auth" {
		t.Fatalf("service = %q, want Tusome Auth", resp.Service)
	}
	if resp.Status != "ok" {
		t.Fatalf("status = %q, want ok", resp.Status)
	}
	if resp.Uptime == "" {
		t.Fatal("uptime is empty")
	}
	if resp.Checks["database"] != "ok" {
		t.Fatalf("database check = %q, want ok", resp.Checks["database"])
	}
}

func TestCORSPreflight(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/login", nil)
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestRouterRegisterThenProfile(t *testing.T) {
	server, email := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(registerBody("jane@example.com")))
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("register status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}

	var registered AuthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &registered); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, body=%q", err, rr.Body.String())
	}
	email.waitWelcome(t)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer "+registered.Token)
	rr = httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("profile status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil)
	rr = httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous profile status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRouterSubjectsGateChain(t *testing.T) {
	server, email := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(registerBody("jane@example.com")))
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("register status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}
	var registered AuthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &registered); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	email.waitWelcome(t)

	// grade-8 user: own category accessible, other categories forbidden.
	tests := []struct {
		path   string
		status int
	}{
		{"/api/v1/subjects/junior", http.StatusOK},
		{"/api/v1/subjects/senior", http.StatusForbidden},
		{"/api/v1/subjects/doctorate", http.StatusNotFound},
		{"/api/v1/admin/users", http.StatusForbidden},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		req.Header.Set("Authorization", "Bearer "+registered.Token)
		rr := httptest.NewRecorder()
		server.ServeHTTP(rr, req)

		if rr.Code != tt.status {
			t.Fatalf("%s status = %d, want %d, body=%q", tt.path, rr.Code, tt.status, rr.Body.String())
		}
	}
}

func TestRouterCatalogGradesIsPublic(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/grades", nil)
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp struct {
		Grades []struct {
			Grade    string `json:"grade"`
			Category string `json:"category"`
			PriceKSh int    `json:"price_ksh"`
		} `json:"grades"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, body=%q", err, rr.Body.String())
	}
	if len(resp.Grades) != 9 {
		t.Fatalf("len(grades) = %d, want 9", len(resp.Grades))
	}
	if resp.Grades[0].Grade != "grade-4" || resp.Grades[0].Category != "primary" || resp.Grades[0].PriceKSh != 499 {
		t.Fatalf("first grade = %+v", resp.Grades[0])
	}
}
