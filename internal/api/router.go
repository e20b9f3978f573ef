package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"tusome/internal/auth"
	"tusome/internal/config"
	"tusome/internal/db"
)

type Server struct {
	router *chi.Mux
	config *config.Config
}

func NewServer(
	cfg *config.Config,
	database *db.DB,
	emailService EmailSender,
	userRepo *db.UserRepository,
	refreshTokenRepo *db.RefreshTokenRepository,
	verificationTokenRepo *db.AccountTokenRepository,
	resetTokenRepo *db.AccountTokenRepository,
	activityRepo *db.ActivityRepository,
	progressRepo *db.ProgressRepository,
) *Server {
	tokenService := auth.NewTokenService(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)

	authHandler := NewAuthHandler(
		userRepo,
		refreshTokenRepo,
		verificationTokenRepo,
		resetTokenRepo,
		activityRepo,
		progressRepo,
		tokenService,
		emailService,
		cfg.Auth.TrialDays,
		cfg.Auth.VerificationTokenTTL,
		cfg.Auth.ResetTokenTTL,
	)
	catalogHandler := NewCatalogHandler(progressRepo)
	adminHandler := NewAdminHandler(userRepo, activityRepo)
	healthHandler := NewHealthHandler(cfg.Server.Name, database)

	authMiddleware := NewAuthMiddleware(tokenService, userRepo, cfg.Auth.AdminDomain, cfg.Auth.AdminEmails)

	credentialLimiter := rateLimitByIP(5, time.Minute)
	refreshLimiter := rateLimitByIP(30, time.Minute)
	verifyLimiter := rateLimitByIP(10, time.Minute)

	r := chi.NewRouter()
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(securityHeadersMiddleware)

	r.Get("/health", healthHandler.Check)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(maxBodySizeMiddleware(1 << 20)) // 1 MB

		r.With(authMiddleware.OptionalAuth).Get("/catalog/grades", catalogHandler.ListGrades)

		r.Route("/auth", func(r chi.Router) {
			r.With(credentialLimiter).Post("/register", authHandler.Register)
			r.With(credentialLimiter).Post("/login", authHandler.Login)
			r.With(credentialLimiter).Post("/forgot-password", authHandler.ForgotPassword)
			r.With(credentialLimiter).Post("/reset-password", authHandler.ResetPassword)
			r.With(verifyLimiter).Post("/verify-email", authHandler.VerifyEmail)
			r.With(refreshLimiter).Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.RequireAuth)
				r.Post("/logout", authHandler.Logout)
				r.Get("/profile", authHandler.GetProfile)
				r.Put("/profile", authHandler.UpdateProfile)
			})
		})

		r.Route("/subjects", func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Use(authMiddleware.RequireSubscription)
			r.Get("/", catalogHandler.ListMySubjects)
			r.With(authMiddleware.RequireGradeParam).Get("/{category}", catalogHandler.ListSubjectsForCategory)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Use(authMiddleware.RequireAdmin)
			r.Get("/users", adminHandler.ListUsers)
		})
	})

	return &Server{
		router: r,
		config: cfg,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func rateLimitByIP(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, ErrCodeRateLimitExceeded, "Too many requests. Please try again later.")
		}),
	)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func maxBodySizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
		)
	})
}
