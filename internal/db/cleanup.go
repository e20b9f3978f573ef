package db

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultCleanupInterval = 1 * time.Hour
)

// CleanupService periodically deletes expired refresh, verification, and
// reset tokens so the token tables do not grow without bound.
type CleanupService struct {
	refreshTokens      *RefreshTokenRepository
	verificationTokens *AccountTokenRepository
	resetTokens        *AccountTokenRepository
	interval           time.Duration
}

func NewCleanupService(
	refreshTokens *RefreshTokenRepository,
	verificationTokens *AccountTokenRepository,
	resetTokens *AccountTokenRepository,
) *CleanupService {
	return &CleanupService{
		refreshTokens:      refreshTokens,
		verificationTokens: verificationTokens,
		resetTokens:        resetTokens,
		interval:           DefaultCleanupInterval,
	}
}

func (s *CleanupService) Start(ctx context.Context) {
	slog.Info("starting token cleanup service", "component", "cleanup", "interval", s.interval)

	s.runCleanup()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping token cleanup service", "component", "cleanup")
			return
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

func (s *CleanupService) runCleanup() {
	refreshDeleted, err := s.refreshTokens.DeleteExpired()
	if err != nil {
		slog.Error("error deleting expired refresh tokens", "component", "cleanup", "error", err)
	} else if refreshDeleted > 0 {
		slog.Info("deleted expired refresh tokens", "component", "cleanup", "count", refreshDeleted)
	}

	verificationDeleted, err := s.verificationTokens.DeleteExpired()
	if err != nil {
		slog.Error("error deleting expired verification tokens", "component", "cleanup", "error", err)
	} else if verificationDeleted > 0 {
		slog.Info("deleted expired verification tokens", "component", "cleanup", "count", verificationDeleted)
	}

	resetDeleted, err := s.resetTokens.DeleteExpired()
	if err != nil {
		slog.Error("error deleting expired reset tokens", "component", "cleanup", "error", err)
	} else if resetDeleted > 0 {
		slog.Info("deleted expired reset tokens", "component", "cleanup", "count", resetDeleted)
	}
}
