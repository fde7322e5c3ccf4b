package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/hooksmedia/gatekeeper/internal/config"
)

// AttemptCounter defines the query the rate limiter needs from the event log
type AttemptCounter interface {
	CountAttemptsByIP(ctx context.Context, ipAddress string, since time.Time) (int, error)
}

// RateLimitResult is the admit/reject decision for one source IP
type RateLimitResult struct {
	Allowed   bool
	Remaining int
}

// RateLimitService counts recent login attempts per IP over a sliding
// window, re-querying the event log on every check rather than keeping
// separate counter state.
type RateLimitService struct {
	repo   AttemptCounter
	config config.SecurityConfig
	logger *slog.Logger
}

// NewRateLimitService creates a new RateLimitService
func NewRateLimitService(repo AttemptCounter, cfg config.SecurityConfig, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		repo:   repo,
		config: cfg,
		logger: logger,
	}
}

// Check counts login attempts from the IP within the trailing window.
// Storage failures fail OPEN: availability is favored over strict rate
// enforcement, so a database outage never blocks legitimate logins. This is
// an intentional policy, not a gap in error handling.
func (s *RateLimitService) Check(ctx context.Context, ipAddress string) RateLimitResult {
	since := time.Now().Add(-s.config.RateLimitWindow)

	count, err := s.repo.CountAttemptsByIP(ctx, ipAddress, since)
	if err != nil {
		s.logger.Error("rate limit check failed, failing open",
			slog.String("ip_address", ipAddress),
			slog.Any("error", err),
		)
		return RateLimitResult{Allowed: true, Remaining: s.config.MaxRequestsPerIP}
	}

	remaining := s.config.MaxRequestsPerIP - count
	if remaining < 0 {
		remaining = 0
	}

	return RateLimitResult{
		Allowed:   count < s.config.MaxRequestsPerIP,
		Remaining: remaining,
	}
}
