package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hooksmedia/gatekeeper/internal/models"
)

const (
	defaultOverviewDays = 7
	maxOverviewDays     = 90
	topOffenderLimit    = 10

	defaultLogPageSize = 50
	maxLogPageSize     = 200
)

// EventReader defines the aggregation queries the analytics service needs
type EventReader interface {
	CountAttemptOutcomes(ctx context.Context, since time.Time) (models.AttemptCounts, error)
	CountLockouts(ctx context.Context, since time.Time) (int, error)
	TopOffendingIPs(ctx context.Context, since time.Time, limit int) ([]models.OffendingIP, error)
	List(ctx context.Context, filter models.EventFilter) ([]*models.SecurityEvent, error)
	Count(ctx context.Context, filter models.EventFilter) (int, error)
}

// AuditLogPage is one page of the raw event log
type AuditLogPage struct {
	Events []*models.SecurityEvent `json:"events"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

// AnalyticsService builds the admin-facing read side over the event log
type AnalyticsService struct {
	events EventReader
	logger *slog.Logger
}

// NewAnalyticsService creates a new AnalyticsService
func NewAnalyticsService(events EventReader, logger *slog.Logger) *AnalyticsService {
	return &AnalyticsService{events: events, logger: logger}
}

// Overview aggregates login outcomes, lockouts, and top offending IPs over a
// trailing window of whole days. Days outside [1, 90] fall back to 7.
func (s *AnalyticsService) Overview(ctx context.Context, days int) (*models.SecurityOverview, error) {
	if days < 1 || days > maxOverviewDays {
		days = defaultOverviewDays
	}
	since := time.Now().AddDate(0, 0, -days)

	counts, err := s.events.CountAttemptOutcomes(ctx, since)
	if err != nil {
		s.logger.Error("failed to count attempt outcomes", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	lockouts, err := s.events.CountLockouts(ctx, since)
	if err != nil {
		s.logger.Error("failed to count lockouts", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	offenders, err := s.events.TopOffendingIPs(ctx, since, topOffenderLimit)
	if err != nil {
		s.logger.Error("failed to rank offending IPs", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &models.SecurityOverview{
		WindowDays:      days,
		TotalAttempts:   counts.Total,
		SuccessfulCount: counts.Successful,
		FailedCount:     counts.Failed,
		SuccessRate:     successRate(counts.Successful, counts.Total),
		LockoutCount:    lockouts,
		TopOffenders:    offenders,
	}, nil
}

// Logs returns one filtered, paginated page of the raw event log
func (s *AnalyticsService) Logs(ctx context.Context, filter models.EventFilter) (*AuditLogPage, error) {
	if filter.Limit < 1 || filter.Limit > maxLogPageSize {
		filter.Limit = defaultLogPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	total, err := s.events.Count(ctx, filter)
	if err != nil {
		s.logger.Error("failed to count audit log entries", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	events, err := s.events.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list audit log entries", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &AuditLogPage{
		Events: events,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

// successRate formats the success percentage with two decimals; an empty
// window reads as 0.00 rather than dividing by zero
func successRate(successful, total int) string {
	if total == 0 {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", float64(successful)/float64(total)*100)
}
