package services

import (
	"context"
	"log/slog"

	"github.com/hooksmedia/gatekeeper/internal/models"
	pkglogger "github.com/hooksmedia/gatekeeper/pkg/logger"
)

// EventWriter defines the write side of the security event log
type EventWriter interface {
	Record(ctx context.Context, event *models.SecurityEvent) error
}

// AuditService appends security events with a dual-write pattern: immediate
// slog output plus a durable row. Persistence failures are logged and
// swallowed; audit logging is best-effort and never aborts the
// authentication decision it describes.
type AuditService struct {
	repo        EventWriter
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuditService creates a new AuditService
func NewAuditService(repo EventWriter, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuditService {
	return &AuditService{
		repo:        repo,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Record writes one security event
func (s *AuditService) Record(ctx context.Context, event *models.SecurityEvent) {
	reason := ""
	if event.FailureReason != nil {
		reason = *event.FailureReason
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     event.EventType,
		Email:         event.Email,
		IPAddress:     event.IPAddress,
		Fingerprint:   event.DeviceFingerprint,
		Success:       event.Success,
		FailureReason: reason,
	})

	if err := s.repo.Record(ctx, event); err != nil {
		s.logger.Error("failed to persist security event",
			slog.String("event_type", event.EventType),
			slog.Any("error", err),
		)
	}
}

// RecordAccountAction writes a lockout transition or administrative
// override. These go through the account-action log channel rather than the
// auth-attempt one, with the action metadata attached.
func (s *AuditService) RecordAccountAction(ctx context.Context, event *models.SecurityEvent, metadata map[string]string) {
	s.auditLogger.LogAccountAction(event.EventType, event.Email, event.IPAddress, metadata)

	if err := s.repo.Record(ctx, event); err != nil {
		s.logger.Error("failed to persist security event",
			slog.String("event_type", event.EventType),
			slog.Any("error", err),
		)
	}
}

// RecordLoginAttempt is shorthand for the common login_attempt event
func (s *AuditService) RecordLoginAttempt(ctx context.Context, email, ip, userAgent, fingerprint string, success bool, failureReason string) {
	event := &models.SecurityEvent{
		EventType:         models.EventTypeLoginAttempt,
		Email:             email,
		IPAddress:         ip,
		UserAgent:         userAgent,
		DeviceFingerprint: fingerprint,
		Success:           success,
	}
	if failureReason != "" {
		event.FailureReason = &failureReason
	}

	s.Record(ctx, event)
}
