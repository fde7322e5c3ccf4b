package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hooksmedia/gatekeeper/internal/models"
	"github.com/hooksmedia/gatekeeper/internal/services"
	pkghttp "github.com/hooksmedia/gatekeeper/pkg/http"
)

// AnalyticsServiceInterface defines the read-side operations for the admin API
type AnalyticsServiceInterface interface {
	Overview(ctx context.Context, days int) (*models.SecurityOverview, error)
	Logs(ctx context.Context, filter models.EventFilter) (*services.AuditLogPage, error)
}

// LockoutServiceInterface defines the lockout administration operations
type LockoutServiceInterface interface {
	ListLocked(ctx context.Context) ([]*models.AccountLockout, error)
	ManualLock(ctx context.Context, email, reason string, duration time.Duration) error
	ManualUnlock(ctx context.Context, email string) error
}

// SecurityHandler handles the admin security API
type SecurityHandler struct {
	analytics AnalyticsServiceInterface
	lockouts  LockoutServiceInterface
}

// NewSecurityHandler creates a new SecurityHandler
func NewSecurityHandler(analytics AnalyticsServiceInterface, lockouts LockoutServiceInterface) *SecurityHandler {
	return &SecurityHandler{
		analytics: analytics,
		lockouts:  lockouts,
	}
}

// LockRequest represents the request body for a manual account lock
type LockRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Reason          string `json:"reason" validate:"required,min=3,max=200"`
	DurationMinutes int    `json:"durationMinutes" validate:"gte=1,lte=10080"`
}

// Analytics returns the aggregated security overview for a trailing window
// of ?days=N (default 7)
func (h *SecurityHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			pkghttp.WriteBadRequest(w, "days must be an integer")
			return
		}
		days = parsed
	}

	overview, err := h.analytics.Overview(r.Context(), days)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to build security overview")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, overview)
}

// AuditLogs returns one filtered page of the raw security event log
func (h *SecurityHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEventFilter(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	page, err := h.analytics.Logs(r.Context(), filter)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to list audit logs")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, page)
}

// ListLockouts returns all currently locked accounts
func (h *SecurityHandler) ListLockouts(w http.ResponseWriter, r *http.Request) {
	lockouts, err := h.lockouts.ListLocked(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to list lockouts")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"lockouts": lockouts,
		"count":    len(lockouts),
	})
}

// CreateLockout force-locks an account
func (h *SecurityHandler) CreateLockout(w http.ResponseWriter, r *http.Request) {
	var req LockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	duration := time.Duration(req.DurationMinutes) * time.Minute

	if err := h.lockouts.ManualLock(r.Context(), email, req.Reason, duration); err != nil {
		pkghttp.WriteInternalError(w, "Failed to lock account")
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"email":   email,
	})
}

// DeleteLockout unlocks an account identified by ?email=
func (h *SecurityHandler) DeleteLockout(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("email")))
	if email == "" {
		pkghttp.WriteBadRequest(w, "email query parameter is required")
		return
	}

	if err := h.lockouts.ManualUnlock(r.Context(), email); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Account is not locked")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to unlock account")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"email":   email,
	})
}

// parseEventFilter builds an EventFilter from audit-log query parameters
func parseEventFilter(r *http.Request) (models.EventFilter, error) {
	q := r.URL.Query()

	filter := models.EventFilter{
		EventType: q.Get("type"),
		Email:     strings.ToLower(strings.TrimSpace(q.Get("email"))),
		IPAddress: q.Get("ip"),
	}

	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("from must be an RFC3339 timestamp")
		}
		filter.From = &from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("to must be an RFC3339 timestamp")
		}
		filter.To = &to
	}

	limit := 50
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return filter, errors.New("limit must be a positive integer")
		}
		limit = parsed
	}
	filter.Limit = limit

	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return filter, errors.New("page must be a positive integer")
		}
		filter.Offset = (page - 1) * limit
	}

	return filter, nil
}
