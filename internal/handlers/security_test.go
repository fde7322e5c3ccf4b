package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hooksmedia/gatekeeper/internal/models"
	"github.com/hooksmedia/gatekeeper/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityHandler_Analytics(t *testing.T) {
	analytics := &MockAnalyticsService{
		OverviewFunc: func(ctx context.Context, days int) (*models.SecurityOverview, error) {
			assert.Equal(t, 30, days)
			return &models.SecurityOverview{
				WindowDays:    30,
				TotalAttempts: 42,
				SuccessRate:   "85.71",
			}, nil
		},
	}

	handler := NewSecurityHandler(analytics, &MockLockoutService{})
	req := httptest.NewRequest(http.MethodGet, "/security/analytics?days=30", nil)
	rec := httptest.NewRecorder()

	handler.Analytics(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp models.SecurityOverview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 42, resp.TotalAttempts)
	assert.Equal(t, "85.71", resp.SuccessRate)
}

func TestSecurityHandler_Analytics_BadDays(t *testing.T) {
	handler := NewSecurityHandler(&MockAnalyticsService{}, &MockLockoutService{})
	req := httptest.NewRequest(http.MethodGet, "/security/analytics?days=soon", nil)
	rec := httptest.NewRecorder()

	handler.Analytics(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSecurityHandler_AuditLogs_Filters(t *testing.T) {
	var gotFilter models.EventFilter
	analytics := &MockAnalyticsService{
		LogsFunc: func(ctx context.Context, filter models.EventFilter) (*services.AuditLogPage, error) {
			gotFilter = filter
			return &services.AuditLogPage{
				Events: []*models.SecurityEvent{{EventType: models.EventTypeLoginAttempt}},
				Total:  1,
				Limit:  filter.Limit,
			}, nil
		},
	}

	handler := NewSecurityHandler(analytics, &MockLockoutService{})
	req := httptest.NewRequest(http.MethodGet,
		"/security/audit-logs?type=login_attempt&email=Owner@Example.com&ip=203.0.113.7&page=3&limit=20", nil)
	rec := httptest.NewRecorder()

	handler.AuditLogs(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.EventTypeLoginAttempt, gotFilter.EventType)
	assert.Equal(t, "owner@example.com", gotFilter.Email)
	assert.Equal(t, "203.0.113.7", gotFilter.IPAddress)
	assert.Equal(t, 20, gotFilter.Limit)
	assert.Equal(t, 40, gotFilter.Offset)
}

func TestSecurityHandler_AuditLogs_BadTimestamp(t *testing.T) {
	handler := NewSecurityHandler(&MockAnalyticsService{}, &MockLockoutService{})
	req := httptest.NewRequest(http.MethodGet, "/security/audit-logs?from=yesterday", nil)
	rec := httptest.NewRecorder()

	handler.AuditLogs(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSecurityHandler_ListLockouts(t *testing.T) {
	lockouts := &MockLockoutService{
		ListLockedFunc: func(ctx context.Context) ([]*models.AccountLockout, error) {
			return []*models.AccountLockout{
				{Email: "owner@example.com", UnlockTime: time.Now().Add(10 * time.Minute)},
			}, nil
		},
	}

	handler := NewSecurityHandler(&MockAnalyticsService{}, lockouts)
	req := httptest.NewRequest(http.MethodGet, "/security/account-lockout", nil)
	rec := httptest.NewRecorder()

	handler.ListLockouts(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["count"])
}

func TestSecurityHandler_CreateLockout(t *testing.T) {
	var gotEmail, gotReason string
	var gotDuration time.Duration
	lockouts := &MockLockoutService{
		ManualLockFunc: func(ctx context.Context, email, reason string, duration time.Duration) error {
			gotEmail, gotReason, gotDuration = email, reason, duration
			return nil
		},
	}

	body, err := json.Marshal(map[string]interface{}{
		"email":           "Owner@Example.com",
		"reason":          "Suspicious activity",
		"durationMinutes": 60,
	})
	require.NoError(t, err)

	handler := NewSecurityHandler(&MockAnalyticsService{}, lockouts)
	req := httptest.NewRequest(http.MethodPost, "/security/account-lockout", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()

	handler.CreateLockout(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "owner@example.com", gotEmail)
	assert.Equal(t, "Suspicious activity", gotReason)
	assert.Equal(t, time.Hour, gotDuration)
}

func TestSecurityHandler_CreateLockout_MissingReason(t *testing.T) {
	body, err := json.Marshal(map[string]interface{}{
		"email":           "owner@example.com",
		"durationMinutes": 60,
	})
	require.NoError(t, err)

	handler := NewSecurityHandler(&MockAnalyticsService{}, &MockLockoutService{})
	req := httptest.NewRequest(http.MethodPost, "/security/account-lockout", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()

	handler.CreateLockout(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSecurityHandler_DeleteLockout(t *testing.T) {
	var unlocked string
	lockouts := &MockLockoutService{
		ManualUnlockFunc: func(ctx context.Context, email string) error {
			unlocked = email
			return nil
		},
	}

	handler := NewSecurityHandler(&MockAnalyticsService{}, lockouts)
	req := httptest.NewRequest(http.MethodDelete, "/security/account-lockout?email=owner@example.com", nil)
	rec := httptest.NewRecorder()

	handler.DeleteLockout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "owner@example.com", unlocked)
}

func TestSecurityHandler_DeleteLockout_NotLocked(t *testing.T) {
	lockouts := &MockLockoutService{
		ManualUnlockFunc: func(ctx context.Context, email string) error {
			return models.ErrNotFound
		},
	}

	handler := NewSecurityHandler(&MockAnalyticsService{}, lockouts)
	req := httptest.NewRequest(http.MethodDelete, "/security/account-lockout?email=owner@example.com", nil)
	rec := httptest.NewRecorder()

	handler.DeleteLockout(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSecurityHandler_DeleteLockout_MissingEmail(t *testing.T) {
	handler := NewSecurityHandler(&MockAnalyticsService{}, &MockLockoutService{})
	req := httptest.NewRequest(http.MethodDelete, "/security/account-lockout", nil)
	rec := httptest.NewRecorder()

	handler.DeleteLockout(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
