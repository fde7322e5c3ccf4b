package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitService_Check_UnderLimit(t *testing.T) {
	events := &MockEventRepository{
		CountAttemptsByIPFunc: func(ctx context.Context, ip string, since time.Time) (int, error) {
			return 3, nil
		},
	}

	service := NewRateLimitService(events, testSecurityConfig(), newTestLogger())
	result := service.Check(context.Background(), "203.0.113.7")

	assert.True(t, result.Allowed)
	assert.Equal(t, 7, result.Remaining)
}

func TestRateLimitService_Check_AtLimit(t *testing.T) {
	cfg := testSecurityConfig()
	events := &MockEventRepository{
		CountAttemptsByIPFunc: func(ctx context.Context, ip string, since time.Time) (int, error) {
			return cfg.MaxRequestsPerIP, nil
		},
	}

	service := NewRateLimitService(events, cfg, newTestLogger())
	result := service.Check(context.Background(), "203.0.113.7")

	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
}

func TestRateLimitService_Check_OverLimitRemainingClamped(t *testing.T) {
	events := &MockEventRepository{
		CountAttemptsByIPFunc: func(ctx context.Context, ip string, since time.Time) (int, error) {
			return 25, nil
		},
	}

	service := NewRateLimitService(events, testSecurityConfig(), newTestLogger())
	result := service.Check(context.Background(), "203.0.113.7")

	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
}

func TestRateLimitService_Check_FailsOpenOnStorageError(t *testing.T) {
	cfg := testSecurityConfig()
	events := &MockEventRepository{
		CountAttemptsByIPFunc: func(ctx context.Context, ip string, since time.Time) (int, error) {
			return 0, errors.New("connection refused")
		},
	}

	service := NewRateLimitService(events, cfg, newTestLogger())
	result := service.Check(context.Background(), "203.0.113.7")

	assert.True(t, result.Allowed)
	assert.Equal(t, cfg.MaxRequestsPerIP, result.Remaining)
}

func TestRateLimitService_Check_WindowStart(t *testing.T) {
	cfg := testSecurityConfig()

	var gotSince time.Time
	events := &MockEventRepository{
		CountAttemptsByIPFunc: func(ctx context.Context, ip string, since time.Time) (int, error) {
			gotSince = since
			return 0, nil
		},
	}

	service := NewRateLimitService(events, cfg, newTestLogger())
	service.Check(context.Background(), "203.0.113.7")

	assert.WithinDuration(t, time.Now().Add(-cfg.RateLimitWindow), gotSince, 5*time.Second)
}
