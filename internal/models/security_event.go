package models

import "time"

// Event types recorded in the security event log
const (
	EventTypeLoginAttempt    = "login_attempt"
	EventTypeAccountLocked   = "account_locked"
	EventTypeAccountUnlocked = "account_unlocked"
	EventTypeNewDeviceLogin  = "new_device_login"
	EventTypeSessionVerify   = "session_verify"
)

// SecurityEvent is one append-only row in the security event log. Every
// authentication attempt and session verification produces one; lockout
// transitions and new-device detections produce additional flagged rows.
type SecurityEvent struct {
	ID                string    `db:"id"`
	EventType         string    `db:"event_type"`
	Email             string    `db:"email"`
	IPAddress         string    `db:"ip_address"`
	UserAgent         string    `db:"user_agent"`
	DeviceFingerprint string    `db:"device_fingerprint"`
	Success           bool      `db:"success"`
	FailureReason     *string   `db:"failure_reason"`
	CreatedAt         time.Time `db:"created_at"`
}

// KnownIdentity is a fingerprint/IP pair seen on a past successful event
type KnownIdentity struct {
	DeviceFingerprint string
	IPAddress         string
}

// AttemptCounts aggregates login attempt outcomes within a window
type AttemptCounts struct {
	Total      int
	Successful int
	Failed     int
}

// OffendingIP aggregates failed attempts per source IP for the analytics view
type OffendingIP struct {
	IPAddress   string    `json:"ipAddress"`
	FailedCount int       `json:"failedCount"`
	LastAttempt time.Time `json:"lastAttempt"`
}

// SecurityOverview is the read-side aggregation over a trailing N-day window
type SecurityOverview struct {
	WindowDays      int           `json:"windowDays"`
	TotalAttempts   int           `json:"totalAttempts"`
	SuccessfulCount int           `json:"successfulCount"`
	FailedCount     int           `json:"failedCount"`
	SuccessRate     string        `json:"successRate"`
	LockoutCount    int           `json:"lockoutCount"`
	TopOffenders    []OffendingIP `json:"topOffenders"`
}

// EventFilter narrows raw event log retrieval for the admin UI
type EventFilter struct {
	EventType string
	Email     string
	IPAddress string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}
