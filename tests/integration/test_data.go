package integration

import (
	"fmt"
	"time"
)

// TestUser generates unique test user credentials using a timestamp
func TestUser(suffix string) (email, password string) {
	ts := time.Now().UnixNano()
	email = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	password = "TestPassword123"
	return
}

// LegacyToken builds a legacy-format token with the given age
func LegacyToken(age time.Duration) string {
	ts := time.Now().Add(-age).UnixMilli()
	return fmt.Sprintf("admin_%d_e7b4f2a19c", ts)
}
