package models

import "time"

// ActiveSession is the single live session per account. A token is only valid
// while a row with matching email + token ID exists; a new login replaces the
// previous row wholesale.
type ActiveSession struct {
	Email             string    `db:"email"`
	TokenID           string    `db:"token_id"`
	IPAddress         string    `db:"ip_address"`
	DeviceFingerprint string    `db:"device_fingerprint"`
	UserAgent         string    `db:"user_agent"`
	CreatedAt         time.Time `db:"created_at"`
	LastActivity      time.Time `db:"last_activity"`
	IsNewDevice       bool      `db:"is_new_device"`
	IsNewIP           bool      `db:"is_new_ip"`
}
