package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the payload carried by a signed session token. The token
// ID (jti) ties the token to the account's single ActiveSession row.
type SessionClaims struct {
	Email             string `json:"email"`
	Name              string `json:"name,omitempty"`
	Role              string `json:"role"`
	DeviceFingerprint string `json:"fingerprint,omitempty"`
	IPAddress         string `json:"ip,omitempty"`
	jwt.RegisteredClaims
}

// VerifiedIdentity is the outcome of any token verification strategy,
// normalized across the signed, legacy, and persisted-session paths.
type VerifiedIdentity struct {
	Email             string
	Name              string
	Role              string
	TokenID           string
	DeviceFingerprint string
	IPAddress         string
	// Legacy marks identities recovered from the unsigned token format or a
	// persisted session row rather than a verified signature.
	Legacy bool
}
