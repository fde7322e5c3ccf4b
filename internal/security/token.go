package security

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hooksmedia/gatekeeper/internal/models"
)

// LegacyTokenPrefix identifies the old unsigned session token format
// ("admin_<unixmillis>_<random>") still accepted for backward compatibility.
const LegacyTokenPrefix = "admin_"

// TokenService issues and verifies compact signed session tokens: three
// dot-separated base64url segments (header, payload, HMAC-SHA256 signature)
// keyed by the server secret.
type TokenService struct {
	secret         []byte
	sessionTimeout time.Duration
}

// NewTokenService creates a TokenService with the given signing secret and
// token lifetime.
func NewTokenService(secret string, sessionTimeout time.Duration) *TokenService {
	return &TokenService{
		secret:         []byte(secret),
		sessionTimeout: sessionTimeout,
	}
}

// Issue signs the claims with iat=now and exp=now+sessionTimeout
func (ts *TokenService) Issue(claims models.SessionClaims) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ts.sessionTimeout))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)

	signed, err := token.SignedString(ts.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify validates structure, signature, and expiry, returning the decoded
// claims. Signature comparison is constant-time (hmac.Equal inside the
// library), a hardening over plain equality.
func (ts *TokenService) Verify(tokenString string) (*models.SessionClaims, error) {
	if strings.Count(tokenString, ".") != 2 {
		return nil, models.ErrMalformedToken
	}

	claims := &models.SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.secret, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, models.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, models.ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, models.ErrMalformedToken
		default:
			return nil, models.ErrMalformedToken
		}
	}

	if !token.Valid {
		return nil, models.ErrInvalidSignature
	}

	return claims, nil
}

// ParseLegacyToken accepts the old unsigned "admin_<unixmillis>_<random>"
// format by prefix sniffing. There is no signature; the token is valid for
// the grace window from its embedded timestamp. The prefix implies an admin
// session in the legacy scheme.
func ParseLegacyToken(tokenString string, grace time.Duration, now time.Time) (*models.VerifiedIdentity, error) {
	if !strings.HasPrefix(tokenString, LegacyTokenPrefix) {
		return nil, models.ErrMalformedToken
	}

	parts := strings.Split(tokenString, "_")
	if len(parts) < 3 {
		return nil, models.ErrMalformedToken
	}

	millis, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, models.ErrMalformedToken
	}

	issuedAt := time.UnixMilli(millis)
	if issuedAt.After(now) || now.Sub(issuedAt) > grace {
		return nil, models.ErrTokenExpired
	}

	return &models.VerifiedIdentity{
		TokenID: tokenString,
		Role:    "admin",
		Legacy:  true,
	}, nil
}
