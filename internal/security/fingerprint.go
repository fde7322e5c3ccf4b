package security

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// FingerprintLength is the hex prefix length of the device fingerprint
const FingerprintLength = 16

// ClientIP derives the client address from proxy headers in priority order:
// X-Forwarded-For (first entry), X-Real-IP, CF-Connecting-IP, then the raw
// socket address. It never fails; "unknown" is the terminal fallback.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	if cf := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); cf != "" {
		return cf
	}

	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}

	return "unknown"
}

// DeviceFingerprint hashes the stable request headers together with the
// client IP into a short hex identifier. Deterministic: the same header/IP
// combination always yields the same fingerprint, which is what makes
// new-device detection possible.
func DeviceFingerprint(r *http.Request, clientIP string) string {
	parts := []string{
		r.Header.Get("User-Agent"),
		r.Header.Get("Accept-Language"),
		r.Header.Get("Accept-Encoding"),
		clientIP,
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:FingerprintLength]
}

// RedactFingerprint returns the short prefix exposed to clients in the
// login response security block.
func RedactFingerprint(fingerprint string) string {
	if len(fingerprint) <= 8 {
		return fingerprint
	}
	return fingerprint[:8] + "..."
}
