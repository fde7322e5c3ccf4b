package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hooksmedia/gatekeeper/internal/models"
	pkghttp "github.com/hooksmedia/gatekeeper/pkg/http"
)

type contextKey string

const identityContextKey contextKey = "verified_identity"

// TokenVerifier is the verification entry point the middleware gates on,
// satisfied by the three-tier verify chain
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.VerifiedIdentity, error)
}

// RequireAdmin gates a route subtree behind a verified bearer token whose
// identity carries the admin role. 401 for missing/invalid tokens, 403 for
// valid non-admin identities.
func RequireAdmin(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				pkghttp.WriteUnauthorized(w, "Missing authorization header")
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				pkghttp.WriteUnauthorized(w, "Invalid authorization header")
				return
			}

			identity, err := verifier.Verify(r.Context(), parts[1])
			if err != nil {
				pkghttp.WriteUnauthorized(w, "Invalid or expired token")
				return
			}

			if identity.Role != "admin" {
				pkghttp.WriteForbidden(w, "Admin access required")
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the verified identity placed by RequireAdmin
func IdentityFromContext(ctx context.Context) (*models.VerifiedIdentity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*models.VerifiedIdentity)
	return identity, ok
}
