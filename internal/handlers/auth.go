package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hooksmedia/gatekeeper/internal/models"
	"github.com/hooksmedia/gatekeeper/internal/security"
	"github.com/hooksmedia/gatekeeper/internal/services"
	pkghttp "github.com/hooksmedia/gatekeeper/pkg/http"
)

// AuthServiceInterface defines the interface for the authentication flows
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string, req services.RequestContext) (*services.LoginResult, error)
	Verify(ctx context.Context, token string, req services.RequestContext) (*services.VerifyResult, error)
	Logout(ctx context.Context, token string)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// Request DTOs

// LoginRequest represents the request body for both login endpoints.
// Deliberately unvalidated: missing credentials must reach the service so
// the attempt is audit-logged before the 400 goes out.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionVerifyRequest represents the request body for session verification
type SessionVerifyRequest struct {
	Token string `json:"token" validate:"required"`
}

// requestContext extracts the client identity the security services need
func requestContext(r *http.Request) services.RequestContext {
	ip := security.ClientIP(r)
	return services.RequestContext{
		IPAddress:   ip,
		UserAgent:   r.Header.Get("User-Agent"),
		Fingerprint: security.DeviceFingerprint(r, ip),
	}
}

// Login handles the legacy login endpoint. The response keeps the original
// success/user/sessionToken shape so existing clients continue to work; the
// full security pipeline still runs behind it.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeLegacyError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password, requestContext(r))
	if err != nil {
		status, message := loginErrorStatus(w, err)
		writeLegacyError(w, status, message)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"user":         result.User,
		"sessionToken": result.Token,
	})
}

// SecureLogin handles the full login endpoint, returning the per-login
// security block alongside the token
func (h *AuthHandler) SecureLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password, requestContext(r))
	if err != nil {
		h.writeLoginError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"user":         result.User,
		"token":        result.Token,
		"sessionToken": result.Token,
		"security":     result.Security,
	})
}

// Verify handles bearer-token verification
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Missing or invalid authorization header")
		return
	}

	result, err := h.service.Verify(r.Context(), token, requestContext(r))
	if err != nil {
		pkghttp.WriteUnauthorized(w, "Invalid or expired session")
		return
	}

	resp := map[string]interface{}{
		"success": true,
		"user": map[string]interface{}{
			"email": result.Identity.Email,
			"name":  result.Identity.Name,
			"role":  result.Identity.Role,
		},
	}
	if result.Session != nil {
		resp["session"] = map[string]interface{}{
			"createdAt":    result.Session.CreatedAt,
			"lastActivity": result.Session.LastActivity,
			"ipAddress":    result.Session.IPAddress,
		}
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// SessionVerify handles token verification with the token in the body,
// the shape the back-office client posts
func (h *AuthHandler) SessionVerify(w http.ResponseWriter, r *http.Request) {
	var req SessionVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Verify(r.Context(), req.Token, requestContext(r))
	if err != nil {
		pkghttp.WriteUnauthorized(w, "Invalid or expired session")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"valid":  true,
		"email":  result.Identity.Email,
		"role":   result.Identity.Role,
		"legacy": result.Identity.Legacy,
	})
}

// Logout handles session invalidation. Always succeeds from the client's
// perspective.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := bearerToken(r); ok {
		h.service.Logout(r.Context(), token)
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// writeLoginError maps flow errors onto the status codes of the secure
// login contract: 400/429/423/401/403/500
func (h *AuthHandler) writeLoginError(w http.ResponseWriter, err error) {
	var rateErr *models.RateLimitedError
	var lockErr *models.LockedError

	switch {
	case errors.Is(err, models.ErrMissingCredentials):
		pkghttp.WriteBadRequest(w, "Email and password are required")
	case errors.As(err, &rateErr):
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rateErr.RetryAfter.Seconds())))
		pkghttp.WriteTooManyRequests(w, "Too many login attempts. Please try again later.")
	case errors.As(err, &lockErr):
		pkghttp.WriteJSON(w, http.StatusLocked, map[string]interface{}{
			"error":      "account_locked",
			"message":    "Account temporarily locked due to failed login attempts",
			"unlockTime": lockErr.UnlockTime,
		})
	case errors.Is(err, models.ErrInvalidCredentials):
		// Generic message; unknown account and wrong password look identical
		pkghttp.WriteUnauthorized(w, "Invalid email or password")
	case errors.Is(err, models.ErrAccountDisabled):
		pkghttp.WriteForbidden(w, "Account is disabled")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// loginErrorStatus resolves the status and generic message for the legacy
// response shape, setting Retry-After when applicable
func loginErrorStatus(w http.ResponseWriter, err error) (int, string) {
	var rateErr *models.RateLimitedError
	var lockErr *models.LockedError

	switch {
	case errors.Is(err, models.ErrMissingCredentials):
		return http.StatusBadRequest, "Email and password are required"
	case errors.As(err, &rateErr):
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rateErr.RetryAfter.Seconds())))
		return http.StatusTooManyRequests, "Too many login attempts. Please try again later."
	case errors.As(err, &lockErr):
		return http.StatusLocked, "Account temporarily locked due to failed login attempts"
	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, models.ErrAccountDisabled):
		return http.StatusForbidden, "Account is disabled"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// writeLegacyError emits the original {success:false, error} body
func writeLegacyError(w http.ResponseWriter, status int, message string) {
	pkghttp.WriteJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// bearerToken extracts the token from an Authorization: Bearer header
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
