package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/hooksmedia/gatekeeper/internal/handlers"
	"github.com/hooksmedia/gatekeeper/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	securityHandler *handlers.SecurityHandler,
	verifier middleware.TokenVerifier,
) {
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	// Public auth endpoints, shed abusive traffic at the transport layer
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(rateLimitConfig))

		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/secure-login", authHandler.SecureLogin)
		r.Post("/auth/session-verify", authHandler.SessionVerify)
	})

	router.Get("/auth/verify", authHandler.Verify)
	router.Post("/auth/logout", authHandler.Logout)

	// Admin-only security API
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(verifier))

		r.Get("/security/analytics", securityHandler.Analytics)
		r.Get("/security/audit-logs", securityHandler.AuditLogs)
		r.Get("/security/account-lockout", securityHandler.ListLockouts)
		r.Post("/security/account-lockout", securityHandler.CreateLockout)
		r.Delete("/security/account-lockout", securityHandler.DeleteLockout)
	})
}
