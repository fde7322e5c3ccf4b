package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/hooksmedia/gatekeeper/internal/config"
	"github.com/hooksmedia/gatekeeper/internal/database"
	"github.com/hooksmedia/gatekeeper/internal/handlers"
	middlewareCustom "github.com/hooksmedia/gatekeeper/internal/middleware"
	"github.com/hooksmedia/gatekeeper/internal/routes"
	"github.com/hooksmedia/gatekeeper/internal/security"
	"github.com/hooksmedia/gatekeeper/internal/services"
	pkglogger "github.com/hooksmedia/gatekeeper/pkg/logger"
)

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server *httptest.Server
	DB     *database.DB
	Config *config.Config
	logger *slog.Logger
}

// TestSecurityConfig returns the thresholds the integration suite runs with
func TestSecurityConfig() config.SecurityConfig {
	return config.SecurityConfig{
		TokenSecret:         "test-secret-32-characters-long!!",
		RateLimitWindow:     15 * time.Minute,
		MaxRequestsPerIP:    10,
		MaxLoginAttempts:    5,
		LockoutDuration:     15 * time.Minute,
		SessionTimeout:      60 * time.Minute,
		LegacyTokenGrace:    24 * time.Hour,
		DeviceHistoryWindow: 30 * 24 * time.Hour,
		DeviceHistoryDepth:  5,
		EventRetention:      30 * 24 * time.Hour,
		CleanupInterval:     time.Hour,
	}
}

// NewTestServer initializes a complete HTTP server against a real database
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port: "0",
			Env:  "test",
		},
		Security: TestSecurityConfig(),
	}

	userRepo, eventRepo, lockoutRepo, sessionRepo := InitializeRepositories(db)

	auditLogger := pkglogger.NewAuditLogger(logger)
	auditService := services.NewAuditService(eventRepo, logger, auditLogger)
	rateLimitService := services.NewRateLimitService(eventRepo, cfg.Security, logger)
	lockoutService := services.NewLockoutService(lockoutRepo, eventRepo, auditService, cfg.Security, logger)
	tokenService := security.NewTokenService(cfg.Security.TokenSecret, cfg.Security.SessionTimeout)
	verifyChain := security.NewVerifyChain(tokenService, sessionRepo, cfg.Security.LegacyTokenGrace, cfg.Security.SessionTimeout)

	authService := services.NewAuthService(
		userRepo,
		sessionRepo,
		eventRepo,
		rateLimitService,
		lockoutService,
		tokenService,
		verifyChain,
		auditService,
		cfg.Security,
		logger,
	)
	analyticsService := services.NewAnalyticsService(eventRepo, logger)

	authHandler := handlers.NewAuthHandler(authService)
	securityHandler := handlers.NewSecurityHandler(analyticsService, lockoutService)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(r, authHandler, securityHandler, verifyChain)

	server := httptest.NewServer(r)

	return &TestServer{
		Server: server,
		DB:     db,
		Config: cfg,
		logger: logger,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with a bearer token
func (ts *TestServer) RequestWithAuth(method, path, token string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + token,
	}
	return ts.Request(method, path, body, headers)
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// ExtractSessionToken extracts the session token from a login response
func ExtractSessionToken(resp *http.Response) (string, error) {
	defer resp.Body.Close()

	var loginResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if token, ok := loginResp["sessionToken"].(string); ok {
		return token, nil
	}
	return "", fmt.Errorf("response has no sessionToken field")
}

// GetErrorMessage extracts the error message from an error response
func GetErrorMessage(resp *http.Response) (string, error) {
	defer resp.Body.Close()

	var errResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return "", err
	}
	if msg, ok := errResp["message"].(string); ok {
		return msg, nil
	}
	if msg, ok := errResp["error"].(string); ok {
		return msg, nil
	}
	return "", nil
}
