package integration

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAuthFlow exercises the full login/verify/lockout cycle against a real
// postgres container. Run with -short to skip.
func TestAuthFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	defer testDB.Teardown(ctx)

	server := NewTestServer(testDB.DB)
	defer server.Close()

	t.Run("login issues a verifiable token", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))

		email, password := TestUser("login")
		_, err := SeedUser(ctx, testDB.Pool, email, password, "admin")
		require.NoError(t, err)

		resp, err := server.Request(http.MethodPost, "/auth/secure-login",
			map[string]string{"email": email, "password": password}, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		token, err := ExtractSessionToken(resp)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		verifyResp, err := server.RequestWithAuth(http.MethodGet, "/auth/verify", token, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, verifyResp.StatusCode)
		verifyResp.Body.Close()
	})

	t.Run("wrong password returns generic 401", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))

		email, password := TestUser("badpass")
		_, err := SeedUser(ctx, testDB.Pool, email, password, "user")
		require.NoError(t, err)

		resp, err := server.Request(http.MethodPost, "/auth/secure-login",
			map[string]string{"email": email, "password": "WrongPassword1"}, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		msg, err := GetErrorMessage(resp)
		require.NoError(t, err)
		assert.Equal(t, "Invalid email or password", msg)
	})

	t.Run("fifth failure locks the account", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))

		email, password := TestUser("lockout")
		_, err := SeedUser(ctx, testDB.Pool, email, password, "user")
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			resp, err := server.Request(http.MethodPost, "/auth/secure-login",
				map[string]string{"email": email, "password": "WrongPassword1"}, nil)
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			resp.Body.Close()
		}

		// Sixth attempt is rejected even with the correct password
		resp, err := server.Request(http.MethodPost, "/auth/secure-login",
			map[string]string{"email": email, "password": password}, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusLocked, resp.StatusCode)

		var body map[string]interface{}
		require.NoError(t, ParseJSONResponse(resp, &body))
		assert.NotEmpty(t, body["unlockTime"])
	})

	t.Run("second login invalidates the first session", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))

		email, password := TestUser("replace")
		_, err := SeedUser(ctx, testDB.Pool, email, password, "user")
		require.NoError(t, err)

		first, err := server.Request(http.MethodPost, "/auth/secure-login",
			map[string]string{"email": email, "password": password}, nil)
		require.NoError(t, err)
		firstToken, err := ExtractSessionToken(first)
		require.NoError(t, err)

		second, err := server.Request(http.MethodPost, "/auth/secure-login",
			map[string]string{"email": email, "password": password}, nil)
		require.NoError(t, err)
		second.Body.Close()

		resp, err := server.RequestWithAuth(http.MethodGet, "/auth/verify", firstToken, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("legacy token verifies within grace", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))

		resp, err := server.Request(http.MethodPost, "/auth/session-verify",
			map[string]string{"token": LegacyToken(0)}, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]interface{}
		require.NoError(t, ParseJSONResponse(resp, &body))
		assert.Equal(t, true, body["legacy"])
	})

	t.Run("admin analytics requires admin token", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))

		email, password := TestUser("analytics")
		_, err := SeedUser(ctx, testDB.Pool, email, password, "admin")
		require.NoError(t, err)

		login, err := server.Request(http.MethodPost, "/auth/secure-login",
			map[string]string{"email": email, "password": password}, nil)
		require.NoError(t, err)
		token, err := ExtractSessionToken(login)
		require.NoError(t, err)

		// Unauthenticated request is rejected
		denied, err := server.Request(http.MethodGet, "/security/analytics", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, denied.StatusCode)
		denied.Body.Close()

		resp, err := server.RequestWithAuth(http.MethodGet, "/security/analytics", token, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var overview map[string]interface{}
		require.NoError(t, ParseJSONResponse(resp, &overview))
		assert.Contains(t, overview, "successRate")
	})
}
