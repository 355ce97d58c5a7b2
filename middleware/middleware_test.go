package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bonkers-airdrop/store"
)

var secret = []byte("middleware-secret")

func TestTokenRoundTrip(t *testing.T) {
	raw, err := GenerateToken("Alice@Example.com", "Alice", []string{RoleAdmin}, secret, time.Hour)
	require.NoError(t, err)

	session, err := ParseToken(raw, secret)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", session.Email)
	assert.Equal(t, "Alice", session.FullName)
	assert.True(t, session.HasRole(RoleAdmin))

	_, err = ParseToken(raw, []byte("other"))
	assert.Error(t, err)
}

func TestParseTokenRejectsMissingExpiry(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "a@x.io"},
	}).SignedString(secret)
	require.NoError(t, err)

	_, err = ParseToken(raw, secret)
	assert.Error(t, err)
}

func TestParseTokenRejectsNoneAlgorithm(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "a@x.io",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseToken(raw, secret)
	assert.Error(t, err)
}

func TestUserContextAndRole(t *testing.T) {
	app := fiber.New()
	app.Use(UserContextMiddleware(secret))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		session, ok := store.SessionFrom(c.UserContext())
		if !ok {
			return c.SendStatus(fiber.StatusTeapot)
		}
		return c.SendString(session.Email)
	})
	app.Get("/admin", RequireRole(RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	user, err := GenerateToken("bob@example.com", "Bob", nil, secret, time.Hour)
	require.NoError(t, err)
	admin, err := GenerateToken("ops@example.com", "Ops", []string{RoleAdmin}, secret, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Session-Token", user)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/whoami?token="+user, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-Session-Token", user)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-Session-Token", admin)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestGatewayDisabledWhenTokenEmpty(t *testing.T) {
	app := fiber.New()
	app.Use(GatewayAuthMiddleware(""))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRateLimiterPerKeyAndSweep(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	r := NewRateLimiter(RateLimit{RequestsPerMinute: 60, Burst: 2})
	r.clockNow = func() time.Time { return now }

	assert.True(t, r.allow("a"))
	assert.True(t, r.allow("a"))
	assert.False(t, r.allow("a"))
	assert.True(t, r.allow("b"))

	now = now.Add(time.Second)
	assert.True(t, r.allow("a"))

	now = now.Add(11 * time.Minute)
	r.allow("c")
	assert.Equal(t, 2, r.Sweep())
	assert.Len(t, r.visitors, 1)
}
