package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/inventory-admin/internal/auth"
	"github.com/iliyamo/inventory-admin/internal/model"
	"github.com/iliyamo/inventory-admin/internal/policy"
)

const testSecret = "middleware-secret-0123456789abcdef"

func newCodec(t *testing.T) *auth.Codec {
	t.Helper()
	c, err := auth.NewCodec(testSecret)
	require.NoError(t, err)
	return c
}

func tokenFor(t *testing.T, c *auth.Codec, role model.Role) string {
	t.Helper()
	tok, err := c.Issue(model.Claims{ID: 7, Username: "alice", Role: role})
	require.NoError(t, err)
	return tok.Token
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

// adminOnly mounts a WithAuth handler requiring admin and records the
// claims it was handed.
func adminOnly(codec *auth.Codec, got *model.Claims, ran *bool) *echo.Echo {
	e := echo.New()
	e.GET("/api/users", WithAuth(codec, func(c echo.Context, claims model.Claims) error {
		*ran = true
		*got = claims
		return c.NoContent(http.StatusOK)
	}, model.RoleAdmin))
	return e
}

func TestWithAuthEndToEnd(t *testing.T) {
	codec := newCodec(t)
	var got model.Claims
	var ran bool
	e := adminOnly(codec, &got, &ran)

	cases := []struct {
		name   string
		header string
		status int
		ran    bool
	}{
		{"no header", "", http.StatusUnauthorized, false},
		{"manager", "Bearer " + tokenFor(t, codec, model.RoleManager), http.StatusForbidden, false},
		{"admin", "Bearer " + tokenFor(t, codec, model.RoleAdmin), http.StatusOK, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ran = false
			req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
			if tc.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tc.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.ran, ran)
			if tc.status != http.StatusOK {
				assert.NotEmpty(t, errorBody(t, rec))
			}
		})
	}
	assert.Equal(t, model.Claims{ID: 7, Username: "alice", Role: model.RoleAdmin}, got)
}

func TestWithAuthRejectsBadTokens(t *testing.T) {
	codec := newCodec(t)
	past := time.Now().Add(-4 * time.Hour)
	stale, err := auth.NewCodec(testSecret, auth.WithClock(func() time.Time { return past }))
	require.NoError(t, err)
	foreign, err := auth.NewCodec("another-secret-0123456789abcdefgh")
	require.NoError(t, err)

	var got model.Claims
	var ran bool
	e := adminOnly(codec, &got, &ran)

	headers := map[string]string{
		"lowercase scheme": "bearer " + tokenFor(t, codec, model.RoleAdmin),
		"extra part":       "Bearer " + tokenFor(t, codec, model.RoleAdmin) + " x",
		"garbage":          "Bearer not-a-jwt",
		"expired":          "Bearer " + tokenFor(t, stale, model.RoleAdmin),
		"foreign":          "Bearer " + tokenFor(t, foreign, model.RoleAdmin),
	}
	for name, h := range headers {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
			req.Header.Set(echo.HeaderAuthorization, h)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, ran)
		})
	}
}

func TestWithAuthNoRolesAdmitsAnyRole(t *testing.T) {
	codec := newCodec(t)
	e := echo.New()
	e.GET("/api/auth/me", WithAuth(codec, func(c echo.Context, claims model.Claims) error {
		return c.String(http.StatusOK, claims.Role.String())
	}))
	for _, role := range model.Roles {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tokenFor(t, codec, role))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, role.String(), rec.Body.String())
	}
}

func TestRequireAuthStoresClaims(t *testing.T) {
	codec := newCodec(t)
	e := echo.New()
	g := e.Group("/api/hardware", RequireAuth(codec, policy.AtLeast(model.RoleManager)))
	g.POST("", func(c echo.Context) error {
		claims, ok := ClaimsFrom(c)
		require.True(t, ok)
		assert.Equal(t, "7", c.Get("user_id"))
		return c.String(http.StatusCreated, claims.Username)
	})

	for role, want := range map[model.Role]int{
		model.RoleUser:    http.StatusForbidden,
		model.RoleManager: http.StatusCreated,
		model.RoleAdmin:   http.StatusCreated,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/hardware", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tokenFor(t, codec, role))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role.String())
	}
}

func TestGuardMessagesAreLocalized(t *testing.T) {
	codec := newCodec(t)
	var got model.Claims
	var ran bool
	e := adminOnly(codec, &got, &ran)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9,en;q=0.5")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "Anmeldung erforderlich", errorBody(t, rec))

	req = httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Accept-Language", "fr")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "authentication required", errorBody(t, rec))
}
