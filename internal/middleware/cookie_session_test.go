package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/inventory-admin/internal/bridge"
	"github.com/iliyamo/inventory-admin/internal/model"
)

func TestCookieSession(t *testing.T) {
	codec := newCodec(t)
	e := echo.New()
	e.GET("/dashboard", func(c echo.Context) error {
		claims, _ := ClaimsFrom(c)
		return c.String(http.StatusOK, claims.Username)
	}, CookieSession(codec, "/login"))

	t.Run("valid cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.AddCookie(&http.Cookie{Name: bridge.CookieName, Value: tokenFor(t, codec, model.RoleUser)})
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "alice", rec.Body.String())
	})

	t.Run("bearer header is not enough", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard?tab=hardware", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tokenFor(t, codec, model.RoleAdmin))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login?redirect=%2Fdashboard%3Ftab%3Dhardware", rec.Header().Get(echo.HeaderLocation))
	})

	t.Run("cleared cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.AddCookie(&http.Cookie{Name: bridge.CookieName, Value: ""})
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusFound, rec.Code)
	})

	t.Run("tampered cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.AddCookie(&http.Cookie{Name: bridge.CookieName, Value: tokenFor(t, codec, model.RoleUser) + "x"})
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusFound, rec.Code)
	})
}

func TestLoginRedirect(t *testing.T) {
	assert.Equal(t, "/login?redirect=%2Fhardware", LoginRedirect("/login", "/hardware"))
	assert.Equal(t, "/login?redirect=%2F", LoginRedirect("/login", "//evil.example/x"))
	assert.Equal(t, "/login?redirect=%2F", LoginRedirect("/login", "https://evil.example"))
}
