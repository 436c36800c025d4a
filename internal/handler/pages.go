package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/inventory-admin/internal/middleware"
	"github.com/iliyamo/inventory-admin/internal/policy"
	"github.com/iliyamo/inventory-admin/internal/utils"
)

// Dashboard stands in for a server-rendered page.  It is mounted behind
// middleware.CookieSession, so it only runs with verified cookie claims.
func Dashboard(c echo.Context) error {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return c.Redirect(http.StatusFound, middleware.LoginRedirect("/login", c.Request().URL.RequestURI()))
	}
	return c.JSON(http.StatusOK, MeResp{User: claims, Capabilities: policy.CapabilitiesOf(claims.Role)})
}

// LoginPage tells the caller to authenticate and echoes where to go after.
func LoginPage(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"login_required": true,
		"login_endpoint": "/api/auth/login",
		"redirect":       utils.SafeRedirectPath(c.QueryParam("redirect")),
	})
}

// Health is used by load balancers and monitoring to check the service
// is running.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
