package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/inventory-admin/internal/handler"
	"github.com/iliyamo/inventory-admin/internal/middleware"
)

// LoginPath is where page requests without a usable session are sent.
const LoginPath = "/login"

// RegisterRoutes registers the routes that need no bearer token: health,
// the login page and the cookie-read dashboard.
func RegisterRoutes(e *echo.Echo, v middleware.Verifier) {
	e.GET("/healthz", handler.Health)
	e.GET(LoginPath, handler.LoginPage)
	e.GET("/dashboard", handler.Dashboard, middleware.CookieSession(v, LoginPath))
}

// RegisterAuth registers /api/auth.  Login is rate limited; logout works
// with or without a valid token; me requires one.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limiter echo.MiddlewareFunc) {
	g := e.Group("/api/auth")
	g.POST("/login", a.Login, limiter)
	g.POST("/logout", a.Logout)
	g.GET("/me", middleware.WithAuth(a.Codec, a.Me))
}
