package middleware

// identity.go holds the context accessors shared by the guard, the cookie
// session reader, the rate limiter and handlers.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/inventory-admin/internal/model"
)

const claimsKey = "claims"

func setClaims(c echo.Context, claims model.Claims) {
	c.Set(claimsKey, claims)
	c.Set("user_id", strconv.FormatUint(claims.ID, 10))
	c.Set("role", claims.Role.String())
}

// ClaimsFrom returns the claims an upstream guard stored on the context.
func ClaimsFrom(c echo.Context) (model.Claims, bool) {
	claims, ok := c.Get(claimsKey).(model.Claims)
	return claims, ok
}

// userID returns the caller's id for keying, or "anon" before
// authentication.
func userID(c echo.Context) string {
	if s, ok := c.Get("user_id").(string); ok && s != "" {
		return s
	}
	return "anon"
}

// callerRole returns the caller's role name, or "" before authentication.
func callerRole(c echo.Context) string {
	s, _ := c.Get("role").(string)
	return s
}
