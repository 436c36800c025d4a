package middleware

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/inventory-admin/internal/auth"
	"github.com/iliyamo/inventory-admin/internal/model"
	"github.com/iliyamo/inventory-admin/internal/policy"
)

// Verifier turns a raw token into trusted claims.  *auth.Codec satisfies it.
type Verifier interface {
	Verify(raw string) (model.Claims, error)
}

// AuthedHandler is a handler that runs only for an authorized caller and
// receives the caller's decoded claims.
type AuthedHandler func(c echo.Context, claims model.Claims) error

// WithAuth wraps h so it only runs for a request carrying a valid bearer
// token whose role is in roles.  No roles means any authenticated caller.
func WithAuth(v Verifier, h AuthedHandler, roles ...model.Role) echo.HandlerFunc {
	var req policy.Requirement
	if len(roles) > 0 {
		req = policy.AnyOf(roles...)
	}
	return func(c echo.Context) error {
		claims, err := authorize(c, v, req)
		if err != nil {
			return reject(c, err)
		}
		return h(c, claims)
	}
}

// RequireAuth is the middleware form of WithAuth for route groups and
// handlers that read the claims back with ClaimsFrom.  A nil requirement
// admits any authenticated caller.
func RequireAuth(v Verifier, req policy.Requirement) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, err := authorize(c, v, req); err != nil {
				return reject(c, err)
			}
			return next(c)
		}
	}
}

// authorize runs header extraction, verification and the role check, in
// that order.  On success the claims are stored on the context.
func authorize(c echo.Context, v Verifier, req policy.Requirement) (model.Claims, error) {
	raw, ok := auth.ExtractFromHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if !ok {
		return model.Claims{}, auth.ErrMissingToken
	}
	claims, err := v.Verify(raw)
	if err != nil {
		return model.Claims{}, err
	}
	if err := policy.Check(claims.Role, req); err != nil {
		return model.Claims{}, auth.Wrap(auth.KindInsufficientRole, err)
	}
	setClaims(c, claims)
	return claims, nil
}

// reject is the only place a guard failure becomes a response.
func reject(c echo.Context, err error) error {
	kind := auth.KindOf(err)
	if kind == "" {
		kind = auth.KindMalformedToken
	}
	status := http.StatusUnauthorized
	if kind == auth.KindInsufficientRole {
		status = http.StatusForbidden
	}
	slog.DebugContext(c.Request().Context(), "request rejected",
		"kind", kind, "method", c.Request().Method, "path", c.Request().URL.Path)
	return c.JSON(status, echo.Map{"error": Message(c.Request(), kind)})
}
