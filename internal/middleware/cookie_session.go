package middleware

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/inventory-admin/internal/auth"
	"github.com/iliyamo/inventory-admin/internal/bridge"
	"github.com/iliyamo/inventory-admin/internal/utils"
)

// CookieSession guards server-rendered pages, which only see the cookie
// the session bridge publishes.  A missing or unusable cookie redirects to
// loginPath with the requested page preserved in ?redirect=.
func CookieSession(v Verifier, loginPath string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var err error = auth.ErrMissingToken
			if ck, cerr := c.Cookie(bridge.CookieName); cerr == nil && ck.Value != "" {
				claims, verr := v.Verify(ck.Value)
				if verr == nil {
					setClaims(c, claims)
					return next(c)
				}
				err = verr
			}
			slog.DebugContext(c.Request().Context(), "page session rejected",
				"kind", auth.KindOf(err), "path", c.Request().URL.Path)
			return c.Redirect(http.StatusFound, LoginRedirect(loginPath, c.Request().URL.RequestURI()))
		}
	}
}

// LoginRedirect builds loginPath?redirect=<dest> with dest reduced to a
// same-site relative path.
func LoginRedirect(loginPath, dest string) string {
	return loginPath + "?redirect=" + url.QueryEscape(utils.SafeRedirectPath(dest))
}
