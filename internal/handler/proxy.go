package handler

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/inventory-admin/internal/middleware"
)

// Headers the proxy adds so the backend sees the verified caller.
const (
	HeaderUserID   = "X-Inventory-User-Id"
	HeaderUserRole = "X-Inventory-User-Role"
)

// NewResourceProxy returns a handler forwarding /api/<resource>/... to
// <backend>/<resource>/....  It runs after the guard, which has already
// decided the caller may perform the request.
func NewResourceProxy(backend *url.URL, timeout time.Duration) echo.HandlerFunc {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		ResponseHeaderTimeout: timeout,
		MaxIdleConnsPerHost:   16,
	}
	proxy := echomw.ProxyWithConfig(echomw.ProxyConfig{
		Balancer:  echomw.NewRoundRobinBalancer([]*echomw.ProxyTarget{{Name: "backend", URL: backend}}),
		Rewrite:   map[string]string{"/api/*": "/$1"},
		Transport: transport,
	})
	forward := proxy(func(c echo.Context) error { return echo.ErrNotFound })

	return func(c echo.Context) error {
		h := c.Request().Header
		h.Del(HeaderUserID)
		h.Del(HeaderUserRole)
		if claims, ok := middleware.ClaimsFrom(c); ok {
			h.Set(HeaderUserID, strconv.FormatUint(claims.ID, 10))
			h.Set(HeaderUserRole, claims.Role.String())
		}
		return forward(c)
	}
}
