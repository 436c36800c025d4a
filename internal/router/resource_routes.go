package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/inventory-admin/internal/middleware"
	"github.com/iliyamo/inventory-admin/internal/model"
	"github.com/iliyamo/inventory-admin/internal/policy"
)

// RecordResources are proxied with per-method requirements: any role
// reads, manager or higher creates and updates, admin deletes.
var RecordResources = []string{"employees", "hardware", "software", "assignments"}

// AdminResources are proxied for admins only, whatever the method.
var AdminResources = []string{"users"}

var (
	canCreate = policy.AtLeast(model.RoleManager)
	canDelete = policy.AnyOf(model.RoleAdmin)
	adminOnly = policy.AnyOf(model.RoleAdmin)
)

// RecordRequirement returns the requirement guarding method on a record
// resource.  A nil requirement admits any authenticated caller.
func RecordRequirement(method string) policy.Requirement {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return canCreate
	case http.MethodDelete:
		return canDelete
	default:
		return nil
	}
}

// RegisterResources mounts the guarded proxy.  cache applies to reads
// only and sits behind the guard.
func RegisterResources(e *echo.Echo, v middleware.Verifier, proxy echo.HandlerFunc, cache echo.MiddlewareFunc) {
	for _, name := range RecordResources {
		for _, path := range resourcePaths(name) {
			e.GET(path, proxy, middleware.RequireAuth(v, nil), cache)
			for _, m := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
				e.Add(m, path, proxy, middleware.RequireAuth(v, RecordRequirement(m)))
			}
		}
	}
	for _, name := range AdminResources {
		for _, path := range resourcePaths(name) {
			e.GET(path, proxy, middleware.RequireAuth(v, adminOnly), cache)
			for _, m := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
				e.Add(m, path, proxy, middleware.RequireAuth(v, adminOnly))
			}
		}
	}
}

func resourcePaths(name string) []string {
	return []string{"/api/" + name, "/api/" + name + "/*"}
}
