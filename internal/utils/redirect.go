package utils

import (
	"net/url"
	"strings"
)

// SafeRedirectPath returns candidate when it is a site-relative path and
// "/" otherwise.  Absolute URLs, scheme-relative URLs ("//host") and
// backslash tricks are all rejected so a stored destination can never send
// the user off-site after login.
func SafeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	if strings.HasPrefix(candidate, "//") || strings.HasPrefix(candidate, `/\`) {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return candidate
}
