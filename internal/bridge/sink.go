package bridge

import (
	"net/http"
	"net/url"
	"strings"
)

// CookieSink is the server-visible channel the bridge projects the session
// token into.
type CookieSink interface {
	SetCookie(c *http.Cookie)
	// Secure reports whether the current page/context was loaded over an
	// encrypted transport, which makes the cookie Secure.
	Secure() bool
}

// JarSink writes into a client cookie jar for one site, so every request
// the client sends to that site carries the cookie.
type JarSink struct {
	Jar  http.CookieJar
	Site *url.URL
}

func (j JarSink) SetCookie(c *http.Cookie) {
	j.Jar.SetCookies(j.Site, []*http.Cookie{c})
}

func (j JarSink) Secure() bool {
	return j.Site != nil && strings.EqualFold(j.Site.Scheme, "https")
}

// ResponseSink emits Set-Cookie on an HTTP response.  Secure follows the
// request's transport, honouring X-Forwarded-Proto behind a TLS proxy.
type ResponseSink struct {
	W http.ResponseWriter
	R *http.Request
}

func (s ResponseSink) SetCookie(c *http.Cookie) {
	http.SetCookie(s.W, c)
}

func (s ResponseSink) Secure() bool {
	if s.R == nil {
		return false
	}
	return s.R.TLS != nil || strings.EqualFold(s.R.Header.Get("X-Forwarded-Proto"), "https")
}
