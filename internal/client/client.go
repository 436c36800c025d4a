// Package client talks to the inventory admin server the way the browser
// front end does: it keeps the session in client storage, mirrors the
// token into its cookie jar through the session bridge and sends the
// token as a bearer header on API calls.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/iliyamo/inventory-admin/internal/auth"
	"github.com/iliyamo/inventory-admin/internal/bridge"
	"github.com/iliyamo/inventory-admin/internal/model"
	"github.com/iliyamo/inventory-admin/internal/policy"
	"github.com/iliyamo/inventory-admin/internal/session"
)

var (
	// ErrReauthRequired means the session is gone, expired or was refused;
	// it has been cleared and the caller must log in again.
	ErrReauthRequired = errors.New("session expired, please log in again")
	// ErrForbidden means the session is fine but its role is insufficient.
	ErrForbidden = errors.New("not allowed for your role")
)

// APIError is any other non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Identity is what /api/auth/me and /dashboard return.
type Identity struct {
	User         model.Claims        `json:"user"`
	Capabilities policy.Capabilities `json:"capabilities"`
}

type loginResult struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	User      model.UserProfile `json:"user"`
}

type Client struct {
	base   *url.URL
	http   *http.Client
	store  *session.Store
	bridge *bridge.Bridge
	logger *slog.Logger
}

type Option func(*options)

type options struct {
	timeout   time.Duration
	logger    *slog.Logger
	storeOpts []session.Option
}

func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
		o.storeOpts = append(o.storeOpts, session.WithLogger(l))
	}
}

// WithClock overrides the clock the session store uses for expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.storeOpts = append(o.storeOpts, session.WithClock(now)) }
}

// New returns a client for the server at baseURL keeping its session in
// storage.  Call Init before use to publish any stored session.
func New(baseURL string, storage session.Storage, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("client: invalid server url %q", baseURL)
	}
	o := options{timeout: 15 * time.Second, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	store := session.NewStore(storage, o.storeOpts...)
	return &Client{
		base: base,
		http: &http.Client{
			Jar:     jar,
			Timeout: o.timeout,
			// redirects are answers here, a 302 from a page means "log in"
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		store:  store,
		bridge: bridge.New(store, bridge.JarSink{Jar: jar, Site: base}, o.logger),
		logger: o.logger,
	}, nil
}

// Init publishes the stored session into the cookie jar and follows
// changes made by other clients sharing the storage until ctx is done.
func (c *Client) Init(ctx context.Context) error { return c.bridge.Init(ctx) }

// Store exposes the session store, for role helpers and expiry checks.
func (c *Client) Store() *session.Store { return c.store }

// Cookies returns the cookies the client would send to the server.
func (c *Client) Cookies() []*http.Cookie { return c.http.Jar.Cookies(c.base) }

// ExpiringSoon reports whether the session ends within the default
// warning window, so callers can prompt for a fresh login.
func (c *Client) ExpiringSoon(ctx context.Context) bool {
	return c.store.IsExpiringSoon(ctx, session.DefaultExpiryWindow)
}

// Login authenticates and stores the new session.  It returns the
// destination remembered by an earlier forced logout, or "/".
func (c *Client) Login(ctx context.Context, username, password string) (model.UserProfile, string, error) {
	var res loginResult
	body := map[string]string{"username": username, "password": password}
	if err := c.send(ctx, http.MethodPost, "/api/auth/login", "", body, &res); err != nil {
		return model.UserProfile{}, "", err
	}
	notAfter := res.ExpiresAt
	if exp, ok := auth.TokenExpiry(res.Token); ok && (notAfter.IsZero() || exp.Before(notAfter)) {
		notAfter = exp
	}
	if err := c.store.SetUntil(ctx, res.Token, res.User, notAfter); err != nil {
		return model.UserProfile{}, "", fmt.Errorf("store session: %w", err)
	}
	c.bridge.Publish(ctx)
	dest, ok := c.store.ConsumeDestination(ctx)
	if !ok {
		dest = "/"
	}
	return res.User, dest, nil
}

// Logout tells the server, then clears the session and cookie locally.
// The local clear happens even when the server cannot be reached.
func (c *Client) Logout(ctx context.Context) error {
	token, _ := c.store.Token(ctx)
	if err := c.send(ctx, http.MethodPost, "/api/auth/logout", token, nil, nil); err != nil {
		c.logger.WarnContext(ctx, "server logout failed", "err", err)
	}
	return c.bridge.ClearEverywhere(ctx)
}

// Me asks the server who the stored token belongs to.
func (c *Client) Me(ctx context.Context) (Identity, error) {
	var id Identity
	err := c.authed(ctx, http.MethodGet, "/api/auth/me", nil, &id)
	return id, err
}

// Dashboard loads the cookie-authenticated page.  No bearer header is
// sent; only the bridged cookie can authenticate it.
func (c *Client) Dashboard(ctx context.Context) (Identity, error) {
	var id Identity
	req, err := c.request(ctx, http.MethodGet, "/dashboard", "", nil)
	if err != nil {
		return id, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return id, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusFound {
		return id, c.reauth(ctx, "/dashboard")
	}
	return id, decode(resp, &id)
}

// List fetches a resource collection, e.g. List(ctx, "hardware", nil).
func (c *Client) List(ctx context.Context, resource string, query url.Values) (json.RawMessage, error) {
	path := "/api/" + resource
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var out json.RawMessage
	err := c.authed(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) Get(ctx context.Context, resource, id string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.authed(ctx, http.MethodGet, recordPath(resource, id), nil, &out)
	return out, err
}

// Create posts body to a resource.  The server requires manager or higher.
func (c *Client) Create(ctx context.Context, resource string, body any) (json.RawMessage, error) {
	if !c.store.CanCreateRecords(ctx) && c.store.Get(ctx) != nil {
		return nil, ErrForbidden
	}
	var out json.RawMessage
	err := c.authed(ctx, http.MethodPost, "/api/"+resource, body, &out)
	return out, err
}

// Update replaces a record.  The server requires manager or higher.
func (c *Client) Update(ctx context.Context, resource, id string, body any) (json.RawMessage, error) {
	if !c.store.CanCreateRecords(ctx) && c.store.Get(ctx) != nil {
		return nil, ErrForbidden
	}
	var out json.RawMessage
	err := c.authed(ctx, http.MethodPut, recordPath(resource, id), body, &out)
	return out, err
}

// Delete removes a record.  The server requires admin.
func (c *Client) Delete(ctx context.Context, resource, id string) error {
	if !c.store.CanDeleteRecords(ctx) && c.store.Get(ctx) != nil {
		return ErrForbidden
	}
	return c.authed(ctx, http.MethodDelete, recordPath(resource, id), nil, nil)
}

// authed runs an API call with the stored token.  An expired or refused
// session is cleared everywhere and reported as ErrReauthRequired; the
// call is never retried with the same token.
func (c *Client) authed(ctx context.Context, method, path string, body, out any) error {
	rec := c.store.Get(ctx)
	if rec == nil || c.store.IsExpired(ctx) {
		return c.reauth(ctx, path)
	}
	err := c.send(ctx, method, path, rec.Token, body, out)
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnauthorized:
			return c.reauth(ctx, path)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrForbidden, apiErr.Message)
		}
	}
	return err
}

func (c *Client) reauth(ctx context.Context, dest string) error {
	if err := c.store.RememberDestination(ctx, dest); err != nil && !errors.Is(err, auth.ErrStorageUnavailable) {
		c.logger.WarnContext(ctx, "remember destination failed", "err", err)
	}
	if err := c.bridge.ClearEverywhere(ctx); err != nil {
		c.logger.WarnContext(ctx, "clear session failed", "err", err)
	}
	return ErrReauthRequired
}

func (c *Client) send(ctx context.Context, method, path, token string, body, out any) error {
	req, err := c.request(ctx, method, path, token, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func (c *Client) request(ctx context.Context, method, path, token string, body any) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", auth.BearerHeader(token))
	}
	return req, nil
}

func decode(resp *http.Response, out any) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	return json.Unmarshal(data, out)
}

func recordPath(resource, id string) string {
	return "/api/" + resource + "/" + url.PathEscape(id)
}
