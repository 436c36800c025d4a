package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/inventory-admin/internal/auth"
	"github.com/iliyamo/inventory-admin/internal/handler"
	"github.com/iliyamo/inventory-admin/internal/model"
	"github.com/iliyamo/inventory-admin/internal/repository"
	"github.com/iliyamo/inventory-admin/internal/router"
	"github.com/iliyamo/inventory-admin/internal/service"
	"github.com/iliyamo/inventory-admin/internal/session"
	"github.com/iliyamo/inventory-admin/internal/utils"
)

type users map[string]model.User

func (u users) GetByUsername(_ context.Context, name string) (model.User, error) {
	if usr, ok := u[name]; ok {
		return usr, nil
	}
	return model.User{}, repository.ErrNotFound
}

type testServer struct {
	URL          string
	Codec        *auth.Codec
	backendCalls atomic.Int32
}

// newTestServer wires the real router against an in-process backend.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{}
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.backendCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = io.WriteString(w, `{"path":"`+r.URL.Path+`"}`)
	}))
	t.Cleanup(backend.Close)
	target, _ := url.Parse(backend.URL)

	codec, err := auth.NewCodec("client-secret-0123456789abcdefghij")
	require.NoError(t, err)
	ts.Codec = codec
	hash, err := utils.HashPassword("pw", bcrypt.MinCost)
	require.NoError(t, err)
	accounts := users{
		"alice": {ID: 1, Username: "alice", FullName: "Alice", Role: model.RoleManager, PasswordHash: hash, IsActive: true},
		"root":  {ID: 2, Username: "root", Role: model.RoleAdmin, PasswordHash: hash, IsActive: true},
	}

	e := echo.New()
	passThrough := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	router.RegisterRoutes(e, codec)
	router.RegisterAuth(e, handler.NewAuthHandler(codec, accounts, service.Nop{}, nil), passThrough)
	router.RegisterResources(e, codec, handler.NewResourceProxy(target, 5*time.Second), passThrough)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	ts.URL = srv.URL
	return ts
}

type clock struct{ now atomic.Pointer[time.Time] }

func newClock() *clock {
	c := &clock{}
	n := time.Now()
	c.now.Store(&n)
	return c
}

func (c *clock) Now() time.Time          { return *c.now.Load() }
func (c *clock) Advance(d time.Duration) { n := c.Now().Add(d); c.now.Store(&n) }

func TestLoginDashboardLogout(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	c, err := New(ts.URL, session.NewMemoryArea().View())
	require.NoError(t, err)
	require.NoError(t, c.Init(ctx))

	_, err = c.Dashboard(ctx)
	assert.True(t, errors.Is(err, ErrReauthRequired))

	user, dest, err := c.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.FullName)
	assert.Equal(t, "/dashboard", dest, "destination from the forced login is resumed once")
	require.Len(t, c.Cookies(), 1)

	id, err := c.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", id.User.Username)
	assert.True(t, id.Capabilities.CanCreateRecords)
	assert.False(t, id.Capabilities.CanDeleteRecords)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, me)

	require.NoError(t, c.Logout(ctx))
	assert.Nil(t, c.Store().Get(ctx))
	assert.Empty(t, c.Cookies())
	_, err = c.Dashboard(ctx)
	assert.True(t, errors.Is(err, ErrReauthRequired))
}

func TestResourceCallsFollowRole(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	c, err := New(ts.URL, session.NewMemoryArea().View())
	require.NoError(t, err)
	_, _, err = c.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	out, err := c.Get(ctx, "hardware", "12")
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"/hardware/12"}`, string(out))

	_, err = c.Create(ctx, "hardware", map[string]string{"name": "ThinkPad"})
	require.NoError(t, err)

	calls := ts.backendCalls.Load()
	err = c.Delete(ctx, "hardware", "12")
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.Equal(t, calls, ts.backendCalls.Load(), "refused locally before any request")

	_, err = c.List(ctx, "users", nil)
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.NotNil(t, c.Store().Get(ctx), "403 keeps the session")
}

func TestExpiredSessionClearsEverywhere(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	clk := newClock()
	c, err := New(ts.URL, session.NewMemoryArea().View(), WithClock(clk.Now))
	require.NoError(t, err)
	_, _, err = c.Login(ctx, "root", "pw")
	require.NoError(t, err)
	assert.False(t, c.ExpiringSoon(ctx))

	clk.Advance(auth.TokenLifetime - 2*time.Minute)
	assert.True(t, c.ExpiringSoon(ctx))

	clk.Advance(5 * time.Minute)
	calls := ts.backendCalls.Load()
	_, err = c.List(ctx, "hardware", url.Values{"page": {"2"}})
	assert.True(t, errors.Is(err, ErrReauthRequired))
	assert.Equal(t, calls, ts.backendCalls.Load())
	assert.Nil(t, c.Store().Get(ctx))
	assert.Empty(t, c.Cookies())

	dest, ok := c.Store().ConsumeDestination(ctx)
	require.True(t, ok)
	assert.Equal(t, "/api/hardware?page=2", dest)
}

func TestRefusedTokenIsNotRetried(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	view := session.NewMemoryArea().View()
	c, err := New(ts.URL, view)
	require.NoError(t, err)

	other, err := auth.NewCodec("some-other-secret-0123456789abcdef")
	require.NoError(t, err)
	tok, err := other.Issue(model.Claims{ID: 1, Username: "alice", Role: model.RoleAdmin})
	require.NoError(t, err)
	require.NoError(t, c.Store().Set(ctx, tok.Token, model.UserProfile{ID: 1, Username: "alice", Role: model.RoleAdmin}))

	_, err = c.Me(ctx)
	assert.True(t, errors.Is(err, ErrReauthRequired))
	assert.Nil(t, c.Store().Get(ctx))
}

func TestLogoutInOneClientReachesAnother(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	area := session.NewMemoryArea()
	tabA, err := New(ts.URL, area.View())
	require.NoError(t, err)
	tabB, err := New(ts.URL, area.View())
	require.NoError(t, err)
	require.NoError(t, tabA.Init(ctx))
	require.NoError(t, tabB.Init(ctx))

	_, _, err = tabA.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(tabB.Cookies()) == 1 }, time.Second, 10*time.Millisecond)
	_, err = tabB.Dashboard(ctx)
	require.NoError(t, err)

	require.NoError(t, tabA.Logout(ctx))
	require.Eventually(t, func() bool { return len(tabB.Cookies()) == 0 }, time.Second, 10*time.Millisecond)
	_, err = tabB.Dashboard(ctx)
	assert.True(t, errors.Is(err, ErrReauthRequired))
}

func TestBadLogin(t *testing.T) {
	ts := newTestServer(t)
	c, err := New(ts.URL, session.NewMemoryArea().View())
	require.NoError(t, err)
	_, _, err = c.Login(context.Background(), "alice", "wrong")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "invalid credentials", apiErr.Message)

	_, err = New("not a url", nil)
	assert.Error(t, err)
}

func TestDecodeKeepsRawBody(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusOK)
	_, _ = rec.WriteString(`[1,2,3]`)
	var raw json.RawMessage
	require.NoError(t, decode(rec.Result(), &raw))
	assert.Equal(t, `[1,2,3]`, string(raw))
}

func TestLoginBoundsSessionByTokenExpiry(t *testing.T) {
	codec, err := auth.NewCodec("client-secret-0123456789abcdefghij")
	require.NoError(t, err)
	tok, err := codec.Issue(model.Claims{ID: 1, Username: "alice", Role: model.RoleUser})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":      tok.Token,
			"expires_at": time.Now().Add(24 * time.Hour),
			"user":       model.UserProfile{ID: 1, Username: "alice", Role: model.RoleUser},
		})
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	c, err := New(srv.URL, session.NewMemoryArea().View())
	require.NoError(t, err)
	_, _, err = c.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	rec := c.Store().Get(ctx)
	require.NotNil(t, rec)
	assert.WithinDuration(t, tok.Exp, rec.ExpiresAt, time.Second, "a longer expires_at from the server is ignored")
}
