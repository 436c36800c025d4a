// Package bridge mirrors the session token held in client storage into a
// cookie that server-side request handling can read.
//
// The cookie is only ever a projection of the session.Store: the bridge
// reads the store and writes the cookie, never the other way round, and no
// other code writes the cookie.
package bridge

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/iliyamo/inventory-admin/internal/session"
)

// CookieName is the name of the server-visible session cookie.
const CookieName = session.KeyToken

// cookieMaxAge matches the session lifetime, in seconds.
var cookieMaxAge = int(session.Lifetime.Seconds())

// Bridge keeps a CookieSink in step with a session.Store.
type Bridge struct {
	store  *session.Store
	sink   CookieSink
	logger *slog.Logger
	mu     sync.Mutex
}

// New returns a bridge from store to sink.
func New(store *session.Store, sink CookieSink, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{store: store, sink: sink, logger: logger}
}

// Store returns the session store the bridge projects from.
func (b *Bridge) Store() *session.Store { return b.store }

// Publish writes the stored token into the cookie, or clears the cookie
// when there is no session.
func (b *Bridge) Publish(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if token, ok := b.store.Token(ctx); ok {
		b.sink.SetCookie(b.cookie(token, cookieMaxAge))
		return
	}
	b.sink.SetCookie(b.cookie("", -1))
}

// ClearEverywhere clears the store and the cookie.  Logout must use this so
// no stale cookie outlives the client's session.  The cookie is cleared even
// when the store fails.
func (b *Bridge) ClearEverywhere(ctx context.Context) error {
	err := b.store.Clear(ctx)
	b.mu.Lock()
	b.sink.SetCookie(b.cookie("", -1))
	b.mu.Unlock()
	return err
}

// Init publishes once and then re-publishes on every change made by another
// context.  Each publish re-reads the store, so a change lost to a slow
// reader is covered by the next one.  It returns after the subscription is in place;
// the watcher stops when ctx is done.  Storages without a change feed get
// the initial publish only.
func (b *Bridge) Init(ctx context.Context) error {
	b.Publish(ctx)

	n, ok := b.store.Storage().(session.Notifier)
	if !ok {
		b.logger.DebugContext(ctx, "session storage has no change feed; cookie is published on demand only")
		return nil
	}
	changes, err := n.Subscribe(ctx)
	if err != nil {
		return err
	}
	go func() {
		for c := range changes {
			if ctx.Err() != nil {
				continue
			}
			if c.Key == session.KeyToken {
				b.logger.DebugContext(ctx, "session token changed in another context", "removed", c.Removed)
			}
			b.Publish(ctx)
		}
	}()
	return nil
}

// cookie builds the session cookie.  maxAge < 0 emits Max-Age=0.
func (b *Bridge) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		SameSite: http.SameSiteLaxMode,
		Secure:   b.sink.Secure(),
	}
}
