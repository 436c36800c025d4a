// Package session persists the current credential and user profile in a
// client-only storage area and answers expiry questions about it.
//
// Every operation tolerates a nil Storage (no client storage in this
// context): reads report "no session" and clears succeed without effect.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/iliyamo/inventory-admin/internal/auth"
	"github.com/iliyamo/inventory-admin/internal/model"
	"github.com/iliyamo/inventory-admin/internal/policy"
	"github.com/iliyamo/inventory-admin/internal/utils"
)

// Storage keys.
const (
	KeyToken      = "inventory_token"
	KeyUser       = "inventory_user"
	KeyExpires    = "inventory_token_expires"
	KeyCurrentTab = "inventory_current_tab"
	KeyReturnTo   = "inventory_return_to"
)

const (
	// Lifetime matches auth.TokenLifetime; a record never outlives its token.
	Lifetime = auth.TokenLifetime
	// DefaultExpiryWindow is how early IsExpiringSoon starts reporting true.
	DefaultExpiryWindow = 5 * time.Minute
)

// Record is the session tuple held by the client.
type Record struct {
	Token     string
	User      model.UserProfile
	ExpiresAt time.Time
}

// Store reads and writes the session record in a Storage.
type Store struct {
	storage  Storage
	lifetime time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option customises a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithLogger sets the logger used for storage diagnostics.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// NewStore wraps storage.  storage may be nil.
func NewStore(storage Storage, opts ...Option) *Store {
	s := &Store{
		storage:  storage,
		lifetime: Lifetime,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Available reports whether client storage exists in this context.
func (s *Store) Available() bool { return s != nil && s.storage != nil }

// Storage exposes the underlying area to the bridge, which owns change
// subscriptions.
func (s *Store) Storage() Storage {
	if s == nil {
		return nil
	}
	return s.storage
}

// Get returns the stored record, or nil when any field is missing or the
// profile or expiry does not parse.  Storage errors also read as nil.
func (s *Store) Get(ctx context.Context) *Record {
	if !s.Available() {
		return nil
	}
	token, ok := s.read(ctx, KeyToken)
	if !ok || token == "" {
		return nil
	}
	rawUser, ok := s.read(ctx, KeyUser)
	if !ok {
		return nil
	}
	rawExp, ok := s.read(ctx, KeyExpires)
	if !ok {
		return nil
	}
	var user model.UserProfile
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		s.logger.DebugContext(ctx, "stored profile is corrupt", "error", err)
		return nil
	}
	ms, err := strconv.ParseInt(rawExp, 10, 64)
	if err != nil {
		s.logger.DebugContext(ctx, "stored expiry is corrupt", "error", err)
		return nil
	}
	return &Record{Token: token, User: user, ExpiresAt: time.UnixMilli(ms)}
}

// Set stores token and profile with expiresAt = now + Lifetime.
func (s *Store) Set(ctx context.Context, token string, user model.UserProfile) error {
	return s.SetUntil(ctx, token, user, time.Time{})
}

// SetUntil is Set with the expiry clamped to notAfter when notAfter is
// earlier, typically the token's own exp.  The profile and expiry are
// written before the token, or all at once when the storage batches, so no
// reader sees an authorization-capable token without a profile.
func (s *Store) SetUntil(ctx context.Context, token string, user model.UserProfile, notAfter time.Time) error {
	if !s.Available() {
		return auth.ErrStorageUnavailable
	}
	profile, err := json.Marshal(user)
	if err != nil {
		return auth.Wrap(auth.KindStorageUnavailable, err)
	}
	exp := s.now().Add(s.lifetime)
	if !notAfter.IsZero() && notAfter.Before(exp) {
		exp = notAfter
	}
	ops := []Op{
		{Key: KeyUser, Value: string(profile)},
		{Key: KeyExpires, Value: strconv.FormatInt(exp.UnixMilli(), 10)},
		{Key: KeyToken, Value: token},
	}
	if err := s.apply(ctx, ops); err != nil {
		return auth.Wrap(auth.KindStorageUnavailable, err)
	}
	return nil
}

// Clear removes the session keys.  The token goes first.  The return-to
// destination is kept so it survives an expiry-driven logout.
func (s *Store) Clear(ctx context.Context) error {
	if !s.Available() {
		return nil
	}
	ops := []Op{
		{Key: KeyToken, Remove: true},
		{Key: KeyUser, Remove: true},
		{Key: KeyExpires, Remove: true},
		{Key: KeyCurrentTab, Remove: true},
	}
	if err := s.apply(ctx, ops); err != nil {
		return auth.Wrap(auth.KindStorageUnavailable, err)
	}
	return nil
}

// Token returns the stored token of a complete record.
func (s *Store) Token(ctx context.Context) (string, bool) {
	rec := s.Get(ctx)
	if rec == nil {
		return "", false
	}
	return rec.Token, true
}

// IsExpired reports whether the stored expiry has passed.  No session
// counts as expired; without client storage there is nothing to expire and
// it reports false.
func (s *Store) IsExpired(ctx context.Context) bool {
	if !s.Available() {
		return false
	}
	exp, ok := s.expiresAt(ctx)
	if !ok {
		return true
	}
	return !s.now().Before(exp)
}

// IsExpiringSoon reports whether the stored expiry falls within window of
// now (or has passed).  No session is not "expiring soon"; there is nothing
// to renew.  A window <= 0 uses DefaultExpiryWindow.
func (s *Store) IsExpiringSoon(ctx context.Context, window time.Duration) bool {
	if window <= 0 {
		window = DefaultExpiryWindow
	}
	exp, ok := s.expiresAt(ctx)
	if !ok {
		return false
	}
	return !s.now().Add(window).Before(exp)
}

// Role returns the stored profile's role.
func (s *Store) Role(ctx context.Context) (model.Role, bool) {
	rec := s.Get(ctx)
	if rec == nil {
		return 0, false
	}
	return rec.User.Role, true
}

func (s *Store) IsAdmin(ctx context.Context) bool { return s.can(ctx, policy.IsAdmin) }

func (s *Store) IsManagerOrHigher(ctx context.Context) bool {
	return s.can(ctx, policy.IsManagerOrHigher)
}

func (s *Store) CanCreateRecords(ctx context.Context) bool {
	return s.can(ctx, policy.CanCreateRecords)
}

func (s *Store) CanDeleteRecords(ctx context.Context) bool {
	return s.can(ctx, policy.CanDeleteRecords)
}

// CurrentTab returns the last selected UI tab, "" when unset.
func (s *Store) CurrentTab(ctx context.Context) string {
	v, _ := s.read(ctx, KeyCurrentTab)
	return v
}

// SetCurrentTab remembers the selected UI tab.
func (s *Store) SetCurrentTab(ctx context.Context, tab string) error {
	if !s.Available() {
		return auth.ErrStorageUnavailable
	}
	if err := s.storage.SetItem(ctx, KeyCurrentTab, tab); err != nil {
		return auth.Wrap(auth.KindStorageUnavailable, err)
	}
	return nil
}

// RememberDestination stores where the user was headed when re-authentication
// became necessary.  Only site-relative paths are kept.
func (s *Store) RememberDestination(ctx context.Context, path string) error {
	if !s.Available() {
		return auth.ErrStorageUnavailable
	}
	if err := s.storage.SetItem(ctx, KeyReturnTo, utils.SafeRedirectPath(path)); err != nil {
		return auth.Wrap(auth.KindStorageUnavailable, err)
	}
	return nil
}

// ConsumeDestination returns the remembered destination and deletes it.
func (s *Store) ConsumeDestination(ctx context.Context) (string, bool) {
	v, ok := s.read(ctx, KeyReturnTo)
	if !ok || v == "" {
		return "", false
	}
	if err := s.storage.RemoveItem(ctx, KeyReturnTo); err != nil {
		s.logger.WarnContext(ctx, "return-to cleanup failed", "error", err)
		return "", false
	}
	return utils.SafeRedirectPath(v), true
}

func (s *Store) can(ctx context.Context, pred func(model.Role) bool) bool {
	role, ok := s.Role(ctx)
	return ok && pred(role)
}

func (s *Store) expiresAt(ctx context.Context) (time.Time, bool) {
	if !s.Available() {
		return time.Time{}, false
	}
	raw, ok := s.read(ctx, KeyExpires)
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func (s *Store) read(ctx context.Context, key string) (string, bool) {
	if !s.Available() {
		return "", false
	}
	v, ok, err := s.storage.GetItem(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "session storage read failed", "key", key, "error", err)
		return "", false
	}
	return v, ok
}

func (s *Store) apply(ctx context.Context, ops []Op) error {
	if b, ok := s.storage.(Batcher); ok {
		return b.Apply(ctx, ops)
	}
	for _, op := range ops {
		var err error
		if op.Remove {
			err = s.storage.RemoveItem(ctx, op.Key)
		} else {
			err = s.storage.SetItem(ctx, op.Key, op.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
