package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/inventory-admin/internal/auth"
	"github.com/iliyamo/inventory-admin/internal/bridge"
	"github.com/iliyamo/inventory-admin/internal/model"
	"github.com/iliyamo/inventory-admin/internal/policy"
	"github.com/iliyamo/inventory-admin/internal/queue"
	"github.com/iliyamo/inventory-admin/internal/repository"
	"github.com/iliyamo/inventory-admin/internal/service"
	"github.com/iliyamo/inventory-admin/internal/session"
	"github.com/iliyamo/inventory-admin/internal/utils"
)

// UserFinder loads the user row behind a login.  *repository.UserRepo
// satisfies it.
type UserFinder interface {
	GetByUsername(ctx context.Context, username string) (model.User, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Codec  *auth.Codec
	Users  UserFinder
	Events service.EventPublisher
	Logger *slog.Logger
}

func NewAuthHandler(codec *auth.Codec, users UserFinder, events service.EventPublisher, logger *slog.Logger) *AuthHandler {
	if events == nil {
		events = service.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{Codec: codec, Users: users, Events: events, Logger: logger}
}

// ----- DTOs -----

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResp is what a successful login returns.  Clients store Token and
// User together in their session store.
type LoginResp struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	User      model.UserProfile `json:"user"`
}

// MeResp describes the caller behind a verified token.
type MeResp struct {
	User         model.Claims        `json:"user"`
	Capabilities policy.Capabilities `json:"capabilities"`
}

// Login verifies a username/password pair and issues a token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.VerifyPassword("", req.Password)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		h.Logger.ErrorContext(ctx, "login lookup failed", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if !u.IsActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "account is disabled"})
	}

	tok, err := h.Codec.Issue(u.Claims())
	if err != nil {
		h.Logger.ErrorContext(ctx, "issue token failed", "err", err, "user_id", u.ID)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	h.publish(c, queue.EventLogin, u.Claims())
	return c.JSON(http.StatusOK, LoginResp{Token: tok.Token, ExpiresAt: tok.Exp, User: u.Profile()})
}

// Logout clears the server-visible cookie.  The server holds no client
// storage, so the bridge runs over an unavailable store and only the
// cookie changes.  A valid bearer token additionally records a logout
// event; logout itself never fails for lack of one.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	sink := bridge.ResponseSink{W: c.Response(), R: c.Request()}
	if err := bridge.New(session.NewStore(nil), sink, h.Logger).ClearEverywhere(ctx); err != nil {
		h.Logger.WarnContext(ctx, "logout clear failed", "err", err)
	}
	if raw, ok := auth.ExtractFromHeader(c.Request().Header.Get(echo.HeaderAuthorization)); ok {
		if claims, err := h.Codec.Verify(raw); err == nil {
			h.publish(c, queue.EventLogout, claims)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// Me reports the caller's identity and capabilities.  It is mounted
// behind the guard and never re-derives identity itself.
func (h *AuthHandler) Me(c echo.Context, claims model.Claims) error {
	return c.JSON(http.StatusOK, MeResp{User: claims, Capabilities: policy.CapabilitiesOf(claims.Role)})
}

func (h *AuthHandler) publish(c echo.Context, typ queue.EventType, claims model.Claims) {
	ev := queue.NewSessionEvent(typ, claims, time.Now())
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), 3*time.Second)
	defer cancel()
	if err := h.Events.Publish(ctx, ev); err != nil {
		h.Logger.WarnContext(ctx, "session event dropped", "type", typ, "user_id", claims.ID, "err", err)
	}
}
