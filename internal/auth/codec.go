// Package auth issues and verifies the signed credential carried by every
// authenticated request.  Verification is the only place trust is
// established; everything downstream consumes the decoded model.Claims.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/inventory-admin/internal/model"
)

// TokenLifetime is the fixed validity of every issued token.
const TokenLifetime = 3 * time.Hour

// AccessToken represents a signed JWT along with its timestamps.  Token is
// the compact serialization sent as `Authorization: Bearer <token>`.
type AccessToken struct {
	Token    string    // the serialized JWT string
	IssuedAt time.Time // UTC issue time embedded as iat
	Exp      time.Time // UTC expiration time embedded as exp
}

// tokenClaims is the wire shape: {id, username, role, ldap} plus iat/exp.
type tokenClaims struct {
	ID       uint64     `json:"id"`
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
	LDAP     bool       `json:"ldap"`
	jwt.RegisteredClaims
}

// Codec signs and verifies HS256 tokens with a process-wide secret.  It is
// immutable after construction and safe for concurrent use.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// Option customises a Codec.
type Option func(*Codec)

// WithClock replaces time.Now; tests use it to pin issue and verify times.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec builds a codec.  An empty secret is ErrSecretMissing; the config
// layer decides separately whether a weak secret is acceptable.
func NewCodec(secret string, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, ErrSecretMissing
	}
	c := &Codec{
		secret: []byte(secret),
		ttl:    TokenLifetime,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	return c, nil
}

// Issue signs claims with an issued-at of now and an expiry TokenLifetime
// later.  Identical claims and clock produce identical tokens.
func (c *Codec) Issue(claims model.Claims) (AccessToken, error) {
	if !claims.Role.Valid() {
		return AccessToken{}, fmt.Errorf("issue token: %w", model.ErrUnknownRole)
	}
	iat := c.now().UTC().Truncate(time.Second)
	exp := iat.Add(c.ttl)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		ID:       claims.ID,
		Username: claims.Username,
		Role:     claims.Role,
		LDAP:     claims.LDAP,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := t.SignedString(c.secret)
	if err != nil {
		return AccessToken{}, fmt.Errorf("sign token: %w", err)
	}
	return AccessToken{Token: signed, IssuedAt: iat, Exp: exp}, nil
}

// Verify checks signature and expiry and returns the embedded claims.  The
// error is always an *Error of kind malformed-token, invalid-signature or
// expired-token.
func (c *Codec) Verify(raw string) (model.Claims, error) {
	if raw == "" {
		return model.Claims{}, ErrMissingToken
	}
	var tc tokenClaims
	tok, err := c.parser.ParseWithClaims(raw, &tc, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return model.Claims{}, classify(err)
	}
	if !tok.Valid {
		return model.Claims{}, Wrap(KindMalformedToken, jwt.ErrTokenInvalidClaims)
	}
	if !tc.Role.Valid() || tc.ID == 0 {
		return model.Claims{}, Wrap(KindMalformedToken, errors.New("token is missing identity claims"))
	}
	return model.Claims{
		ID:       tc.ID,
		Username: tc.Username,
		Role:     tc.Role,
		LDAP:     tc.LDAP,
	}, nil
}

// TokenExpiry decodes the exp claim without checking the signature.  It
// lets a client that holds no secret bound its stored session by the
// token's own expiry; it never establishes trust.
func TokenExpiry(raw string) (time.Time, bool) {
	var tc tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &tc); err != nil || tc.ExpiresAt == nil {
		return time.Time{}, false
	}
	return tc.ExpiresAt.Time, true
}

func classify(err error) *Error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Wrap(KindExpiredToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return Wrap(KindInvalidSignature, err)
	default:
		return Wrap(KindMalformedToken, err)
	}
}
