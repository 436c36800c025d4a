package auth

import "errors"

// Kind names a class of session/authorization failure.  Callers that need
// differentiated messaging switch on Kind; everyone else treats every
// failure the same way.
type Kind string

const (
	KindMissingToken       Kind = "missing-token"
	KindMalformedToken     Kind = "malformed-token"
	KindInvalidSignature   Kind = "invalid-signature"
	KindExpiredToken       Kind = "expired-token"
	KindInsufficientRole   Kind = "insufficient-role"
	KindStorageUnavailable Kind = "storage-unavailable"
)

// Error is a typed failure crossing the trust boundary.  Err holds the
// underlying cause when there is one.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, ErrExpiredToken)
// holds regardless of the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrMissingToken       = &Error{Kind: KindMissingToken}
	ErrMalformedToken     = &Error{Kind: KindMalformedToken}
	ErrInvalidSignature   = &Error{Kind: KindInvalidSignature}
	ErrExpiredToken       = &Error{Kind: KindExpiredToken}
	ErrInsufficientRole   = &Error{Kind: KindInsufficientRole}
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable}
)

// ErrSecretMissing aborts startup: a codec cannot exist without a signing secret.
var ErrSecretMissing = errors.New("jwt signing secret is not configured")

// Wrap attaches a cause to a failure kind.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the failure kind carried by err, or "" when err is not a
// typed auth failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsTokenFailure reports whether err means the presented credential cannot
// be used (missing, malformed, bad signature, expired).
func IsTokenFailure(err error) bool {
	switch KindOf(err) {
	case KindMissingToken, KindMalformedToken, KindInvalidSignature, KindExpiredToken:
		return true
	}
	return false
}
