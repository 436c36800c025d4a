package model

import (
    "errors"
    "fmt"
    "strings"
)

// Role is the closed set of privilege levels an account can hold.  The
// underlying value is the privilege order: a larger value is strictly more
// privileged.  The zero value is not a role and never satisfies a check.
type Role uint8

const (
    RoleUser    Role = 1 // read-only access to inventory records
    RoleManager Role = 2 // may create and edit records
    RoleAdmin   Role = 3 // full access, including deletes and user management
)

// Roles lists every valid role from least to most privileged.
var Roles = []Role{RoleUser, RoleManager, RoleAdmin}

// ErrUnknownRole is returned when a role name is not part of the enumeration.
var ErrUnknownRole = errors.New("unknown role")

// String returns the wire name of the role ("admin", "manager", "user").
func (r Role) String() string {
    switch r {
    case RoleUser:
        return "user"
    case RoleManager:
        return "manager"
    case RoleAdmin:
        return "admin"
    }
    return fmt.Sprintf("role(%d)", uint8(r))
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
    return r >= RoleUser && r <= RoleAdmin
}

// ParseRole maps a wire name to a Role.  Matching is case-insensitive and
// ignores surrounding whitespace; anything else is ErrUnknownRole.
func ParseRole(s string) (Role, error) {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "user":
        return RoleUser, nil
    case "manager":
        return RoleManager, nil
    case "admin":
        return RoleAdmin, nil
    }
    return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// MarshalText encodes the role by name so JSON and storage carry "admin"
// rather than the numeric order.
func (r Role) MarshalText() ([]byte, error) {
    if !r.Valid() {
        return nil, fmt.Errorf("%w: %d", ErrUnknownRole, uint8(r))
    }
    return []byte(r.String()), nil
}

// UnmarshalText decodes a role name, rejecting values outside the enumeration.
func (r *Role) UnmarshalText(text []byte) error {
    parsed, err := ParseRole(string(text))
    if err != nil {
        return err
    }
    *r = parsed
    return nil
}

// Scan lets database/sql read the users.role column directly into a Role.
func (r *Role) Scan(src any) error {
    switch v := src.(type) {
    case string:
        return r.UnmarshalText([]byte(v))
    case []byte:
        return r.UnmarshalText(v)
    }
    return fmt.Errorf("%w: unsupported column type %T", ErrUnknownRole, src)
}
