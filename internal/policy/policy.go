// Package policy decides whether a role satisfies an authorization
// requirement.  It is pure: no storage, no clock, no request state.
package policy

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/iliyamo/inventory-admin/internal/model"
)

// ErrInsufficientRole is returned by Check when the role does not satisfy
// the requirement.
var ErrInsufficientRole = errors.New("insufficient role")

// order is the privilege table.  It is exhaustive over model.Roles; a role
// missing here fails every check.
var order = map[model.Role]int{
	model.RoleAdmin:   3,
	model.RoleManager: 2,
	model.RoleUser:    1,
}

// Requirement is something a caller's role must satisfy.
type Requirement interface {
	Allows(role model.Role) bool
	String() string
}

// Set is an explicit finite allow-set of roles.
type Set map[model.Role]struct{}

// AnyOf builds an allow-set from roles.
func AnyOf(roles ...model.Role) Set {
	s := make(Set, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

func (s Set) Allows(role model.Role) bool { return HasRole(role, s) }

func (s Set) String() string {
	names := make([]string, 0, len(s))
	for r := range s {
		names = append(names, r.String())
	}
	sort.Strings(names)
	return "any of [" + strings.Join(names, ",") + "]"
}

// Minimum is an "at least this privileged" requirement backed by the order table.
type Minimum model.Role

// AtLeast builds an ordering requirement.
func AtLeast(role model.Role) Minimum { return Minimum(role) }

func (m Minimum) Allows(role model.Role) bool { return AtLeastRole(role, model.Role(m)) }

func (m Minimum) String() string { return "at least " + model.Role(m).String() }

// HasRole is the membership test used where routes name acceptable roles.
// An empty set admits nobody.
func HasRole(role model.Role, required Set) bool {
	if _, known := order[role]; !known {
		return false
	}
	_, ok := required[role]
	return ok
}

// AtLeastRole reports whether role is at least as privileged as min.
func AtLeastRole(role, min model.Role) bool {
	have, ok := order[role]
	if !ok {
		return false
	}
	need, ok := order[min]
	if !ok {
		return false
	}
	return have >= need
}

// Check applies req to role and returns ErrInsufficientRole (wrapped with
// the requirement) when it is not met.  A nil requirement admits every
// valid role.
func Check(role model.Role, req Requirement) error {
	if _, known := order[role]; !known {
		return fmt.Errorf("%w: %s is not a recognised role", ErrInsufficientRole, role)
	}
	if req == nil || req.Allows(role) {
		return nil
	}
	return fmt.Errorf("%w: %s does not satisfy %s", ErrInsufficientRole, role, req)
}

// IsAdmin reports whether role is exactly admin.
func IsAdmin(role model.Role) bool { return HasRole(role, AnyOf(model.RoleAdmin)) }

// IsManagerOrHigher reports order[role] >= order[manager].
func IsManagerOrHigher(role model.Role) bool { return AtLeastRole(role, model.RoleManager) }

// CanCreateRecords reports whether role may create or edit inventory records.
func CanCreateRecords(role model.Role) bool { return IsManagerOrHigher(role) }

// CanDeleteRecords reports whether role may delete inventory records.
func CanDeleteRecords(role model.Role) bool { return IsAdmin(role) }

// Capabilities is the projection of a role that UIs and clients render from.
type Capabilities struct {
	IsAdmin           bool `json:"is_admin"`
	IsManagerOrHigher bool `json:"is_manager_or_higher"`
	CanCreateRecords  bool `json:"can_create_records"`
	CanDeleteRecords  bool `json:"can_delete_records"`
}

// CapabilitiesOf computes every derived flag for role.
func CapabilitiesOf(role model.Role) Capabilities {
	return Capabilities{
		IsAdmin:           IsAdmin(role),
		IsManagerOrHigher: IsManagerOrHigher(role),
		CanCreateRecords:  CanCreateRecords(role),
		CanDeleteRecords:  CanDeleteRecords(role),
	}
}
