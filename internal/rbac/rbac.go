package rbac

import (
	"errors"
	"fmt"
	"strings"
)

type Role string
type Visibility string

const (
	RoleNone   Role = ""
	RoleReader Role = "reader"
	RoleEditor Role = "editor"
	RoleOwner  Role = "owner"
)

const (
	VisibilityPrivate    Visibility = "private"
	VisibilityRestricted Visibility = "restricted"
	VisibilityPublic     Visibility = "public"
)

var ErrForbidden = errors.New("forbidden")

var roleRank = map[Role]int{
	RoleNone:   0,
	RoleReader: 1,
	RoleEditor: 2,
	RoleOwner:  3,
}

// Permission is one (board, user) grant.
type Permission struct {
	UserID string
	Role   Role
}

// Rank orders roles; unknown roles rank as none.
func Rank(role Role) int {
	return roleRank[role]
}

// AtLeast reports whether role satisfies required. Checks are monotonic.
func AtLeast(role, required Role) bool {
	return Rank(role) >= Rank(required)
}

// ResolveRole returns the strongest role held by userID in perms, or none.
func ResolveRole(perms []Permission, userID string) Role {
	resolved := RoleNone
	for _, perm := range perms {
		if perm.UserID != userID {
			continue
		}
		if Rank(perm.Role) > Rank(resolved) {
			resolved = perm.Role
		}
	}
	return resolved
}

// Require fails with an error wrapping ErrForbidden when role is weaker than required.
func Require(role, required Role) error {
	if AtLeast(role, required) && role != RoleNone {
		return nil
	}
	have := string(role)
	if have == "" {
		have = "none"
	}
	return fmt.Errorf("%w: role %s, requires %s", ErrForbidden, have, required)
}

// EffectiveVisibility folds public into restricted unless public visibility is enabled.
func EffectiveVisibility(v Visibility, publicEnabled bool) Visibility {
	if v == VisibilityPublic && !publicEnabled {
		return VisibilityRestricted
	}
	return v
}

// CanView reports whether a viewer holding role on a board sees a card with
// visibility v. The card's assignee always sees it.
func CanView(v Visibility, role Role, isAssignee, publicEnabled bool) bool {
	if isAssignee {
		return true
	}
	switch EffectiveVisibility(NormalizeVisibility(string(v)), publicEnabled) {
	case VisibilityPublic:
		return true
	case VisibilityPrivate:
		return AtLeast(role, RoleEditor)
	default:
		return role != RoleNone
	}
}

func ParseRole(role string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(role))) {
	case RoleReader:
		return RoleReader, true
	case RoleEditor:
		return RoleEditor, true
	case RoleOwner:
		return RoleOwner, true
	default:
		return RoleNone, false
	}
}

func ParseVisibility(v string) (Visibility, bool) {
	switch Visibility(strings.ToLower(strings.TrimSpace(v))) {
	case VisibilityPrivate:
		return VisibilityPrivate, true
	case VisibilityRestricted:
		return VisibilityRestricted, true
	case VisibilityPublic:
		return VisibilityPublic, true
	default:
		return "", false
	}
}

// NormalizeVisibility maps unknown or empty values to restricted.
func NormalizeVisibility(v string) Visibility {
	if parsed, ok := ParseVisibility(v); ok {
		return parsed
	}
	return VisibilityRestricted
}
