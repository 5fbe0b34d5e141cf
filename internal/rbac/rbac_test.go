package rbac

import (
	"errors"
	"testing"
)

func TestRequire(t *testing.T) {
	cases := []struct {
		name     string
		role     Role
		required Role
		allow    bool
	}{
		{name: "reader read", role: RoleReader, required: RoleReader, allow: true},
		{name: "reader write", role: RoleReader, required: RoleEditor, allow: false},
		{name: "editor write", role: RoleEditor, required: RoleEditor, allow: true},
		{name: "editor delete board", role: RoleEditor, required: RoleOwner, allow: false},
		{name: "owner read", role: RoleOwner, required: RoleReader, allow: true},
		{name: "owner delete board", role: RoleOwner, required: RoleOwner, allow: true},
		{name: "none read", role: RoleNone, required: RoleReader, allow: false},
		{name: "none none", role: RoleNone, required: RoleNone, allow: false},
		{name: "unknown role", role: Role("admin"), required: RoleReader, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Require(tc.role, tc.required)
			if (err == nil) != tc.allow {
				t.Fatalf("Require(%q, %q) = %v, want allow=%v", tc.role, tc.required, err, tc.allow)
			}
			if err != nil && !errors.Is(err, ErrForbidden) {
				t.Fatalf("expected ErrForbidden, got %v", err)
			}
		})
	}
}

func TestRoleOrderIsMonotonic(t *testing.T) {
	roles := []Role{RoleNone, RoleReader, RoleEditor, RoleOwner}
	for i, stronger := range roles {
		for _, weaker := range roles[:i+1] {
			if !AtLeast(stronger, weaker) {
				t.Fatalf("%q should satisfy %q", stronger, weaker)
			}
		}
	}
}

func TestResolveRole(t *testing.T) {
	perms := []Permission{
		{UserID: "u1", Role: RoleOwner},
		{UserID: "u2", Role: RoleReader},
		{UserID: "u2", Role: RoleEditor},
	}
	if got := ResolveRole(perms, "u1"); got != RoleOwner {
		t.Fatalf("u1 = %q", got)
	}
	if got := ResolveRole(perms, "u2"); got != RoleEditor {
		t.Fatalf("u2 = %q", got)
	}
	if got := ResolveRole(perms, "u3"); got != RoleNone {
		t.Fatalf("u3 = %q", got)
	}
}

func TestCanView(t *testing.T) {
	cases := []struct {
		name          string
		visibility    Visibility
		role          Role
		assignee      bool
		publicEnabled bool
		want          bool
	}{
		{name: "private reader", visibility: VisibilityPrivate, role: RoleReader, want: false},
		{name: "private editor", visibility: VisibilityPrivate, role: RoleEditor, want: true},
		{name: "private owner", visibility: VisibilityPrivate, role: RoleOwner, want: true},
		{name: "private assignee reader", visibility: VisibilityPrivate, role: RoleReader, assignee: true, want: true},
		{name: "restricted reader", visibility: VisibilityRestricted, role: RoleReader, want: true},
		{name: "restricted outsider", visibility: VisibilityRestricted, role: RoleNone, want: false},
		{name: "public outsider flag off", visibility: VisibilityPublic, role: RoleNone, want: false},
		{name: "public outsider flag on", visibility: VisibilityPublic, role: RoleNone, publicEnabled: true, want: true},
		{name: "public reader flag off", visibility: VisibilityPublic, role: RoleReader, want: true},
		{name: "empty treated as restricted", visibility: "", role: RoleReader, want: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanView(tc.visibility, tc.role, tc.assignee, tc.publicEnabled); got != tc.want {
				t.Fatalf("CanView() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	if role, ok := ParseRole(" Editor "); !ok || role != RoleEditor {
		t.Fatalf("ParseRole(Editor) = %q, %v", role, ok)
	}
	if _, ok := ParseRole("admin"); ok {
		t.Fatal("admin should not parse")
	}
}
