package auth

import (
	"context"
	"errors"
	"testing"
)

func newDirectory() *Directory {
	s := seededStore()
	return NewDirectory(s, NewAuthorizer(s))
}

func TestProfileIncludesPermissions(t *testing.T) {
	p, err := newDirectory().Profile(context.Background(), Identity{ID: "u-viewer"})
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.Role == nil || p.Role.Name != "viewer" {
		t.Fatalf("expected viewer role, got %+v", p.Role)
	}
	if len(p.Permissions) != 1 || p.Permissions[0] != PermViewWaste {
		t.Fatalf("unexpected permissions %v", p.Permissions)
	}
}

func TestProfileWithoutRole(t *testing.T) {
	p, err := newDirectory().Profile(context.Background(), Identity{ID: "u-none"})
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.Role != nil || p.Permissions == nil || len(p.Permissions) != 0 {
		t.Fatalf("expected empty permissions and no role, got %+v", p)
	}
}

func TestProfileNotFound(t *testing.T) {
	_, err := newDirectory().Profile(context.Background(), Identity{ID: "ghost"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListUsersAttachesRoles(t *testing.T) {
	users, err := newDirectory().ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(users))
	}
	if users[0].Email != "admin@example.com" || users[0].Role == nil || users[0].Role.Name != "admin" {
		t.Fatalf("unexpected first user %+v", users[0])
	}
	if users[1].Email != "none@example.com" || users[1].Role != nil {
		t.Fatalf("unexpected second user %+v", users[1])
	}
}

func TestUpdateUserRole(t *testing.T) {
	d := newDirectory()
	ctx := context.Background()

	user, err := d.UpdateUserRole(ctx, "u-none", "r-viewer")
	if err != nil {
		t.Fatalf("UpdateUserRole: %v", err)
	}
	if user.RoleID == nil || *user.RoleID != "r-viewer" || user.Role.Name != "viewer" {
		t.Fatalf("unexpected user %+v", user)
	}
	if err := d.authz.Require(ctx, Identity{ID: "u-none"}, PermViewWaste); err != nil {
		t.Fatalf("expected new role to grant view_waste: %v", err)
	}

	if _, err := d.UpdateUserRole(ctx, "u-none", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty role, got %v", err)
	}
	if _, err := d.UpdateUserRole(ctx, "u-none", "r-ghost"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown role, got %v", err)
	}
	if _, err := d.UpdateUserRole(ctx, "ghost", "r-viewer"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown user, got %v", err)
	}
}

func TestListRolesOrdered(t *testing.T) {
	roles, err := newDirectory().ListRoles(context.Background())
	if err != nil {
		t.Fatalf("ListRoles: %v", err)
	}
	if len(roles) != 2 || roles[0].Name != "admin" || roles[1].Name != "viewer" {
		t.Fatalf("unexpected roles %+v", roles)
	}
}
