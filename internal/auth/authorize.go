package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"wastechem.org/internal/datasvc"
)

const (
	tableProfiles        = "profiles"
	tableRoles           = "roles"
	tablePermissions     = "permissions"
	tableRolePermissions = "role_permissions"

	// lookupTimeout bounds one shared lookup.
	lookupTimeout = 10 * time.Second
)

// Authorizer checks permissions through profile -> role -> role_permissions.
// Lookups hit the data service on every call; concurrent identical lookups
// share one round trip.
type Authorizer struct {
	tables datasvc.Tables
	group  singleflight.Group
}

func NewAuthorizer(tables datasvc.Tables) *Authorizer {
	return &Authorizer{tables: tables}
}

// Require succeeds only when the identity's role grants every permission.
// Denials match ErrForbidden; lookup failures match ErrUnavailable.
func (a *Authorizer) Require(ctx context.Context, id Identity, perms ...string) error {
	roleID, err := a.RoleOf(ctx, id.ID)
	if err != nil {
		return err
	}
	for _, perm := range perms {
		ok, err := a.roleHas(ctx, roleID, perm)
		if err != nil {
			return err
		}
		if !ok {
			return &PermissionError{Permission: perm}
		}
	}
	return nil
}

// RoleOf returns the role id assigned to the user, or ErrNoRole.
func (a *Authorizer) RoleOf(ctx context.Context, userID string) (string, error) {
	v, err := a.shared(ctx, "role:"+userID, func(ctx context.Context) (any, error) {
		row, err := datasvc.Single(ctx, a.tables, datasvc.From(tableProfiles).
			Select("role_id").
			Where(datasvc.Eq("id", userID)))
		if errors.Is(err, datasvc.ErrNotFound) {
			return "", ErrNoRole
		}
		if err != nil {
			return "", unavailable("profile lookup", err)
		}
		roleID := string(datasvc.KeyOf(row["role_id"]))
		if roleID == "" {
			return "", ErrNoRole
		}
		return roleID, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (a *Authorizer) roleHas(ctx context.Context, roleID, perm string) (bool, error) {
	v, err := a.shared(ctx, "perm:"+roleID+":"+perm, func(ctx context.Context) (any, error) {
		row, err := datasvc.Single(ctx, a.tables, datasvc.From(tablePermissions).
			Select("id").
			Where(datasvc.Eq("name", perm)))
		if errors.Is(err, datasvc.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, unavailable("permission lookup", err)
		}
		_, err = datasvc.Single(ctx, a.tables, datasvc.From(tableRolePermissions).
			Select("role_id").
			Where(datasvc.Eq("role_id", roleID), datasvc.Eq("permission_id", row["id"])))
		if errors.Is(err, datasvc.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, unavailable("role permission lookup", err)
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// shared runs fn once for all concurrent callers of key. fn gets a context
// detached from the caller's cancellation; each caller still stops waiting
// when its own ctx is done.
func (a *Authorizer) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := a.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		return fn(lctx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Permissions lists the permission names granted to a role, sorted.
func (a *Authorizer) Permissions(ctx context.Context, roleID string) ([]string, error) {
	links, err := a.tables.Select(ctx, datasvc.From(tableRolePermissions).
		Select("permission_id").
		Where(datasvc.Eq("role_id", roleID)))
	if err != nil {
		return nil, fmt.Errorf("list role permissions: %w", err)
	}
	names := []string{}
	if len(links.Rows) == 0 {
		return names, nil
	}
	permIDs := make([]string, 0, len(links.Rows))
	for _, r := range links.Rows {
		permIDs = append(permIDs, string(datasvc.KeyOf(r["permission_id"])))
	}
	perms, err := a.tables.Select(ctx, datasvc.From(tablePermissions).
		Select("name").
		Where(datasvc.In("id", permIDs)))
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	for _, r := range perms.Rows {
		if name, ok := r["name"].(string); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
