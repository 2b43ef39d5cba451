package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wastechem.org/internal/datasvc"
)

// Directory reads and administers user profiles and roles.
type Directory struct {
	tables datasvc.Tables
	authz  *Authorizer
}

func NewDirectory(tables datasvc.Tables, authz *Authorizer) *Directory {
	return &Directory{tables: tables, authz: authz}
}

// Profile returns the caller's profile with role and granted permission names.
func (d *Directory) Profile(ctx context.Context, id Identity) (Profile, error) {
	row, err := datasvc.Single(ctx, d.tables, datasvc.From(tableProfiles).Where(datasvc.Eq("id", id.ID)))
	if errors.Is(err, datasvc.ErrNotFound) {
		return Profile{}, fmt.Errorf("%w: profile not found", ErrNotFound)
	}
	if err != nil {
		return Profile{}, fmt.Errorf("load profile: %w", err)
	}
	var user User
	if err := datasvc.Decode(row, &user); err != nil {
		return Profile{}, err
	}
	if user.Email == "" {
		user.Email = id.Email
	}
	p := Profile{User: user, Permissions: []string{}}
	if user.RoleID == nil || *user.RoleID == "" {
		return p, nil
	}
	role, err := d.role(ctx, string(*user.RoleID))
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return Profile{}, err
	default:
		p.Role = &role
	}
	perms, err := d.authz.Permissions(ctx, string(*user.RoleID))
	if err != nil {
		return Profile{}, err
	}
	p.Permissions = perms
	return p, nil
}

// ListUsers returns every profile with its role attached, ordered by email.
func (d *Directory) ListUsers(ctx context.Context) ([]User, error) {
	res, err := d.tables.Select(ctx, datasvc.From(tableProfiles).Order("email", false))
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	users := []User{}
	if err := datasvc.Decode(res.Rows, &users); err != nil {
		return nil, err
	}
	roles, err := d.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[datasvc.Key]Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}
	for i := range users {
		if users[i].RoleID == nil {
			continue
		}
		if r, ok := byID[*users[i].RoleID]; ok {
			r := r
			users[i].Role = &r
		}
	}
	return users, nil
}

// ListRoles returns every role ordered by name.
func (d *Directory) ListRoles(ctx context.Context) ([]Role, error) {
	res, err := d.tables.Select(ctx, datasvc.From(tableRoles).Order("name", false))
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	roles := []Role{}
	if err := datasvc.Decode(res.Rows, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// UpdateUserRole assigns roleID to the user's profile.
func (d *Directory) UpdateUserRole(ctx context.Context, userID, roleID string) (User, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return User{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	role, err := d.role(ctx, roleID)
	if errors.Is(err, ErrNotFound) {
		return User{}, fmt.Errorf("%w: unknown role %s", ErrInvalidInput, roleID)
	}
	if err != nil {
		return User{}, err
	}
	rows, err := d.tables.Update(ctx, tableProfiles, datasvc.Row{"role_id": roleID}, datasvc.Eq("id", userID))
	if err != nil {
		return User{}, fmt.Errorf("update profile: %w", err)
	}
	if len(rows) == 0 {
		return User{}, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	var user User
	if err := datasvc.Decode(rows[0], &user); err != nil {
		return User{}, err
	}
	user.Role = &role
	return user, nil
}

func (d *Directory) role(ctx context.Context, roleID string) (Role, error) {
	row, err := datasvc.Single(ctx, d.tables, datasvc.From(tableRoles).Where(datasvc.Eq("id", roleID)))
	if errors.Is(err, datasvc.ErrNotFound) {
		return Role{}, ErrNotFound
	}
	if err != nil {
		return Role{}, fmt.Errorf("load role: %w", err)
	}
	var role Role
	if err := datasvc.Decode(row, &role); err != nil {
		return Role{}, err
	}
	return role, nil
}
