package auth

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrForbidden    = errors.New("auth: forbidden")
	ErrNoRole       = fmt.Errorf("%w: no assigned role", ErrForbidden)
	ErrUnavailable  = errors.New("auth: authorization service unavailable")
	ErrNotFound     = errors.New("auth: not found")
	ErrInvalidInput = errors.New("auth: invalid input")
)

// PermissionError is a policy denial for a single permission.
type PermissionError struct {
	Permission string
}

func (e *PermissionError) Error() string {
	return "missing permission: " + e.Permission
}

func (e *PermissionError) Is(target error) bool { return target == ErrForbidden }

func unavailable(step string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, step, err)
}
