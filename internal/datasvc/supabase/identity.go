package supabase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go/types"

	"wastechem.org/internal/auth"
)

// Verify resolves token through the identity service's user endpoint. Any
// failure is reported as auth.ErrInvalidToken.
func (c *Client) Verify(ctx context.Context, token string) (auth.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	user, err := call(ctx, c.timeout, func() (*types.UserResponse, error) {
		return c.auth.WithToken(token).GetUser()
	})
	if err != nil {
		return auth.Identity{}, fmt.Errorf("%w: identity lookup: %v", auth.ErrInvalidToken, err)
	}
	if user == nil || user.ID == uuid.Nil {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return auth.Identity{ID: user.ID.String(), Email: user.Email}, nil
}
