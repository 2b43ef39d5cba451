package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"wastechem.org/internal/audit"
	"wastechem.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	msgAuthRequired = "Authorization header required"
	msgInvalidToken = "Invalid token"
)

// withAuth resolves the bearer token to an identity. Preflight requests pass through.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, msgAuthRequired)
			return
		}
		if a.verifier == nil {
			writeError(w, r, http.StatusUnauthorized, msgInvalidToken)
			return
		}

		id, err := a.verifier.Verify(r.Context(), token)
		if err != nil || id.ID == "" {
			if err != nil && !errors.Is(err, auth.ErrInvalidToken) {
				a.logger.WarnContext(r.Context(), "token verification failed",
					"request_id", audit.RequestIDFromContext(r.Context()),
					"error", err,
				)
			}
			writeError(w, r, http.StatusUnauthorized, msgInvalidToken)
			return
		}

		ctx := auth.ContextWithIdentity(r.Context(), id)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requirePermissions rejects callers whose role lacks any of perms.
func (a *API) requirePermissions(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a.ensurePermissions(w, r, perms...) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

func (a *API) ensurePermissions(w http.ResponseWriter, r *http.Request, perms ...string) bool {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgAuthRequired)
		return false
	}
	if a.authz == nil {
		writeError(w, r, http.StatusServiceUnavailable, "authorization service unavailable")
		return false
	}
	err := a.authz.Require(r.Context(), id, perms...)
	switch {
	case err == nil:
		return true
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, detail(err, auth.ErrForbidden))
	default:
		a.handleError(w, r, err)
	}
	return false
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.IdentityFromContext(r.Context())
	return id
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
