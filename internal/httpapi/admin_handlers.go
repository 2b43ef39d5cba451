package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type updateUserRoleRequest struct {
	RoleID string `json:"role_id"`
}

func (a *API) profile(w http.ResponseWriter, r *http.Request) {
	p, err := a.directory.Profile(r.Context(), identity(r))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.directory.ListUsers(r.Context())
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := a.directory.ListRoles(r.Context())
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

func (a *API) updateUserRole(w http.ResponseWriter, r *http.Request) {
	var req updateUserRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	userID := chi.URLParam(r, "id")
	user, err := a.directory.UpdateUserRole(r.Context(), userID, req.RoleID)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	if a.recorder != nil {
		a.recorder.Record(r.Context(), identity(r), "Updated User Role", map[string]any{
			"target_user_id": userID,
			"role_id":        req.RoleID,
		})
	}
	writeJSON(w, http.StatusOK, user)
}
