package httpapi

import (
	"net/http"

	"wastechem.org/internal/audit"
)

func (a *API) dashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.inventory.Stats(r.Context())
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) notifications(w http.ResponseWriter, r *http.Request) {
	items, err := a.inventory.Notifications(r.Context())
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) activityLog(w http.ResponseWriter, r *http.Request) {
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), audit.DefaultLimit, 1, audit.MaxLimit)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := a.recorder.List(r.Context(), limit)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
