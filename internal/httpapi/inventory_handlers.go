package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"wastechem.org/internal/inventory"
)

func (a *API) listWaste(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := a.inventory.ListWaste(r.Context(), inventory.WasteFilter{
		Category: q.Get("category"),
		Status:   q.Get("status"),
		Search:   q.Get("search"),
	})
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) createWaste(w http.ResponseWriter, r *http.Request) {
	var req inventory.NewWaste
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	item, err := a.inventory.CreateWaste(r.Context(), identity(r), req)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (a *API) updateWaste(w http.ResponseWriter, r *http.Request) {
	var req inventory.WastePatch
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	item, err := a.inventory.UpdateWaste(r.Context(), identity(r), chi.URLParam(r, "id"), req)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) deleteWaste(w http.ResponseWriter, r *http.Request) {
	if err := a.inventory.DeleteWaste(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Waste deleted successfully"})
}

func (a *API) listChemicals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := inventory.ChemicalFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
	}
	if raw := q.Get("expiring_soon"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "expiring_soon must be a boolean")
			return
		}
		f.ExpiringSoon = v
	}
	items, err := a.inventory.ListChemicals(r.Context(), f)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) createChemical(w http.ResponseWriter, r *http.Request) {
	var req inventory.NewChemical
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	item, err := a.inventory.CreateChemical(r.Context(), identity(r), req)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (a *API) updateChemical(w http.ResponseWriter, r *http.Request) {
	var req inventory.ChemicalPatch
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	item, err := a.inventory.UpdateChemical(r.Context(), identity(r), chi.URLParam(r, "id"), req)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) deleteChemical(w http.ResponseWriter, r *http.Request) {
	if err := a.inventory.DeleteChemical(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chemical deleted successfully"})
}
