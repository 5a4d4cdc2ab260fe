package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"triggerd/internal/actions"
	"triggerd/internal/common/errors"
	"triggerd/internal/providers"
)

type providerSummary struct {
	ID         string           `json:"id"`
	Categories []string         `json:"categories"`
	Actions    int              `json:"actions"`
	Health     providers.Health `json:"health"`
}

func (h *Handlers) GetProviders(w http.ResponseWriter, r *http.Request) {
	health := h.providers.Health()
	list := h.providers.List()
	out := make([]providerSummary, 0, len(list))
	for _, p := range list {
		reg := p.Actions()
		out = append(out, providerSummary{
			ID:         p.ProviderID(),
			Categories: reg.Categories(),
			Actions:    reg.ActionCount(),
			Health:     health[p.ProviderID()],
		})
	}
	h.sendJSON(w, http.StatusOK, out)
}

func (h *Handlers) GetProviderActions(w http.ResponseWriter, r *http.Request) {
	p, err := h.providers.Get(mux.Vars(r)["id"])
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, p.Actions().Snapshot())
}

// ReloadProvider refreshes the catalogue of {id}.
func (h *Handlers) ReloadProvider(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	n, err := h.providers.Refresh(r.Context(), id)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, map[string]interface{}{"id": id, "actions": n})
}

// MatchAction resolves ?name= against ?category= of {id} the way
// free-text requests are resolved. ?all=true also considers actions not
// marked fuzzy.
func (h *Handlers) MatchAction(w http.ResponseWriter, r *http.Request) {
	p, err := h.providers.Get(mux.Vars(r)["id"])
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	q := r.URL.Query()
	category, name := q.Get("category"), q.Get("name")
	if category == "" || name == "" {
		h.sendError(w, r, errors.ValidationError("category and name are required"))
		return
	}
	if !p.Actions().Has(category) {
		h.sendError(w, r, errors.NotFoundError("category "+category))
		return
	}

	predicate := actions.ActionData.IsFuzzy
	if q.Get("all") == "true" {
		predicate = nil
	}
	match, ok := p.Actions().GetActionMap(category).ClosestMatch(name, predicate)
	if !ok {
		h.sendError(w, r, errors.NotFoundError("action matching '"+name+"'"))
		return
	}
	h.sendJSON(w, http.StatusOK, match)
}
