package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"triggerd/internal/common/errors"
	"triggerd/internal/common/logging"
	"triggerd/internal/models"
	"triggerd/internal/triggers"
)

// GetTriggers lists triggers in store order. ?event= restricts the list
// to triggers indexed under that event.
func (h *Handlers) GetTriggers(w http.ResponseWriter, r *http.Request) {
	all := h.store.List()
	event := r.URL.Query().Get("event")
	if event == "" {
		h.sendJSON(w, http.StatusOK, all)
		return
	}

	indexed := make(map[string]bool)
	for _, id := range h.store.Indexed(event) {
		indexed[id] = true
	}
	out := make([]triggers.Trigger, 0, len(indexed))
	for _, t := range all {
		if indexed[t.ID] {
			out = append(out, t)
		}
	}
	h.sendJSON(w, http.StatusOK, out)
}

func (h *Handlers) GetTrigger(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.Get(mux.Vars(r)["id"])
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, t)
}

func (h *Handlers) CreateTrigger(w http.ResponseWriter, r *http.Request) {
	var t triggers.Trigger
	if err := decodeBody(r, &t); err != nil {
		h.sendError(w, r, err)
		return
	}
	if err := h.store.Add(t); err != nil {
		h.sendError(w, r, err)
		return
	}
	h.persist(r.Context())
	h.logger.WithContext(r.Context()).Info("Trigger created", logging.String("trigger_id", t.ID))

	created, _ := h.store.Get(t.ID)
	h.sendJSON(w, http.StatusCreated, created)
}

// UpdateTrigger replaces the definition of {id}. A body id, when present,
// must match the path.
func (h *Handlers) UpdateTrigger(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var t triggers.Trigger
	if err := decodeBody(r, &t); err != nil {
		h.sendError(w, r, err)
		return
	}
	if t.ID == "" {
		t.ID = id
	}
	if t.ID != id {
		h.sendError(w, r, errors.ValidationError("trigger id in body does not match path"))
		return
	}
	if err := h.store.Update(t); err != nil {
		h.sendError(w, r, err)
		return
	}
	h.persist(r.Context())

	updated, _ := h.store.Get(id)
	h.sendJSON(w, http.StatusOK, updated)
}

func (h *Handlers) DeleteTrigger(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.store.Remove(id); err != nil {
		h.sendError(w, r, err)
		return
	}
	h.persist(r.Context())
	h.logger.WithContext(r.Context()).Info("Trigger deleted", logging.String("trigger_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) EnableTrigger(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, func(id string) error { return h.store.Enable(id) })
}

func (h *Handlers) DisableTrigger(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, func(id string) error { return h.store.Disable(id) })
}

func (h *Handlers) ToggleTrigger(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, func(id string) error {
		_, err := h.store.Toggle(id)
		return err
	})
}

func (h *Handlers) setEnabled(w http.ResponseWriter, r *http.Request, apply func(id string) error) {
	id := mux.Vars(r)["id"]
	if err := apply(id); err != nil {
		h.sendError(w, r, err)
		return
	}
	h.persist(r.Context())
	t, _ := h.store.Get(id)
	h.sendJSON(w, http.StatusOK, map[string]interface{}{"id": id, "enabled": t.Enabled})
}

type cooldownRequest struct {
	// Cooldown in milliseconds
	Cooldown *int64 `json:"cooldown"`
}

func (h *Handlers) SetTriggerCooldown(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req cooldownRequest
	if err := decodeBody(r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}
	if req.Cooldown == nil {
		h.sendError(w, r, errors.ValidationError("cooldown is required"))
		return
	}
	if err := h.store.SetCooldown(id, *req.Cooldown); err != nil {
		h.sendError(w, r, err)
		return
	}
	h.persist(r.Context())
	h.sendJSON(w, http.StatusOK, map[string]interface{}{"id": id, "cooldown": *req.Cooldown})
}

type eventResponse struct {
	Event    string             `json:"event"`
	Outcomes []triggers.Outcome `json:"outcomes"`
}

// HandleEvent runs {event} with the request body as event data and
// returns the outcome of every indexed trigger.
func (h *Handlers) HandleEvent(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["event"]
	data := map[string]interface{}{}
	if r.ContentLength != 0 {
		if err := decodeBody(r, &data); err != nil {
			h.sendError(w, r, err)
			return
		}
	}

	ev := models.NewEvent(name, data).WithSource(models.CallerAPI)
	outcomes := h.store.HandleEvent(r.Context(), ev)
	if outcomes == nil {
		outcomes = []triggers.Outcome{}
	}
	h.sendJSON(w, http.StatusOK, eventResponse{Event: name, Outcomes: outcomes})
}

// GetSchedules lists schedule entries with their next fire times.
func (h *Handlers) GetSchedules(w http.ResponseWriter, r *http.Request) {
	if h.schedule == nil {
		h.sendJSON(w, http.StatusOK, []interface{}{})
		return
	}
	h.sendJSON(w, http.StatusOK, h.schedule.Entries())
}
