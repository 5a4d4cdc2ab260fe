package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"triggerd/internal/common/errors"
	"triggerd/internal/users"
)

func userVars(r *http.Request) (users.Platform, string, error) {
	vars := mux.Vars(r)
	platform, err := users.ParsePlatform(vars["platform"])
	if err != nil {
		return "", "", err
	}
	return platform, vars["username"], nil
}

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	platform, err := users.ParsePlatform(mux.Vars(r)["platform"])
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	list, err := h.users.Users(r.Context(), platform)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	if list == nil {
		list = []users.User{}
	}
	h.sendJSON(w, http.StatusOK, list)
}

func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	platform, username, err := userVars(r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	u, err := h.users.User(r.Context(), platform, username)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, u)
}

func (h *Handlers) BlockUser(w http.ResponseWriter, r *http.Request) {
	h.editUser(w, r, func(p users.Platform, username, item string) error {
		return h.users.Block(r.Context(), p, username, item)
	})
}

func (h *Handlers) UnblockUser(w http.ResponseWriter, r *http.Request) {
	h.editUser(w, r, func(p users.Platform, username, item string) error {
		return h.users.Unblock(r.Context(), p, username, item)
	})
}

type userCooldownRequest struct {
	Seconds int64 `json:"seconds"`
}

func (h *Handlers) SetUserCooldown(w http.ResponseWriter, r *http.Request) {
	var req userCooldownRequest
	if err := decodeBody(r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}
	if req.Seconds <= 0 {
		h.sendError(w, r, errors.ValidationError("seconds must be positive"))
		return
	}
	h.editUser(w, r, func(p users.Platform, username, item string) error {
		return h.users.SetCooldown(r.Context(), p, username, item, time.Duration(req.Seconds)*time.Second)
	})
}

func (h *Handlers) ClearUserCooldown(w http.ResponseWriter, r *http.Request) {
	h.editUser(w, r, func(p users.Platform, username, item string) error {
		return h.users.ClearCooldown(r.Context(), p, username, item)
	})
}

// editUser applies fn to the {platform}/{username}/{item} of the path and
// responds with the updated user.
func (h *Handlers) editUser(w http.ResponseWriter, r *http.Request, fn func(users.Platform, string, string) error) {
	platform, username, err := userVars(r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	if err := fn(platform, username, mux.Vars(r)["item"]); err != nil {
		h.sendError(w, r, err)
		return
	}
	u, err := h.users.User(r.Context(), platform, username)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, u)
}
