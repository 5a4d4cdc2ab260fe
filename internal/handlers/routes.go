package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"triggerd/internal/middleware"
	"triggerd/internal/ratelimit"
)

// Router builds the admin API. limiter may be nil; it applies to /api only.
func (h *Handlers) Router(limiter *ratelimit.Limiter) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.Recover(h.logger), middleware.Logging(h.logger))

	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	if h.metrics != nil {
		router.Handle("/metrics", h.metrics).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api").Subrouter()
	if limiter != nil {
		api.Use(limiter.Middleware(ratelimit.IPKey))
	}

	api.HandleFunc("/triggers", h.GetTriggers).Methods(http.MethodGet)
	api.HandleFunc("/triggers", h.CreateTrigger).Methods(http.MethodPost)
	api.HandleFunc("/triggers/{id}", h.GetTrigger).Methods(http.MethodGet)
	api.HandleFunc("/triggers/{id}", h.UpdateTrigger).Methods(http.MethodPut)
	api.HandleFunc("/triggers/{id}", h.DeleteTrigger).Methods(http.MethodDelete)
	api.HandleFunc("/triggers/{id}/enable", h.EnableTrigger).Methods(http.MethodPost)
	api.HandleFunc("/triggers/{id}/disable", h.DisableTrigger).Methods(http.MethodPost)
	api.HandleFunc("/triggers/{id}/toggle", h.ToggleTrigger).Methods(http.MethodPost)
	api.HandleFunc("/triggers/{id}/cooldown", h.SetTriggerCooldown).Methods(http.MethodPut)

	api.HandleFunc("/events/{event}", h.HandleEvent).Methods(http.MethodPost)
	api.HandleFunc("/schedules", h.GetSchedules).Methods(http.MethodGet)

	api.HandleFunc("/providers", h.GetProviders).Methods(http.MethodGet)
	api.HandleFunc("/providers/{id}/actions", h.GetProviderActions).Methods(http.MethodGet)
	api.HandleFunc("/providers/{id}/reload", h.ReloadProvider).Methods(http.MethodPost)
	api.HandleFunc("/providers/{id}/match", h.MatchAction).Methods(http.MethodGet)

	api.HandleFunc("/users/{platform}", h.ListUsers).Methods(http.MethodGet)
	api.HandleFunc("/users/{platform}/{username}", h.GetUser).Methods(http.MethodGet)
	api.HandleFunc("/users/{platform}/{username}/blocks/{item}", h.BlockUser).Methods(http.MethodPut)
	api.HandleFunc("/users/{platform}/{username}/blocks/{item}", h.UnblockUser).Methods(http.MethodDelete)
	api.HandleFunc("/users/{platform}/{username}/cooldowns/{item}", h.SetUserCooldown).Methods(http.MethodPut)
	api.HandleFunc("/users/{platform}/{username}/cooldowns/{item}", h.ClearUserCooldown).Methods(http.MethodDelete)

	return router
}
