// Package handlers is the admin HTTP API: trigger management, event
// injection, provider catalogues and user moderation.
package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"triggerd/internal/common/errors"
	"triggerd/internal/common/logging"
	"triggerd/internal/providers"
	"triggerd/internal/sources/schedule"
	"triggerd/internal/triggers"
	"triggerd/internal/users"
)

type Handlers struct {
	store     *triggers.Store
	repo      triggers.Repository
	providers *providers.Manager
	users     users.Registry
	schedule  *schedule.Source
	metrics   http.Handler
	logger    logging.Logger
}

type Option func(*Handlers)

// WithRepository persists trigger mutations.
func WithRepository(repo triggers.Repository) Option {
	return func(h *Handlers) { h.repo = repo }
}

func WithSchedule(s *schedule.Source) Option {
	return func(h *Handlers) { h.schedule = s }
}

// WithMetrics serves handler on /metrics.
func WithMetrics(handler http.Handler) Option {
	return func(h *Handlers) { h.metrics = handler }
}

func WithLogger(logger logging.Logger) Option {
	return func(h *Handlers) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func New(store *triggers.Store, manager *providers.Manager, registry users.Registry, opts ...Option) *Handlers {
	h := &Handlers{
		store:     store,
		providers: manager,
		users:     registry,
		logger:    logging.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.WithFields(logging.String("component", "api"))
	return h
}

type errorResponse struct {
	Error string           `json:"error"`
	Type  errors.ErrorType `json:"type,omitempty"`
}

func (h *Handlers) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", err)
	}
}

// sendError maps the error type to a status code. Internal errors are
// logged and their message hidden.
func (h *Handlers) sendError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		msg = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		h.logger.WithContext(r.Context()).Error("Request failed", err, logging.String("path", r.URL.Path))
		if status == http.StatusInternalServerError {
			msg = "Internal server error"
		}
	}
	h.sendJSON(w, status, errorResponse{Error: msg, Type: errors.GetType(err)})
}

func statusFor(err error) int {
	switch errors.GetType(err) {
	case errors.ErrTypeValidation, errors.ErrTypeConfig, errors.ErrTypeTypeMismatch:
		return http.StatusBadRequest
	case errors.ErrTypeAuth:
		return http.StatusUnauthorized
	case errors.ErrTypeNotFound:
		return http.StatusNotFound
	case errors.ErrTypeDuplicateID, errors.ErrTypeRefreshInProgress:
		return http.StatusConflict
	case errors.ErrTypeRefreshTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrTypeEmptyResult:
		return http.StatusBadGateway
	case errors.ErrTypeConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return errors.ValidationError("invalid request body: " + err.Error())
	}
	return nil
}

// persist saves the store after a mutation. Failures are logged; the
// in-memory change stands.
func (h *Handlers) persist(ctx context.Context) {
	if h.repo == nil {
		return
	}
	if err := h.store.SaveTo(ctx, h.repo); err != nil {
		h.logger.WithContext(ctx).Error("Failed to persist triggers", err)
	}
}

type healthResponse struct {
	Status    string                      `json:"status"`
	Triggers  int                         `json:"triggers"`
	Providers map[string]providers.Health `json:"providers"`
}

// HealthCheck reports degraded when any provider is not healthy.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    providers.StatusHealthy,
		Triggers:  len(h.store.List()),
		Providers: h.providers.Health(),
	}
	for _, ph := range resp.Providers {
		if ph.Status != providers.StatusHealthy {
			resp.Status = providers.StatusDegraded
		}
	}
	h.sendJSON(w, http.StatusOK, resp)
}
