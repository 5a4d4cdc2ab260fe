// Package providers wires integrations to the event engine: registration
// with unique ids, dispatch of execute-action requests, catalogue refresh
// and decoding of request context into typed variants.
package providers

import (
	"context"
	"errors"
	"time"

	"triggerd/internal/actions"
	"triggerd/internal/models"
)

// Executor runs requests addressed to its provider id.
type Executor interface {
	ProviderID() string
	ExecuteRequest(ctx context.Context, req models.InternalRequest) models.Result
}

// Integration is an Executor that owns an action registry.
type Integration interface {
	Executor
	Actions() *actions.Provider
}

// Startable integrations are started by the Manager after registration.
type Startable interface {
	Start(ctx context.Context) error
}

// Stoppable integrations are stopped on shutdown.
type Stoppable interface {
	Stop(ctx context.Context) error
}

// HealthReporting integrations report their own status.
type HealthReporting interface {
	Health() Health
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Health is the status of one integration.
type Health struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Claim resolves the actions req addresses in reg and applies the
// action-level cooldown, stamping the claimed actions with now.
func Claim(reg *actions.Provider, req models.InternalRequest, commandPrefix string, now time.Time) ([]actions.ActionData, error) {
	ids, err := reg.Resolve(req, commandPrefix)
	if err != nil {
		return nil, err
	}
	return reg.Acquire(req.ProviderKey.CategoryID, ids, req.BypassCooldown, now)
}

// ResultFromError converts a Claim or execution error into a Result.
// Cooldown refusals are informational; everything else is an error.
func ResultFromError(err error) models.Result {
	switch {
	case err == nil:
		return models.OK("")
	case errors.Is(err, actions.ErrCooldownActive):
		return models.Skipped(err.Error())
	default:
		return models.Fail(err.Error())
	}
}
