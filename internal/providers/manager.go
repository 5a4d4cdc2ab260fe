package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"triggerd/internal/bus"
	"triggerd/internal/common/logging"
	"triggerd/internal/common/registry"
	"triggerd/internal/metrics"
)

// Manager owns the registered integrations.
type Manager struct {
	bus            bus.Bus
	logger         logging.Logger
	recorder       metrics.Recorder
	refreshTimeout time.Duration

	registry *registry.Registry[Integration]

	mu         sync.Mutex
	subs       map[string]bus.Subscription
	refreshers map[string]*Refresher
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(logger logging.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) ManagerOption {
	return func(m *Manager) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithRefreshTimeout bounds catalogue refreshes.
func WithRefreshTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.refreshTimeout = d
	}
}

// NewManager creates a manager dispatching through b.
func NewManager(b bus.Bus, opts ...ManagerOption) *Manager {
	m := &Manager{
		bus:            b,
		logger:         logging.GetGlobalLogger(),
		recorder:       metrics.Noop(),
		refreshTimeout: DefaultRefreshTimeout,
		registry:       registry.New[Integration]("provider"),
		subs:           make(map[string]bus.Subscription),
		refreshers:     make(map[string]*Refresher),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithFields(logging.String("component", "providers"))
	return m
}

// Register adds integration and subscribes it to dispatched requests.
// A second integration with the same provider id is rejected with a
// DuplicateIDError and the first one stays registered.
func (m *Manager) Register(integration Integration) error {
	id := integration.ProviderID()
	if err := m.registry.Register(id, integration); err != nil {
		m.logger.Error("Failed to register provider", err, logging.String("provider", id))
		return err
	}

	sub, err := Attach(m.bus, integration, m.logger, m.recorder)
	if err != nil {
		m.registry.Remove(id)
		return fmt.Errorf("attach provider %s: %w", id, err)
	}

	m.mu.Lock()
	m.subs[id] = sub
	m.refreshers[id] = NewRefresher(integration.Actions(), m.refreshTimeout)
	m.mu.Unlock()

	m.logger.Info("Registered provider", logging.String("provider", id))
	return nil
}

// Unregister detaches and removes a provider.
func (m *Manager) Unregister(id string) bool {
	if !m.registry.Remove(id) {
		return false
	}
	m.mu.Lock()
	if sub, ok := m.subs[id]; ok {
		sub.Unsubscribe()
		delete(m.subs, id)
	}
	delete(m.refreshers, id)
	m.mu.Unlock()
	return true
}

// Get returns a provider by id.
func (m *Manager) Get(id string) (Integration, error) {
	return m.registry.Get(id)
}

// List returns providers in registration order.
func (m *Manager) List() []Integration {
	return m.registry.List()
}

// LookupByCategory returns the first provider that owns categoryID.
func (m *Manager) LookupByCategory(categoryID string) (Integration, bool) {
	for _, p := range m.registry.List() {
		if p.Actions().Has(categoryID) {
			return p, true
		}
	}
	return nil, false
}

// Refresh reloads the catalogue of provider id.
func (m *Manager) Refresh(ctx context.Context, id string) (int, error) {
	m.mu.Lock()
	r, ok := m.refreshers[id]
	m.mu.Unlock()
	if !ok {
		_, err := m.registry.Get(id)
		return 0, err
	}

	n, err := r.Refresh(ctx)
	if err != nil {
		m.logger.Error("Provider refresh failed", err, logging.String("provider", id))
		return 0, err
	}
	return n, nil
}

// RefreshAll reloads every provider and joins the errors.
func (m *Manager) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, id := range m.registry.IDs() {
		if _, err := m.Refresh(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start starts every Startable provider in registration order.
func (m *Manager) Start(ctx context.Context) error {
	for _, p := range m.registry.List() {
		s, ok := p.(Startable)
		if !ok {
			continue
		}
		if err := s.Start(ctx); err != nil {
			return fmt.Errorf("start provider %s: %w", p.ProviderID(), err)
		}
	}
	return nil
}

// Stop detaches every provider and stops the Stoppable ones.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	for id, sub := range m.subs {
		sub.Unsubscribe()
		delete(m.subs, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, p := range m.registry.List() {
		if s, ok := p.(Stoppable); ok {
			if err := s.Stop(ctx); err != nil {
				m.logger.Error("Failed to stop provider", err, logging.String("provider", p.ProviderID()))
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Health returns the status of every provider. Providers that do not
// report health are healthy while registered.
func (m *Manager) Health() map[string]Health {
	out := make(map[string]Health)
	for _, p := range m.registry.List() {
		h := Health{Status: StatusHealthy}
		if hr, ok := p.(HealthReporting); ok {
			h = hr.Health()
		}
		m.mu.Lock()
		if r, ok := m.refreshers[p.ProviderID()]; ok && r.InProgress() && h.Status == StatusHealthy {
			h = Health{Status: StatusDegraded, Message: "refresh in progress"}
		}
		m.mu.Unlock()
		out[p.ProviderID()] = h
	}
	return out
}
