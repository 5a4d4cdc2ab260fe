// Package relay exposes integrations that live in other processes. The
// catalogue of a relayed provider is read from redis and every request it
// accepts is published on the provider's redis channel.
//
//	triggerd:actions:<id>   JSON list of {categoryId, actions}
//	triggerd:requests:<id>  channel carrying InternalRequest JSON
package relay

import (
	"context"
	"fmt"

	"triggerd/internal/actions"
	"triggerd/internal/circuitbreaker"
	"triggerd/internal/common/errors"
	"triggerd/internal/common/logging"
	"triggerd/internal/common/validation"
	"triggerd/internal/cooldown"
	"triggerd/internal/models"
	"triggerd/internal/providers"
	"triggerd/internal/redis"
)

const keyPrefix = "triggerd"

// CatalogueKey is the redis key holding the catalogue of providerID.
func CatalogueKey(providerID string) string {
	return fmt.Sprintf("%s:actions:%s", keyPrefix, providerID)
}

// RequestChannel is the redis channel requests for providerID go to.
func RequestChannel(providerID string) string {
	return fmt.Sprintf("%s:requests:%s", keyPrefix, providerID)
}

type Option func(*Provider)

func WithLogger(logger logging.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithBreakerConfig(config circuitbreaker.Config) Option {
	return func(p *Provider) {
		p.breakerConfig = config
	}
}

func WithClock(clock cooldown.Clock) Option {
	return func(p *Provider) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithCommandPrefix strips prefix from free-text action names before
// fuzzy matching, e.g. "!throw ".
func WithCommandPrefix(prefix string) Option {
	return func(p *Provider) {
		p.commandPrefix = prefix
	}
}

// Provider is one relayed integration.
type Provider struct {
	id            string
	client        *redis.Client
	breakerConfig circuitbreaker.Config
	breaker       *circuitbreaker.Breaker
	registry      *actions.Provider
	commandPrefix string
	clock         cooldown.Clock
	logger        logging.Logger
}

// New creates the relay for providerID on top of client.
func New(providerID string, client *redis.Client, opts ...Option) *Provider {
	p := &Provider{
		id:            providerID,
		client:        client,
		breakerConfig: circuitbreaker.DefaultConfig(),
		clock:         cooldown.SystemClock,
		logger:        logging.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithFields(logging.String("provider", providerID))
	p.breaker = circuitbreaker.New("relay:"+providerID, p.breakerConfig, p.logger)
	p.registry = actions.NewProvider(providerID, p.catalogue, p.logger)
	return p
}

func (p *Provider) ProviderID() string { return p.id }

func (p *Provider) Actions() *actions.Provider { return p.registry }

func (p *Provider) catalogue(ctx context.Context) ([]actions.Category, error) {
	var categories []actions.Category
	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		err := p.client.GetJSON(ctx, CatalogueKey(p.id), &categories)
		if redis.IsNil(err) {
			return errors.NotFoundError(fmt.Sprintf("catalogue %s", CatalogueKey(p.id)))
		}
		if err != nil {
			return errors.ConnectionError("failed to read relay catalogue", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range categories {
		if err := validation.ValidateStruct(categories[i]); err != nil {
			return nil, errors.ValidationError(fmt.Sprintf("category %d: %v", i, err)).WithContext("provider", p.id)
		}
	}
	return categories, nil
}

// Start loads the catalogue. A catalogue that is not published yet is
// not fatal; the provider stays empty until the next refresh.
func (p *Provider) Start(ctx context.Context) error {
	_, err := p.registry.LoadActions(ctx)
	if errors.IsType(err, errors.ErrTypeNotFound) || errors.IsType(err, errors.ErrTypeEmptyResult) {
		p.logger.Warn("Relay catalogue not available yet", logging.Err(err))
		return nil
	}
	return err
}

// ExecuteRequest claims the addressed actions and publishes the request
// on the provider's channel.
func (p *Provider) ExecuteRequest(ctx context.Context, req models.InternalRequest) models.Result {
	claimed, err := providers.Claim(p.registry, req, p.commandPrefix, p.clock())
	if err != nil {
		return providers.ResultFromError(err)
	}

	// forward the resolved ids so the remote side need not fuzzy match again
	out := req
	out.ProviderKey.Actions = make([]string, len(claimed))
	for i, a := range claimed {
		out.ProviderKey.Actions[i] = a.ID
	}

	err = p.breaker.Execute(ctx, func(ctx context.Context) error {
		if err := p.client.Publish(ctx, RequestChannel(p.id), out); err != nil {
			return errors.ConnectionError("failed to publish relay request", err)
		}
		return nil
	})
	if err != nil {
		return models.Fail(err.Error())
	}
	return models.OK(fmt.Sprintf("Relayed %d action(s) to %s", len(claimed), p.id))
}

// Health is unhealthy while the breaker is open or redis is unreachable.
func (p *Provider) Health() providers.Health {
	switch p.breaker.State() {
	case circuitbreaker.StateOpen:
		return providers.Health{Status: providers.StatusUnhealthy, Message: "circuit breaker open"}
	case circuitbreaker.StateHalfOpen:
		return providers.Health{Status: providers.StatusDegraded, Message: "circuit breaker half-open"}
	}
	if err := p.client.Health(); err != nil {
		return providers.Health{Status: providers.StatusUnhealthy, Message: err.Error()}
	}
	if p.registry.ActionCount() == 0 {
		return providers.Health{Status: providers.StatusDegraded, Message: "no actions loaded"}
	}
	return providers.Health{Status: providers.StatusHealthy}
}

// Breaker exposes the breaker stats for the admin API.
func (p *Provider) Breaker() circuitbreaker.Stats {
	return p.breaker.Stats()
}
