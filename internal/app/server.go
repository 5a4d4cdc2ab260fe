package app

import (
	"net/http"

	"triggerd/internal/common/logging"
	"triggerd/internal/handlers"
	"triggerd/internal/ratelimit"
	"triggerd/internal/server"
	"triggerd/internal/signature"
	"triggerd/internal/sources/tikfinity"
)

// Handler builds the admin API router with rate limiting applied as
// configured.
func (app *App) Handler() (http.Handler, error) {
	h := handlers.New(app.Store, app.Providers, app.Users,
		handlers.WithRepository(app.Repository),
		handlers.WithSchedule(app.Schedule),
		handlers.WithMetrics(app.Metrics.Handler()),
	)

	limiter, err := app.initializeRateLimiter()
	if err != nil {
		return nil, err
	}
	return h.Router(limiter), nil
}

// initializeRateLimiter returns nil when rate limiting is disabled.
func (app *App) initializeRateLimiter() (*ratelimit.Limiter, error) {
	if !app.Config.RateLimitEnabled {
		app.Logger.Info("Rate Limiting: Disabled")
		return nil, nil
	}

	cfg := ratelimit.DefaultConfig()
	cfg.RequestsPerSecond = app.Config.RateLimitRPS
	cfg.Burst = app.Config.RateLimitBurst

	limiter, err := ratelimit.NewLimiter(cfg)
	if err != nil {
		return nil, err
	}
	app.Logger.Info("Rate Limiting: Enabled",
		logging.Any("rps", cfg.RequestsPerSecond),
		logging.Int("burst", cfg.Burst),
	)
	return limiter, nil
}

// RunServer creates the HTTP server for the admin API. It is not started.
func (app *App) RunServer() (*server.Server, error) {
	handler, err := app.Handler()
	if err != nil {
		return nil, err
	}
	return server.New(handler, app.Config.Port, logging.ForComponent("http")), nil
}

// Bridge builds the TikFinity integration, signed when a secret is set.
func (app *App) Bridge() (*tikfinity.Bridge, error) {
	opts := []tikfinity.Option{tikfinity.WithRecorder(app.Metrics)}
	if app.Config.TikfinitySecret != "" {
		v, err := signature.NewVerifier(signature.Config{Secret: app.Config.TikfinitySecret}, logging.ForComponent("tikfinity"))
		if err != nil {
			return nil, err
		}
		opts = append(opts, tikfinity.WithVerifier(v))
	}
	return tikfinity.New(app.Bus, app.Providers, opts...), nil
}

// RunBridgeServer creates the TikFinity server, nil when no port is set.
func (app *App) RunBridgeServer() (*server.Server, error) {
	if app.Config.TikfinityPort == "" {
		return nil, nil
	}
	bridge, err := app.Bridge()
	if err != nil {
		return nil, err
	}
	return server.New(bridge.Router(), app.Config.TikfinityPort, logging.ForComponent("tikfinity")), nil
}
