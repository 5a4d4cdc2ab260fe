package app

import (
	"context"
	"fmt"

	"triggerd/internal/bus"
	"triggerd/internal/common/logging"
	"triggerd/internal/config"
	"triggerd/internal/metrics"
	"triggerd/internal/models"
	"triggerd/internal/providers"
	"triggerd/internal/redis"
	"triggerd/internal/sources/schedule"
	"triggerd/internal/triggers"
	"triggerd/internal/users"
)

// App holds all the application dependencies
type App struct {
	Config      *config.Config
	Bus         *bus.LocalBus
	Metrics     *metrics.Prometheus
	RedisClient *redis.Client
	Users       users.Registry
	Store       *triggers.Store
	Repository  *triggers.FileRepository
	Watcher     *triggers.Watcher
	Providers   *providers.Manager
	Schedule    *schedule.Source
	Logger      logging.Logger

	notifications bus.Subscription
}

// New creates a new application instance with all dependencies. Nothing
// is started; call Start once New returns.
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config:  cfg,
		Metrics: metrics.NewPrometheus("triggerd"),
		Logger:  logging.ForComponent("app"),
	}

	app.initializeBus()

	// Initialize components in order of dependency
	if err := app.initializeRedis(); err != nil {
		app.Cleanup()
		return nil, err
	}
	if err := app.initializeUsers(); err != nil {
		app.Cleanup()
		return nil, err
	}
	if err := app.initializeTriggers(); err != nil {
		app.Cleanup()
		return nil, err
	}
	if err := app.initializeProviders(); err != nil {
		app.Cleanup()
		return nil, err
	}
	if err := app.initializeSchedule(); err != nil {
		app.Cleanup()
		return nil, err
	}

	return app, nil
}

func (app *App) initializeBus() {
	app.Bus = bus.NewLocalBus(
		bus.WithBufferSize(app.Config.BusBufferSize),
		bus.WithLogger(logging.GetGlobalLogger()),
		bus.WithDropHook(app.Metrics.MessageDropped),
	)
}

func (app *App) initializeUsers() error {
	switch app.Config.UserStore {
	case config.UserStoreRedis:
		if app.RedisClient == nil {
			return fmt.Errorf("user store 'redis' requires a redis connection")
		}
		app.Users = users.NewRedisRegistry(app.RedisClient, nil)
	default:
		app.Users = users.NewMemoryRegistry(nil)
	}
	app.Logger.Info("User store ready", logging.String("backend", app.Config.UserStore))
	return nil
}

// Start brings up the long running parts: provider catalogues, the
// trigger file watcher and the schedule.
func (app *App) Start(ctx context.Context) error {
	sub, err := app.Bus.Subscribe(bus.TopicNotification, app.logNotification)
	if err != nil {
		return err
	}
	app.notifications = sub

	if err := app.Providers.Start(ctx); err != nil {
		return fmt.Errorf("failed to start providers: %w", err)
	}

	if app.Watcher != nil {
		if err := app.Watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to watch %s: %w", app.Repository.Path(), err)
		}
	}

	if app.Schedule != nil {
		app.Schedule.Start()
	}
	return nil
}

// Shutdown stops the long running parts in reverse start order.
func (app *App) Shutdown(ctx context.Context) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if app.Schedule != nil {
		if err := app.Schedule.Stop(ctx); err != nil {
			app.Logger.Warn("Error stopping schedule", logging.Err(err))
			keep(err)
		}
	}
	if app.Watcher != nil {
		if err := app.Watcher.Stop(); err != nil {
			app.Logger.Warn("Error stopping trigger watcher", logging.Err(err))
			keep(err)
		}
	}
	if app.Providers != nil {
		if err := app.Providers.Stop(ctx); err != nil {
			app.Logger.Warn("Error stopping providers", logging.Err(err))
			keep(err)
		}
	}
	if app.notifications != nil {
		app.notifications.Unsubscribe()
	}
	return firstErr
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if app.Store != nil {
		app.Store.Close()
	}
	if app.Bus != nil {
		app.Bus.Close()
	}
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}

// logNotification echoes engine notifications; the emitter already logs
// them at info.
func (app *App) logNotification(_ context.Context, msg bus.Message) {
	n, ok := msg.Payload.(bus.Notification)
	if !ok {
		return
	}
	log := app.Logger.WithFields(logging.String("source", n.Source))
	if n.Severity == string(models.SeverityError) {
		log.Warn(n.Message)
		return
	}
	log.Debug(n.Message)
}
