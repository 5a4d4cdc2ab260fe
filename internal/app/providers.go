package app

import (
	"triggerd/internal/commands"
	"triggerd/internal/common/logging"
	"triggerd/internal/providers"
	"triggerd/internal/relay"
)

// initializeProviders registers the internal commands and one relay per
// configured id.
func (app *App) initializeProviders() error {
	app.Providers = providers.NewManager(app.Bus,
		providers.WithLogger(logging.GetGlobalLogger()),
		providers.WithRecorder(app.Metrics),
		providers.WithRefreshTimeout(app.Config.ProviderRefreshTimeout),
	)

	internal := commands.NewProvider(logging.ForComponent("commands"),
		commands.NewModifyTrigger(app.Store, app.Repository, logging.ForComponent("commands")),
		commands.NewManageUsers(app.Users),
	)
	if err := app.Providers.Register(internal); err != nil {
		return err
	}

	for _, id := range app.Config.RelayProviders {
		p := relay.New(id, app.RedisClient, relay.WithLogger(logging.ForComponent("relay")))
		if err := app.Providers.Register(p); err != nil {
			return err
		}
		app.Logger.Info("Relay provider registered",
			logging.String("provider", id),
			logging.String("channel", relay.RequestChannel(id)),
		)
	}
	return nil
}
