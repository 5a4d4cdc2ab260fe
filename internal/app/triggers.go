package app

import (
	"context"
	"fmt"

	"triggerd/internal/common/logging"
	"triggerd/internal/injector"
	"triggerd/internal/sources/schedule"
	"triggerd/internal/triggers"
)

func (app *App) initializeTriggers() error {
	mode, err := injector.ParseMode(app.Config.InjectionMode)
	if err != nil {
		return err
	}

	app.Store = triggers.NewStore(app.Bus,
		triggers.WithInjectionMode(mode),
		triggers.WithUsers(app.Users),
		triggers.WithRecorder(app.Metrics),
		triggers.WithLogger(logging.GetGlobalLogger()),
	)

	app.Repository = triggers.NewFileRepository(app.Config.TriggersPath)
	n, err := app.Store.LoadFrom(context.Background(), app.Repository)
	if err != nil {
		return fmt.Errorf("failed to load triggers from %s: %w", app.Config.TriggersPath, err)
	}
	app.Logger.Info("Triggers loaded",
		logging.Int("count", n),
		logging.String("path", app.Config.TriggersPath),
		logging.String("injection_mode", string(mode)),
	)

	if app.Config.HotReload {
		app.Watcher = triggers.NewWatcher(app.Repository, app.Store, nil, 0)
	}
	return nil
}

func (app *App) initializeSchedule() error {
	if app.Config.SchedulePath == "" {
		return nil
	}

	entries, err := schedule.LoadFile(app.Config.SchedulePath)
	if err != nil {
		return err
	}
	src, err := schedule.New(app.Bus, entries, nil)
	if err != nil {
		return err
	}

	app.Schedule = src
	app.Logger.Info("Schedule loaded",
		logging.Int("entries", len(entries)),
		logging.String("path", app.Config.SchedulePath),
	)
	return nil
}
