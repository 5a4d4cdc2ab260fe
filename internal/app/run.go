package app

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"triggerd/internal/common/logging"
	"triggerd/internal/config"
)

const shutdownTimeout = 30 * time.Second

// Run is the main entry point for the application
func Run() error {
	// Load environment variables
	_ = godotenv.Load()

	cfg := config.Load()

	// Initialize logging
	if err := logging.InitGlobalLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		return err
	}
	defer logging.MustSync()

	logging.Info("Starting triggerd",
		logging.Int("cpus", runtime.NumCPU()),
		logging.String("version", "1.0.0"),
	)

	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	// Initialize application
	app, err := New(cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}
	defer app.Cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		logging.Error("Failed to start application", err)
		return err
	}

	srv, err := app.RunServer()
	if err != nil {
		logging.Error("Failed to build HTTP server", err)
		return err
	}
	if err := srv.Start(); err != nil {
		logging.Error("Server failed to start", err)
		return err
	}

	bridgeSrv, err := app.RunBridgeServer()
	if err != nil {
		logging.Error("Failed to build TikFinity server", err)
		return err
	}
	var bridgeErrs <-chan error
	if bridgeSrv != nil {
		if err := bridgeSrv.Start(); err != nil {
			logging.Error("TikFinity server failed to start", err)
			return err
		}
		bridgeErrs = bridgeSrv.Errors()
	}

	// Wait for interrupt signal or a server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	var serveErr error
	select {
	case sig := <-quit:
		logging.Info("Shutting down", logging.String("signal", sig.String()))
	case serveErr = <-srv.Errors():
	case serveErr = <-bridgeErrs:
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server forced to shutdown", err)
	}
	if bridgeSrv != nil {
		if err := bridgeSrv.Shutdown(shutdownCtx); err != nil {
			logging.Error("TikFinity server forced to shutdown", err)
		}
	}
	cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Error during app shutdown", logging.Err(err))
	}

	logging.Info("Server exited")
	return serveErr
}
