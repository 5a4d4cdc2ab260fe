// Package server runs the admin API over HTTP.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"triggerd/internal/common/logging"
)

// Server represents an HTTP server
type Server struct {
	srv    *http.Server
	logger logging.Logger
	errs   chan error
}

// New creates a new server instance listening on port
func New(handler http.Handler, port string, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Server{
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
		errs:   make(chan error, 1),
	}
}

// Start binds the listener and serves in the background. Bind errors are
// returned; later serve errors arrive on Errors.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener in the background.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("HTTP server listening", logging.String("address", ln.Addr().String()))
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server stopped", err)
			s.errs <- err
		}
	}()
	return nil
}

// Errors delivers a serve failure after Start succeeded.
func (s *Server) Errors() <-chan error {
	return s.errs
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
