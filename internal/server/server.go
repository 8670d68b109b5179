package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultAddress         = ":8080"
	defaultIdleTimeout     = 60 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultShutdownTimeout = 30 * time.Second
	defaultWriteTimeout    = 15 * time.Second
)

// Config holds the required configuration for creating a Server.
type Config struct {
	// Address is the listen address. Default is ":8080".
	Address string

	// Handler is the router the server serves.
	Handler http.Handler

	// Logger is the structured logger for the server.
	Logger *slog.Logger

	// ReadTimeout bounds reading a request. Default is 10s.
	ReadTimeout time.Duration

	// ShutdownTimeout bounds the graceful drain on exit. Default is 30s.
	ShutdownTimeout time.Duration

	// WriteTimeout bounds writing a response. Default is 15s.
	WriteTimeout time.Duration
}

// validate checks that all required Config fields are set.
func (c *Config) validate() error {
	var errs []error
	if c.Handler == nil {
		errs = append(errs, errors.New("handler is required"))
	}
	return errors.Join(errs...)
}

// Server owns the HTTP listener lifecycle.
type Server struct {
	httpServer      *http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// New creates a new HTTP server around the handler.
func New(cfg Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	address := cfg.Address
	if address == "" {
		address = defaultAddress
	}

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         address,
			Handler:      cfg.Handler,
			IdleTimeout:  defaultIdleTimeout,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		logger:          logger,
		shutdownTimeout: shutdownTimeout,
	}, nil
}

// Run serves until the context is cancelled, then drains connections for up
// to the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "address", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	s.logger.Info("http server stopped")

	return nil
}
