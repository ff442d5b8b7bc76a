// Package api is the HTTP surface of the syncer: the webhook receiver plus operational endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/eqtlab/ynab-syncer/syncer"
)

const serviceName = "ynab-syncer"

// nolint:lll
type Config struct {
	Addr            string        `env:"ADDR, default=:5001"`            // Listen address
	ReadTimeout     time.Duration `env:"READ_TIMEOUT, default=10s"`      // Max duration for reading a request
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT, default=2m"`      // Max duration for writing a response, refresh runs a full resync
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=15s"` // How long in-flight requests get on shutdown
}

// Engine is what the handlers drive.
type Engine interface {
	HandleEvent(ctx context.Context, event syncer.Event) (syncer.Result, error)
	Resync(ctx context.Context) (syncer.ResyncReport, error)
	EnqueueResync(ctx context.Context, reason string) error
}

type Server struct {
	cfg    Config
	srv    *http.Server
	logger *zap.Logger
}

func New(cfg Config, e Engine, l *zap.Logger) *Server {
	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      NewRouter(e, l),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: l,
	}
}

func NewRouter(e Engine, l *zap.Logger) *mux.Router {
	h := NewHandler(e, l)

	r := mux.NewRouter().StrictSlash(true)
	r.Use(requestIDMiddleware, loggingMiddleware(l), recoveryMiddleware(l))

	r.HandleFunc("/webhook", h.Webhook).Methods(http.MethodPost)
	r.HandleFunc("/refresh", h.Refresh).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen and serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
