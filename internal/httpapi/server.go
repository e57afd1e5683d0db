package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	sessionjwt "github.com/rkhaya/express-session-jwt"
)

const (
	gracefulShutdownTimeout = 10 * time.Second
	maxRequestBodySize      = 64 << 10
)

// Deps wires the HTTP layer to an engine.
type Deps struct {
	Engine *sessionjwt.Engine
	Logger *zap.Logger
	// Metrics, when set, is mounted at GET /metrics.
	Metrics http.Handler
	// TrustProxy makes the first X-Forwarded-For entry the client address.
	TrustProxy bool
}

// Server serves the /auth endpoints.
type Server struct {
	engine     *sessionjwt.Engine
	log        *zap.Logger
	metrics    http.Handler
	trustProxy bool
	cookies    cookieSettings
}

func New(deps Deps) (*Server, error) {
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	cfg := deps.Engine.Config()
	return &Server{
		engine:     deps.Engine,
		log:        log,
		metrics:    deps.Metrics,
		trustProxy: deps.TrustProxy,
		cookies: cookieSettings{
			secure:     cfg.Session.Secure || cfg.Security.ProductionMode,
			sameSite:   cfg.Session.SameSite,
			accessTTL:  cfg.JWT.AccessTTL,
			refreshTTL: cfg.JWT.RefreshTTL,
			sessionTTL: cfg.Session.TTL,
		},
	}, nil
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Serve runs an http.Server on addr until ctx is cancelled, then shuts it
// down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), gracefulShutdownTimeout)
	defer cancel()
	s.log.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
