package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"mdtoml/internal/agent"
	"mdtoml/internal/audit"
	"mdtoml/internal/pipeline"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	maxBodyBytes    = 8 << 20
	shutdownTimeout = 10 * time.Second
	sessionHeader   = "X-Session-Id"
)

// Options configures a Server. Store may be nil, in which case session
// history is not served and nothing is recorded.
type Options struct {
	Store      *audit.Store
	Engine     pipeline.Engine
	MaxRepairs int
}

// Server exposes the tool registry over HTTP. Every request gets its own
// dispatcher; the registry is shared read-only.
type Server struct {
	registry *agent.Registry
	opts     Options
	mux      *http.ServeMux
}

func NewServer(registry *agent.Registry, opts Options) *Server {
	s := &Server{
		registry: registry,
		opts:     opts,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /v1/tools", s.handleListTools)
	s.mux.HandleFunc("POST /v1/tools/{name}", s.handleExecTool)
	s.mux.HandleFunc("POST /v1/pipeline", s.handlePipeline)
	s.mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
}

func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.mux, "mdtoml.gateway")
}

func (s *Server) dispatcher(sessionID string) *agent.Dispatcher {
	var opts []agent.DispatcherOption
	if s.opts.Store != nil {
		opts = append(opts, agent.WithRecorder(s.opts.Store))
	}
	return agent.NewDispatcher(s.registry, sessionID, opts...)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down gateway", "addr", addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
