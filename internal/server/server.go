// Package server exposes the gateway over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/hexgate/hexgate/internal/adapters/telemetry"
	"github.com/hexgate/hexgate/internal/core/database/pool"
	"github.com/hexgate/hexgate/internal/core/query/domain"
	"github.com/hexgate/hexgate/internal/debug"
	"github.com/hexgate/hexgate/internal/service"
)

// HealthChecker reports backend health. *pool.Pool satisfies it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
	Stats() pool.Stats
}

// MetricsSource serves the /metrics snapshot.
type MetricsSource interface {
	Snapshot() telemetry.Snapshot
}

// Options configures the HTTP surface.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// MaxBodyBytes caps request bodies; zero means 1 MiB.
	MaxBodyBytes int64
	// AllowUnfilteredOptIn lets callers request unfiltered update and
	// delete with allow_unfiltered=true or X-Allow-Unfiltered.
	AllowUnfilteredOptIn bool
	// CORSOrigin is sent as Access-Control-Allow-Origin; empty disables CORS.
	CORSOrigin string
}

const defaultMaxBodyBytes = 1 << 20

// Server routes HTTP requests to the gateway service.
type Server struct {
	router    *mux.Router
	gateway   *service.GatewayService
	auth      Authenticator
	health    HealthChecker
	metrics   MetricsSource
	telemetry telemetry.Telemetry
	opts      Options
}

// Deps are the collaborators of a Server. Only Gateway is required.
type Deps struct {
	Gateway   *service.GatewayService
	Auth      Authenticator
	Health    HealthChecker
	Telemetry telemetry.Telemetry
}

// NewServer creates a server and registers its routes.
func NewServer(deps Deps, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if deps.Auth == nil {
		deps.Auth = NoAuth{}
	}
	if deps.Telemetry == nil {
		deps.Telemetry = telemetry.NewNoopTelemetry()
	}
	s := &Server{
		router:    mux.NewRouter(),
		gateway:   deps.Gateway,
		auth:      deps.Auth,
		health:    deps.Health,
		telemetry: deps.Telemetry,
		opts:      opts,
	}
	if m, ok := deps.Telemetry.(MetricsSource); ok {
		s.metrics = m
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(requestIDMiddleware)
	s.router.Use(loggingMiddleware)
	s.router.Use(recoverMiddleware)
	if s.opts.CORSOrigin != "" {
		s.router.Use(corsMiddleware(s.opts.CORSOrigin))
	}
	s.router.Use(s.authenticationMiddleware)
}

// Route names. Gateway routes are named after their operation.
const (
	routeHealth  = "health"
	routeMetrics = "metrics"
)

var routeOps = map[string]service.Operation{
	"read":      service.OpRead,
	"create":    service.OpCreate,
	"update":    service.OpUpdate,
	"delete":    service.OpDelete,
	"call":      service.OpCall,
	"call_body": service.OpCallWithBody,
}

var routeDocs = map[string]string{
	routeHealth:  "backend health and pool statistics",
	routeMetrics: "telemetry snapshot",
	"read":       "select rows",
	"create":     "insert one or more rows",
	"update":     "update filtered rows",
	"delete":     "delete filtered rows",
	"call":       "call a function with query arguments",
	"call_body":  "call a function with a JSON object of arguments",
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet).Name(routeHealth)
	s.router.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet).Name(routeMetrics)

	s.router.HandleFunc("/{schema}/function/{name}", s.handleGateway).Methods(http.MethodGet).Name("call")
	s.router.HandleFunc("/{schema}/function/{name}", s.handleGateway).Methods(http.MethodPost).Name("call_body")

	s.router.HandleFunc("/{schema}/{name}", s.handleGateway).Methods(http.MethodGet).Name("read")
	s.router.HandleFunc("/{schema}/{name}", s.handleGateway).Methods(http.MethodPost).Name("create")
	s.router.HandleFunc("/{schema}/{name}", s.handleGateway).Methods(http.MethodPatch, http.MethodPut).Name("update")
	s.router.HandleFunc("/{schema}/{name}", s.handleGateway).Methods(http.MethodDelete).Name("delete")

	if s.opts.CORSOrigin != "" {
		// preflight requests must match a route for middleware to run
		s.router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

// RouteInfo describes one registered route.
type RouteInfo struct {
	Name    string
	Methods []string
	Path    string
	Purpose string
}

// Routes lists the named routes in registration order.
func (s *Server) Routes() []RouteInfo {
	var routes []RouteInfo
	s.router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		name := route.GetName()
		if name == "" {
			return nil
		}
		path, err := route.GetPathTemplate()
		if err != nil {
			return err
		}
		methods, _ := route.GetMethods()
		routes = append(routes, RouteInfo{Name: name, Methods: methods, Path: path, Purpose: routeDocs[name]})
		return nil
	})
	return routes
}

// RequestFor maps a method and target such as "/public/users?id=eq.1" onto
// the gateway request the server would execute, without executing it.
func (s *Server) RequestFor(method, target string, body []byte) (service.Request, error) {
	r, err := http.NewRequest(method, target, nil)
	if err != nil {
		return service.Request{}, domain.Wrap(domain.ErrMalformedQuery, err, "invalid request target")
	}
	var match mux.RouteMatch
	if !s.router.Match(r, &match) || match.MatchErr != nil {
		return service.Request{}, domain.Errorf(domain.ErrUnknownResource, "no route for %s %s", method, r.URL.Path)
	}
	op, ok := routeOps[match.Route.GetName()]
	if !ok {
		return service.Request{}, domain.Errorf(domain.ErrUnknownResource, "%s is not a gateway route", r.URL.Path)
	}
	return service.Request{
		Operation: op,
		Schema:    match.Vars["schema"],
		Name:      match.Vars["name"],
		RawQuery:  r.URL.RawQuery,
		Body:      body,
	}, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		debug.Info("listening", "addr", s.opts.Addr)
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

	timeout := s.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	debug.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
