// Package routing builds the HTTP routes of the reply service from the
// route table in the configuration.
package routing

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/teilomillet/faqchat/config"
	"github.com/teilomillet/faqchat/errors"
	"github.com/teilomillet/faqchat/server/metrics"
	"github.com/teilomillet/faqchat/server/middleware"
	"go.uber.org/zap"
)

// Options supplies what routes refer to by name.
type Options struct {
	// Handlers maps a route's handler name ("chat", "metrics", ...) to
	// its implementation. "health" is always served at /health.
	Handlers map[string]http.Handler

	// Middleware maps a route's middleware names ("ratelimit", "queue")
	// to their implementation.
	Middleware map[string]func(http.Handler) http.Handler

	// Metrics, when set, records every request.
	Metrics *metrics.Metrics

	Logger *zap.Logger
}

// Router handles dynamic HTTP routing with versioning.
type Router struct {
	router chi.Router
	opts   Options
	cfg    *config.Config
}

// NewRouter creates a router with the global middleware stack and every
// route of cfg. Routes naming an unknown handler are skipped with an
// error log; unknown middleware is skipped with a warning.
func NewRouter(cfg *config.Config, opts Options) *Router {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	r := &Router{
		router: chi.NewRouter(),
		opts:   opts,
		cfg:    cfg,
	}

	r.router.Use(middleware.RequestID)
	r.router.Use(middleware.RequestTimer)
	r.router.Use(middleware.Logging(opts.Logger))
	if opts.Metrics != nil {
		r.router.Use(middleware.PrometheusMetrics(opts.Metrics))
	}
	r.router.Use(middleware.Recovery(opts.Logger))
	r.router.Use(middleware.CORS(cfg.Server.CORSOrigin))

	r.setupRoutes()
	return r
}

// setupRoutes configures all routes based on the configuration.
func (r *Router) setupRoutes() {
	for _, route := range r.cfg.Routes {
		handler, ok := r.opts.Handlers[route.Handler]
		if !ok {
			r.opts.Logger.Error("handler not found", zap.String("handler", route.Handler))
			continue
		}

		path := route.Path
		if route.Version != "" {
			path = fmt.Sprintf("/%s%s", route.Version, path)
		}

		r.router.Group(func(router chi.Router) {
			// Timeout starts a goroutine, so it must run after routing has
			// filled the route context.
			router.Use(middleware.Timeout(r.cfg.Server.RequestTimeout))
			for _, name := range route.Middleware {
				mw, ok := r.opts.Middleware[name]
				if !ok {
					r.opts.Logger.Warn("unknown middleware requested", zap.String("middleware", name))
					continue
				}
				router.Use(mw)
			}

			methods := route.Methods
			if len(methods) == 0 {
				methods = []string{http.MethodGet}
			}
			for _, method := range methods {
				router.Method(method, path, handler)
			}
		})
	}

	health, ok := r.opts.Handlers["health"]
	if !ok {
		health = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
		})
	}
	r.router.Method(http.MethodGet, "/health", health)

	r.router.NotFound(func(w http.ResponseWriter, req *http.Request) {
		errors.ErrorWithType(w, "route not found", errors.NotFoundError, http.StatusNotFound)
	})
	r.router.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		errors.ErrorWithType(w, fmt.Sprintf("method %s not allowed", req.Method), errors.ValidationError, http.StatusMethodNotAllowed)
	})
}

// ServeHTTP implements the http.Handler interface.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
