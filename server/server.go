// Package server wires the faqchat reply service together: the FAQ store,
// the provider manager, the /chat handler and the HTTP server that
// follows configuration changes.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teilomillet/faqchat/config"
	"github.com/teilomillet/faqchat/faq"
	"github.com/teilomillet/faqchat/server/handlers"
	"github.com/teilomillet/faqchat/server/metrics"
	"github.com/teilomillet/faqchat/server/middleware"
	"github.com/teilomillet/faqchat/server/provider"
	"github.com/teilomillet/faqchat/server/routing"
	"github.com/teilomillet/faqchat/server/validation"
	"go.uber.org/zap"
)

// Server represents the HTTP server
type Server struct {
	watcher      config.Watcher
	ownsWatcher  bool
	logger       *zap.Logger
	metrics      *metrics.Metrics
	faq          *faq.Store
	providers    *provider.Manager
	validator    *validation.Validator
	chat         *handlers.ChatHandler
	health       *handlers.HealthHandler
	queue        *middleware.QueueMiddleware
	handler      atomic.Value // http.Handler
	errCh        chan error
	limiterCfg   config.RateLimitConfig
	limiter      *middleware.RateLimiter
	mu           sync.Mutex
	httpServer   *http.Server
	listenerAddr string
}

// NewServer loads configPath and creates a server that reloads it when
// the file changes.
func NewServer(configPath string, logger *zap.Logger) (*Server, error) {
	watcher, err := config.NewConfigWatcher(configPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	s, err := NewServerWithConfig(watcher, nil, logger)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	s.ownsWatcher = true
	return s, nil
}

// NewServerWithConfig creates a server around an existing watcher. When
// generators is non-nil it replaces the providers built from the
// configuration, which is how tests install fakes.
func NewServerWithConfig(watcher config.Watcher, generators map[string]provider.Generator, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := watcher.GetCurrentConfig()
	m := metrics.NewMetrics()

	store, err := openFAQ(cfg, m, logger)
	if err != nil {
		return nil, err
	}

	pm, err := provider.NewManager(cfg, logger, m.Registry())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create provider manager: %w", err)
	}
	if generators != nil {
		if err := pm.SetProviders(generators); err != nil {
			store.Close()
			return nil, err
		}
	}
	if !cfg.Upstream.Disabled && !pm.Available() {
		logger.Warn("No model provider available, answering from the FAQ only")
	}

	chat, err := handlers.NewChatHandler(cfg, store, pm, m, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create chat handler: %w", err)
	}

	s := &Server{
		watcher:   watcher,
		logger:    logger,
		metrics:   m,
		faq:       store,
		providers: pm,
		validator: validation.NewValidator(validation.LimitsFromConfig(cfg), logger),
		chat:      chat,
		health:    handlers.NewHealthHandler(store, pm, cfg.Upstream.Disabled),
		queue: middleware.NewQueueMiddleware(middleware.QueueConfig{
			MaxConcurrent: cfg.Queue.MaxConcurrent,
			MaxQueued:     cfg.Queue.MaxQueued,
			Metrics:       m,
		}),
		errCh: make(chan error, 1),
	}
	s.buildRouter(cfg)
	return s, nil
}

// openFAQ loads the FAQ file. A missing file leaves the store empty so
// the service can start before the first scrape.
func openFAQ(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (*faq.Store, error) {
	store := faq.NewStore(cfg.FAQ.Path, faq.Options{
		Threshold:        cfg.FAQ.Threshold,
		PartialThreshold: cfg.FAQ.PartialThreshold,
		Logger:           logger,
		OnLoad:           func(n int) { m.FAQEntries.Set(float64(n)) },
	})

	if err := store.Reload(); err != nil {
		if !stderrors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		logger.Warn("FAQ file not found, starting with no entries", zap.String("path", cfg.FAQ.Path))
	}

	if cfg.FAQ.Watch {
		if err := store.Watch(); err != nil {
			logger.Warn("Failed to watch FAQ file", zap.Error(err))
		}
	}
	return store, nil
}

// buildRouter builds the routes for cfg and swaps them in.
func (s *Server) buildRouter(cfg *config.Config) {
	if s.limiter == nil || s.limiterCfg != cfg.RateLimit {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, s.metrics)
		s.limiterCfg = cfg.RateLimit
	}

	named := map[string]func(http.Handler) http.Handler{
		"queue": s.queue.Handler,
	}
	if cfg.RateLimit.Enabled {
		named["ratelimit"] = s.limiter.Handler
	} else {
		named["ratelimit"] = func(next http.Handler) http.Handler { return next }
	}

	router := routing.NewRouter(cfg, routing.Options{
		Handlers: map[string]http.Handler{
			"chat":    s.validator.ValidateChat(s.chat),
			"metrics": s.metrics.Handler(),
			"health":  s.health,
		},
		Middleware: named,
		Metrics:    s.metrics,
		Logger:     s.logger,
	})
	s.handler.Store(http.Handler(router))
}

// ServeHTTP implements http.Handler with the current routes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.Load().(http.Handler).ServeHTTP(w, r)
}

// Addr returns the address the server listens on, once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listenerAddr
}

// FAQ returns the store the server answers from.
func (s *Server) FAQ() *faq.Store {
	return s.faq
}

// Providers returns the provider manager.
func (s *Server) Providers() *provider.Manager {
	return s.providers
}

// listen binds the configured port and serves on it in the background.
func (s *Server) listen(cfg config.ServerConfig) (*http.Server, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %d: %w", cfg.Port, err)
	}

	srv := &http.Server{
		Handler:        s,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.listenerAddr = ln.Addr().String()
	s.mu.Unlock()

	go func() {
		s.logger.Info("Server started", zap.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			select {
			case s.errCh <- fmt.Errorf("server error: %w", err):
			default:
			}
		}
	}()
	return srv, nil
}

// Start serves until ctx is canceled, applying configuration updates as
// they arrive. A change of port or server timeouts restarts the listener.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.watcher.GetCurrentConfig()
	updates := s.watcher.Subscribe()
	srv, err := s.listen(cfg.Server)
	if err != nil {
		s.closeResources()
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return s.shutdown(srv, cfg.Server.ShutdownTimeout)

		case err := <-s.errCh:
			s.closeResources()
			return err

		case newCfg, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			next, applied, err := s.applyConfig(srv, cfg, newCfg)
			if err != nil {
				s.logger.Error("Failed to apply configuration", zap.Error(err))
			}
			if next == nil {
				s.closeResources()
				return err
			}
			srv, cfg = next, applied
		}
	}
}

// applyConfig updates every component that follows the configuration. It
// returns the HTTP server now in use and the configuration in effect,
// which keeps the previous server section when the listener could not be
// moved. A nil server means nothing is listening any more.
func (s *Server) applyConfig(srv *http.Server, oldCfg, newCfg *config.Config) (*http.Server, *config.Config, error) {
	if err := s.chat.UpdateConfig(newCfg); err != nil {
		return srv, oldCfg, err
	}
	s.validator.SetLimits(validation.LimitsFromConfig(newCfg))
	s.queue.SetLimits(newCfg.Queue.MaxConcurrent, newCfg.Queue.MaxQueued)
	s.health.SetUpstreamDisabled(newCfg.Upstream.Disabled)
	s.buildRouter(newCfg)

	if oldCfg.FAQ.Path != newCfg.FAQ.Path || oldCfg.FAQ.Threshold != newCfg.FAQ.Threshold ||
		oldCfg.FAQ.PartialThreshold != newCfg.FAQ.PartialThreshold {
		s.logger.Warn("FAQ store settings changed, restart to apply them")
	}
	if !slices.Equal(oldCfg.Upstream.ProviderPreference, newCfg.Upstream.ProviderPreference) {
		s.logger.Warn("Provider settings changed, restart to apply them")
	}

	if oldCfg.Server == newCfg.Server {
		s.logger.Info("Configuration applied")
		return srv, newCfg, nil
	}

	next, err := s.restartListener(srv, oldCfg.Server, newCfg.Server)
	if err != nil {
		kept := *newCfg
		kept.Server = oldCfg.Server
		return next, &kept, err
	}
	s.logger.Info("Configuration applied, listener restarted", zap.Int("port", newCfg.Server.Port))
	return next, newCfg, nil
}

// restartListener moves serving from srv to a listener built from newCfg.
// A new port is bound before the old listener stops, so a bind failure
// leaves srv serving. The same port can only be bound once srv has
// released it; if that bind fails the old settings are bound again.
func (s *Server) restartListener(srv *http.Server, oldCfg, newCfg config.ServerConfig) (*http.Server, error) {
	if oldCfg.Port != newCfg.Port {
		next, err := s.listen(newCfg)
		if err != nil {
			return srv, err
		}
		s.stopListener(srv, oldCfg.ShutdownTimeout)
		return next, nil
	}

	s.stopListener(srv, oldCfg.ShutdownTimeout)
	next, err := s.listen(newCfg)
	if err == nil {
		return next, nil
	}
	prev, rerr := s.listen(oldCfg)
	if rerr != nil {
		return nil, fmt.Errorf("%w; rebinding previous settings: %v", err, rerr)
	}
	return prev, err
}

func (s *Server) stopListener(srv *http.Server, timeout time.Duration) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Warn("Previous listener did not shut down cleanly", zap.Error(err))
	}
}

func (s *Server) shutdown(srv *http.Server, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down server")
	err := srv.Shutdown(ctx)
	if qerr := s.queue.Shutdown(ctx); qerr != nil {
		s.logger.Warn("Requests still running at shutdown", zap.Error(qerr))
	}
	s.closeResources()
	if err != nil {
		return fmt.Errorf("error during server shutdown: %w", err)
	}
	return nil
}

func (s *Server) closeResources() {
	if err := s.faq.Close(); err != nil {
		s.logger.Warn("Failed to stop FAQ watcher", zap.Error(err))
	}
	if s.ownsWatcher {
		if err := s.watcher.Close(); err != nil {
			s.logger.Warn("Failed to stop config watcher", zap.Error(err))
		}
	}
}
