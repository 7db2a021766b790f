package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/scribe-labs/scribe/internal/api"
	"github.com/scribe-labs/scribe/internal/config"
	"github.com/scribe-labs/scribe/internal/couch"
	"github.com/scribe-labs/scribe/internal/home"
	"github.com/scribe-labs/scribe/internal/imagestore"
	"github.com/scribe-labs/scribe/internal/server/endpoints"
	"github.com/scribe-labs/scribe/internal/session"
	"github.com/scribe-labs/scribe/internal/store"
	"github.com/scribe-labs/scribe/internal/svcctx"
)

// Server is the main Scribe HTTP server.
// On the couch backend it also manages the CouchDB container lifecycle,
// starting it on server start and stopping it on server shutdown.
type Server struct {
	httpServer   *http.Server
	couchManager *couch.DockerManager
	docStore     store.Store
	sessions     *session.Manager
	releaser     *imagestore.Releaser
	settings     config.Store
	configMgr    *config.Manager
	home         *home.Dir
	logger       *slog.Logger
	cfg          Config

	releaserCancel context.CancelFunc

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8585)
	Port int
	// Backend is the document store backend, "sqlite" or "couch"
	Backend string
	// Database is the CouchDB database name for documents
	Database string
	// CouchConfig holds CouchDB container settings (couch backend only)
	CouchConfig couch.DockerConfig
	// SaveDelay is the autosave debounce window
	SaveDelay time.Duration
	// Home is the scribe home directory
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8585
	}
	if cfg.Backend == "" {
		cfg.Backend = config.BackendSQLite
	}
	if cfg.Database == "" {
		cfg.Database = "theses"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		h, err := home.New("")
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		cfg.Home = h
	}
	if err := cfg.Home.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}

	s := &Server{
		configMgr: cfg.ConfigManager,
		home:      cfg.Home,
		logger:    cfg.Logger,
	}

	switch cfg.Backend {
	case config.BackendSQLite:
	case config.BackendCouch:
		if cfg.CouchConfig.DataPath == "" {
			cfg.CouchConfig.DataPath = cfg.Home.CouchDataPath()
		}
		mgr, err := couch.NewDockerManager(cfg.CouchConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create couch manager: %w", err)
		}
		s.couchManager = mgr
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Backend)
	}
	s.cfg = cfg

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{
		Backend:      cfg.Backend,
		CouchManager: s.couchManager,
	}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      s.withRecovery(s.withServices(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start starts the server, and on the couch backend the CouchDB container.
// It blocks until the context is cancelled or an error occurs.
// If an existing CouchDB container exists, it validates the configuration
// matches.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.initStore(ctx); err != nil {
		s.setNotRunning()
		return err
	}

	// Image storage: owned files on disk, remote refs fetched over HTTP.
	disk, err := imagestore.NewDiskStore(s.home.ImagesPath())
	if err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to create image store: %w", err)
	}
	images := imagestore.NewResolver(disk, imagestore.NewHTTPFetcher())

	s.releaser = imagestore.NewReleaser(images, s.logger)
	releaserCtx, cancel := context.WithCancel(context.Background())
	s.releaserCancel = cancel
	s.releaser.Start(releaserCtx)

	s.sessions = session.NewManager(s.docStore, s.releaser, s.logger, s.cfg.SaveDelay)

	if s.configMgr != nil {
		s.configMgr.OnChange(func(c *config.Config) {
			delay := time.Duration(c.Autosave.DelaySeconds) * time.Second
			s.sessions.SetSaveDelay(delay)
			s.logger.Info("configuration reloaded", "autosave_delay", delay)
		})
	}

	// Create services struct for context enrichment
	s.services = &svcctx.Services{
		Sessions:      s.sessions,
		Store:         s.docStore,
		Images:        images,
		Releaser:      s.releaser,
		SettingsStore: s.settings,
		Logger:        s.logger,
		Home:          s.home,
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// initStore builds the document store for the configured backend. On the
// couch backend this starts the container, waits for it to report healthy
// and seeds the runtime settings database.
func (s *Server) initStore(ctx context.Context) error {
	if s.couchManager == nil {
		st, err := store.NewSQLiteStore(s.home.DataPath())
		if err != nil {
			return fmt.Errorf("failed to open sqlite store: %w", err)
		}
		s.docStore = st
		s.logger.Info("using sqlite document store", "path", s.home.DataPath())
		return nil
	}

	// Validate any existing container matches our config
	if err := s.couchManager.ValidateExisting(ctx); err != nil {
		return fmt.Errorf("existing CouchDB container incompatible: %w", err)
	}

	s.logger.Info("starting CouchDB")
	if err := s.couchManager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start CouchDB: %w", err)
	}

	client := couch.NewClient(s.couchManager.URL(), s.cfg.CouchConfig.Username, s.cfg.CouchConfig.Password)
	if err := client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("CouchDB health check failed: %w", err)
	}
	s.logger.Info("CouchDB is ready", "url", s.couchManager.URL())

	st, err := store.NewCouchStore(ctx, client, s.cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to create document store: %w", err)
	}
	s.docStore = st

	settings, err := config.NewCouchStore(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to create settings store: %w", err)
	}
	if err := config.SeedDefaults(ctx, settings, s.logger); err != nil {
		return fmt.Errorf("failed to seed default settings: %w", err)
	}
	s.settings = settings
	return nil
}

// shutdown performs graceful shutdown: HTTP server first, then a final
// autosave flush, then the release queue, then the store and container.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.sessions != nil {
		s.sessions.Shutdown(shutdownCtx)
	}
	if s.releaser != nil {
		s.releaser.Stop()
	}
	if s.releaserCancel != nil {
		s.releaserCancel()
	}

	if s.docStore != nil {
		if err := s.docStore.Close(); err != nil {
			s.logger.Error("store close error", "error", err)
		}
	}

	if s.couchManager != nil {
		s.logger.Info("stopping CouchDB")
		if err := s.couchManager.Stop(shutdownCtx); err != nil {
			s.logger.Error("CouchDB stop error", "error", err)
		}
		if err := s.couchManager.Close(); err != nil {
			s.logger.Error("couch manager close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Sessions returns the document session manager.
// Returns nil if the server hasn't started yet.
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// Store returns the document store.
// Returns nil if the server hasn't started yet.
func (s *Server) Store() store.Store {
	return s.docStore
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withRecovery converts handler panics into a static 500 JSON response.
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panic", "path", r.URL.Path, "panic", rec)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"internal server error"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until the store and sessions are ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.docStore == nil || s.sessions == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
