// Package server is the composition root: it builds every dependency from
// the configuration, wires handlers to routes and runs the HTTP server until
// shutdown.
//
//	config → sqlite.DB ─┬→ SnippetService ──→ SnippetHandler, ShareHandler
//	                    ├→ VisibilityService → VisibilityHandler
//	                    ├→ StatsService ────→ StatsHandler
//	                    ├→ AuthService ─────→ AuthHandler
//	                    └→ ExpirySweeper (background)
//
// Handlers only see services; services only see repository interfaces.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/snippet-vault/internal/auth"
	"github.com/sakif/snippet-vault/internal/cache"
	redisCache "github.com/sakif/snippet-vault/internal/cache/redis"
	"github.com/sakif/snippet-vault/internal/clock"
	"github.com/sakif/snippet-vault/internal/config"
	"github.com/sakif/snippet-vault/internal/executor"
	"github.com/sakif/snippet-vault/internal/handler"
	"github.com/sakif/snippet-vault/internal/middleware"
	sqliteRepo "github.com/sakif/snippet-vault/internal/repository/sqlite"
	"github.com/sakif/snippet-vault/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server owns the database, the cache connection and the background sweeper.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	clock  clock.Clock

	db      *sqliteRepo.DB
	cache   cache.SnippetCache
	redis   *redisCache.Cache // nil without REDIS_URL
	sweeper *service.ExpirySweeper
	exec    executor.Executor // nil when disabled
}

type options struct {
	clock    clock.Clock
	executor executor.Executor
}

// Option customises New. Tests use it to inject a clock or a fake sandbox.
type Option func(*options)

func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithExecutor sets the sandbox used by POST /api/snippets/{id}/run.
func WithExecutor(e executor.Executor) Option {
	return func(o *options) { o.executor = e }
}

// New opens the database, connects the cache and builds the router. Close
// must be called if Start is not.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	o := options{clock: clock.Real{}}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sqliteRepo.New(cfg.DBPath, sqliteRepo.WithClock(o.clock))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		clock:  o.clock,
		db:     db,
		exec:   o.executor,
	}

	if err := s.setupCache(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// setupCache picks Redis behind a local tier when a URL is configured and a
// plain in-process cache otherwise.
func (s *Server) setupCache(ctx context.Context) error {
	local := cache.NewMemory(s.config.CacheTTL, s.clock)
	if s.config.RedisURL == "" {
		s.cache = local
		return nil
	}

	rc, err := redisCache.Connect(ctx, s.config.RedisURL, s.config.CacheTTL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	s.redis = rc
	s.cache = &cache.Layered{Local: local, Shared: rc}
	s.logger.Info("using redis snippet cache")
	return nil
}

// setupRoutes registers middleware and routes.
//
//	GET    /healthz
//	GET    /share/{id}                      HTML share page
//	GET    /api/share/{id}[/raw]            public snippet (rate limited)
//	GET    /auth/github/login|callback
//	POST   /auth/register|login (rate limited), /auth/logout
//	       /api/...                         authenticated API
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.clock)
	if err != nil {
		return err
	}

	var github *auth.GitHubProvider
	if s.config.GitHub.Enabled() {
		github = auth.NewGitHubProvider(s.config.GitHub.ClientID, s.config.GitHub.ClientSecret, s.config.GitHub.CallbackURL)
	} else {
		s.logger.Warn("GitHub OAuth not configured, only email login is available")
	}

	snippetService := service.NewSnippetService(s.db, s.cache, s.clock, s.logger)
	visibilityService := service.NewVisibilityService(s.db, s.cache, s.clock, s.logger)
	statsService := service.NewStatsService(s.db, s.clock)
	authService := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), s.logger)
	runService := service.NewRunService(snippetService, s.exec, s.logger)
	if s.config.SweepInterval > 0 {
		s.sweeper = service.NewExpirySweeper(s.db, s.cache, s.clock, s.config.SweepInterval, s.logger)
	}

	snippetHandler := handler.NewSnippetHandler(snippetService, runService, s.logger)
	visibilityHandler := handler.NewVisibilityHandler(visibilityService, s.config.PublicOrigin, s.logger)
	statsHandler := handler.NewStatsHandler(statsService)
	authHandler := handler.NewAuthHandler(github, authService, s.config.SecureCookies, s.logger)
	shareHandler, err := handler.NewShareHandler(snippetService, s.clock, s.logger)
	if err != nil {
		return fmt.Errorf("creating share handler: %w", err)
	}

	shareLimit := middleware.NewRateLimiter(s.config.RateLimit.ShareRPS, s.config.RateLimit.ShareBurst, s.logger)
	loginLimit := middleware.NewRateLimiter(s.config.RateLimit.LoginRPS, s.config.RateLimit.LoginBurst, s.logger)

	// order matters: the request id must exist before Logger reads it
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)

	s.router.With(shareLimit.Middleware, auth.OptionalAuth(tokens)).Get("/share/{id}", shareHandler.HandleSharePage)

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
		r.With(loginLimit.Middleware).Post("/register", authHandler.HandleRegister)
		r.With(loginLimit.Middleware).Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
	})

	s.router.Route("/api", func(r chi.Router) {
		// public
		r.Group(func(r chi.Router) {
			r.Use(shareLimit.Middleware, auth.OptionalAuth(tokens))
			r.Get("/share/{id}", shareHandler.HandleShareJSON)
			r.Get("/share/{id}/raw", shareHandler.HandleShareRaw)
		})
		r.Get("/templates", handler.HandleTemplates)
		r.Get("/catalog", handler.HandleCatalog)

		// signed in
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/me", authHandler.HandleMe)
			r.Put("/me/password", authHandler.HandleChangePassword)

			r.Get("/snippets", snippetHandler.HandleList)
			r.Post("/snippets", snippetHandler.HandleCreate)
			r.Route("/snippets/{id}", func(r chi.Router) {
				r.Get("/", snippetHandler.HandleGet)
				r.Put("/", snippetHandler.HandleUpdate)
				r.Delete("/", snippetHandler.HandleDelete)
				r.Put("/favorite", snippetHandler.HandleFavorite)
				r.Post("/clone", snippetHandler.HandleClone)
				r.Post("/run", snippetHandler.HandleRun)

				r.Get("/visibility", visibilityHandler.HandleState)
				r.Post("/link", visibilityHandler.HandleIssueLink)
				r.Delete("/link", visibilityHandler.HandleRevokeLink)
				r.Post("/community", visibilityHandler.HandlePublish)
				r.Delete("/community", visibilityHandler.HandleRetract)
			})

			r.Get("/explore", snippetHandler.HandleExplore)
			r.Get("/stats", statsHandler.HandleSummary)
			r.Get("/stats/activity", statsHandler.HandleActivity)
			r.Get("/export", snippetHandler.HandleExport)
			r.Post("/import", snippetHandler.HandleImport)
		})
	})

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}` + "\n"))
		return
	}
	w.Write([]byte(`{"status":"ok"}` + "\n"))
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP and runs the background workers until ctx is cancelled,
// then shuts down gracefully and releases every resource.
func (s *Server) Start(ctx context.Context) error {
	defer s.Close()

	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second, // runs can take a while
		IdleTimeout:  60 * time.Second,
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	var workers sync.WaitGroup
	defer workers.Wait()
	defer stopWorkers()

	if s.sweeper != nil {
		workers.Add(1)
		go func() {
			defer workers.Done()
			s.sweeper.Run(workerCtx)
		}()
	}
	if s.redis != nil {
		layered := s.cache.(*cache.Layered)
		workers.Add(1)
		go func() {
			defer workers.Done()
			err := s.redis.Subscribe(workerCtx, func(id string) {
				layered.EvictLocal(id)
				s.logger.Debug("cache entry invalidated", slog.String("id", id))
			})
			if err != nil {
				s.logger.Error("cache invalidation subscriber stopped", slog.String("error", err.Error()))
			}
		}()
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("origin", s.config.PublicOrigin),
			slog.String("database", s.config.DBPath),
			slog.Bool("executor", s.exec != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	}
}

// Close releases the database and cache connections.
func (s *Server) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}
