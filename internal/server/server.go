// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects storage, the portal state,
// services, handlers, middleware and background jobs, and decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config
//	  ├─ storage.driver  → sqlite.DB | postgres.DB   (repository.Store)
//	  ├─ cache.*         → gateway.RedisCache | gateway.MemoryCache
//	  ├─ ai.*            → gateway.Gateway
//	  └─ portal.State{Content, Market, Gateway, Tracker, Hub}
//	        ├─ service.ContentService   → handler.ContentHandler
//	        ├─ service.AssistantService → handler.AIHandler, handler.ChatSocket
//	        ├─ service.LibraryService   → handler.LibraryHandler
//	        └─ service.AuthService      → handler.AuthHandler
//	  jobs.Scheduler: market refresh, feed ingest
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/nexusmena/internal/auth"
	"github.com/sakif/nexusmena/internal/config"
	"github.com/sakif/nexusmena/internal/gateway"
	"github.com/sakif/nexusmena/internal/handler"
	"github.com/sakif/nexusmena/internal/ingest"
	"github.com/sakif/nexusmena/internal/jobs"
	"github.com/sakif/nexusmena/internal/market"
	"github.com/sakif/nexusmena/internal/middleware"
	"github.com/sakif/nexusmena/internal/portal"
	"github.com/sakif/nexusmena/internal/repository"
	pgRepo "github.com/sakif/nexusmena/internal/repository/postgres"
	sqliteRepo "github.com/sakif/nexusmena/internal/repository/sqlite"
	"github.com/sakif/nexusmena/internal/service"
)

// Option adjusts how New wires the server. Tests use these to swap out
// external collaborators.
type Option func(*options)

type options struct {
	generator gateway.Generator
	market    market.Source
	mailer    auth.Mailer
}

// WithGenerator replaces the Gemini client (and ignores ai.api_key).
func WithGenerator(g gateway.Generator) Option { return func(o *options) { o.generator = g } }

// WithMarketSource replaces the fixture market feed.
func WithMarketSource(src market.Source) Option { return func(o *options) { o.market = src } }

// WithMailer replaces the logging mailer used for password resets.
func WithMailer(m auth.Mailer) Option { return func(o *options) { o.mailer = m } }

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection, the Redis client (if any) and
// the portal's identity subscription. Close releases them in reverse order
// of creation; Start calls it during graceful shutdown.
type Server struct {
	router   *chi.Mux
	cfg      *config.Config
	logger   *slog.Logger
	store    repository.Store
	state    *portal.State
	tokens   *auth.TokenService
	jobs     *jobs.Scheduler
	ingester *ingest.Ingester
	closers  []func() error
}

// New builds every dependency from cfg.
//
// Only storage failures are fatal. A missing AI key, an unreachable Redis
// or unconfigured GitHub OAuth each degrade one feature and are logged.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
	}
	if err := s.wire(ctx, o); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) wire(ctx context.Context, o options) error {
	// === STORAGE ===
	store, err := openStore(ctx, s.cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening %s storage: %w", s.cfg.Storage.Driver, err)
	}
	s.store = store
	s.closers = append(s.closers, store.Close)

	// === AI GATEWAY ===
	cache := s.openCache(ctx)
	gwCfg := gateway.Config{
		APIKey:      s.cfg.AI.APIKey,
		TextModel:   s.cfg.AI.TextModel,
		SpeechModel: s.cfg.AI.SpeechModel,
		Voice:       s.cfg.AI.Voice,
	}
	var gw *gateway.Gateway
	if o.generator != nil {
		gw = gateway.NewWithGenerator(o.generator, gwCfg, s.logger, gateway.WithCache(cache))
	} else if gw, err = gateway.New(ctx, gwCfg, s.logger, gateway.WithCache(cache)); err != nil {
		return err
	}

	// === PORTAL STATE ===
	src := o.market
	if src == nil {
		if src, err = market.NewFixtureSource(); err != nil {
			return fmt.Errorf("loading market fixtures: %w", err)
		}
	}
	s.state = portal.New(portal.Deps{
		Users:       store,
		Preferences: store,
		Gateway:     gw,
		Market:      src,
		Logger:      s.logger,
	})
	if err := s.state.Start(ctx); err != nil {
		return err
	}
	s.closers = append(s.closers, func() error { s.state.Close(); return nil })

	// === AUTH ===
	secret := s.cfg.Auth.JWTSecret
	if secret == "" {
		s.logger.Warn("auth.jwt_secret not set; using a random secret, sessions end on restart")
		secret = randomSecret()
	}
	if s.tokens, err = auth.NewTokenService(secret, s.cfg.Auth.SessionTTL); err != nil {
		return err
	}

	// === BACKGROUND WORK ===
	s.ingester = ingest.New(s.state.Content, s.logger, ingest.WithTimeout(s.cfg.Ingest.Timeout))
	s.jobs = jobs.New(s.logger)
	if err := s.jobs.Add("market-refresh", s.cfg.Market.RefreshSchedule, func(ctx context.Context) error {
		_, err := s.state.Market.Refresh(ctx)
		return err
	}); err != nil {
		return err
	}
	feeds := ingest.FromConfig(s.cfg.Ingest.Feeds)
	if len(feeds) > 0 {
		if err := s.jobs.Add("feed-ingest", s.cfg.Ingest.Schedule, func(ctx context.Context) error {
			_, err := s.ingester.Run(ctx, feeds)
			return err
		}); err != nil {
			return err
		}
	}

	s.setupRoutes(o)
	return nil
}

// openStore picks the repository backend.
//
// IMPORT ALIAS:
// repository/sqlite and repository/postgres are imported as sqliteRepo and
// pgRepo so they don't read like the driver packages themselves.
func openStore(ctx context.Context, cfg config.StorageConfig) (repository.Store, error) {
	if cfg.Driver == "postgres" {
		db, err := pgRepo.New(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return db, nil
	}

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(cfg.Path)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// openCache returns Redis when configured and reachable, otherwise an
// in-process cache.
func (s *Server) openCache(ctx context.Context) gateway.Cache {
	c := s.cfg.Cache
	if c.RedisAddr != "" {
		rc, err := gateway.NewRedisCache(ctx, c.RedisAddr, c.RedisPassword, c.RedisDB, c.TTL)
		if err == nil {
			s.closers = append(s.closers, rc.Close)
			s.logger.Info("AI response cache: redis", slog.String("addr", c.RedisAddr))
			return rc
		}
		s.logger.Warn("redis unavailable, caching in memory",
			slog.String("addr", c.RedisAddr),
			slog.String("error", err.Error()),
		)
	}
	return gateway.NewMemoryCache(c.TTL, c.Size)
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /health
//	GET  /auth/github/login, /auth/github/callback
//	POST /auth/signup, /auth/login, /auth/logout
//	POST /auth/password/reset, /auth/password/confirm
//
//	GET  /api/content/{kind}          [optional auth]
//	GET  /api/content/{kind}/{id}
//	POST /api/content/{kind}          [auth]
//	GET  /api/resources               POST /api/resources [auth]
//	GET  /api/market                  POST /api/market/refresh [auth]
//	GET  /api/market/insight
//	POST /api/ai/summarize|translate|speech|chat
//	POST /api/podcasts/{id}/summary
//	GET  /api/ws/chat                 (websocket)
//	     /api/me/...                  [auth] profile, favorites, saved,
//	                                  chats, analyses, preferences
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Logger: logs each request with timing info and the request ID
// 4. Recoverer: catches panics and returns 500 instead of crashing
// 5. CORS: only when server.cors_origins is set; the browser client sends
// the session cookie, so credentials are allowed and "*" is not echoed.
func (s *Server) setupRoutes(o options) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	if origins := s.cfg.Server.CORSOrigins; len(origins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// === SERVICES ===
	mailer := o.mailer
	if mailer == nil {
		mailer = auth.LogMailer{Logger: s.logger}
	}
	authService := service.NewAuthService(s.store, s.store, s.tokens, auth.NewPasswordService(), s.state.Hub, s.logger,
		service.WithMailer(mailer, s.cfg.Auth.ResetURL))
	contentService := service.NewContentService(s.state, s.logger)
	assistant := service.NewAssistantService(s.state, s.logger)
	library := service.NewLibraryService(s.store, s.state.Content, s.logger)

	// === HANDLERS ===
	github := auth.NewGitHubProvider(s.cfg.Auth.GitHubClientID, s.cfg.Auth.GitHubClientSecret, s.cfg.Auth.GitHubCallbackURL)
	if !github.Configured() {
		s.logger.Warn("GitHub OAuth not configured; /auth/github/* will answer 503")
	}
	authHandler := handler.NewAuthHandler(authService, github, s.cfg.Server.SecureCookies, s.logger)
	contentHandler := handler.NewContentHandler(contentService, s.logger)
	aiHandler := handler.NewAIHandler(assistant, s.logger)
	libraryHandler := handler.NewLibraryHandler(library, s.logger)
	chatSocket := handler.NewChatSocket(assistant, s.cfg.Server.CORSOrigins, s.logger)

	requireAuth := auth.RequireAuth(s.tokens)
	optionalAuth := auth.OptionalAuth(s.tokens)

	s.router.Get("/health", handler.Health(s.health))

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
		r.Post("/signup", authHandler.HandleSignUp)
		r.Post("/login", authHandler.HandleLogin)
		r.With(optionalAuth).Post("/logout", authHandler.HandleLogout)
		r.Post("/password/reset", authHandler.HandlePasswordReset)
		r.Post("/password/confirm", authHandler.HandlePasswordConfirm)
	})

	s.router.Route("/api", func(r chi.Router) {
		// Public; signing in only changes whose chat requests supersede each other.
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)

			r.Get("/content/{kind}", contentHandler.HandleList)
			r.Get("/content/{kind}/{id}", contentHandler.HandleGet)
			r.Get("/resources", contentHandler.HandleResources)
			r.Get("/market", contentHandler.HandleMarket)
			r.Get("/market/insight", aiHandler.HandleMarketInsight)

			r.Post("/ai/summarize", aiHandler.HandleSummarize)
			r.Post("/ai/translate", aiHandler.HandleTranslate)
			r.Post("/ai/speech", aiHandler.HandleSpeech)
			r.Post("/ai/chat", aiHandler.HandleChat)
			r.Post("/podcasts/{id}/summary", aiHandler.HandlePodcastSummary)
			r.Get("/ws/chat", chatSocket.HandleChat)
		})

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Post("/content/{kind}", contentHandler.HandleCreate)
			r.Post("/resources", contentHandler.HandleCreateResource)
			r.Post("/market/refresh", contentHandler.HandleRefreshMarket)

			r.Get("/me", libraryHandler.HandleMe)
			r.Get("/me/favorites", libraryHandler.HandleFavorites)
			r.Post("/me/favorites/{id}", libraryHandler.HandleToggleFavorite)
			r.Get("/me/saved", libraryHandler.HandleSaved)
			r.Get("/me/chats", libraryHandler.HandleChats)
			r.Post("/me/chats", libraryHandler.HandleSaveChat)
			r.Get("/me/analyses", libraryHandler.HandleAnalyses)
			r.Post("/me/analyses", libraryHandler.HandleSaveAnalysis)
			r.Get("/me/preferences", libraryHandler.HandlePreferences)
			r.Put("/me/preferences", libraryHandler.HandleUpdatePreferences)
			r.Post("/me/preferences/toggle/{field}", libraryHandler.HandleTogglePreference)
		})
	})
}

func (s *Server) health() handler.HealthStatus {
	return handler.HealthStatus{
		AI:       s.state.Gateway.Available(),
		Storage:  s.cfg.Storage.Driver,
		MarketAt: s.state.Market.Current().TakenAt,
	}
}

// Handler exposes the router, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Jobs lists the scheduled background jobs.
func (s *Server) Jobs() []string {
	return s.jobs.Jobs()
}

// Close releases everything New opened. Safe to call after a failed New.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Start starts the HTTP server and background jobs, and handles graceful
// shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Cancel and wait for running jobs
// 4. Close storage and the cache client
func (s *Server) Start() error {
	defer s.Close()

	// AI calls (speech especially) can take well over the usual 15s.
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	serverErrors := make(chan error, 1)

	s.jobs.Start()
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("url", s.cfg.Server.PublicURL),
			slog.String("storage", s.cfg.Storage.Driver),
			slog.Bool("ai", s.state.Gateway.Available()),
			slog.Any("jobs", s.jobs.Jobs()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.jobs.Stop(ctx)
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give in-flight requests and jobs 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.jobs.Stop(ctx)
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
