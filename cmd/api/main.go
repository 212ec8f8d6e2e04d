package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/loginsentry/internal/auth"
	"github.com/BradenHooton/loginsentry/internal/background"
	"github.com/BradenHooton/loginsentry/internal/cache"
	"github.com/BradenHooton/loginsentry/internal/config"
	"github.com/BradenHooton/loginsentry/internal/database"
	"github.com/BradenHooton/loginsentry/internal/handlers"
	middlewareCustom "github.com/BradenHooton/loginsentry/internal/middleware"
	"github.com/BradenHooton/loginsentry/internal/repositories"
	"github.com/BradenHooton/loginsentry/internal/routes"
	"github.com/BradenHooton/loginsentry/internal/services"
	pkghttp "github.com/BradenHooton/loginsentry/pkg/http"
	pkglogger "github.com/BradenHooton/loginsentry/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Counter and cache store
	store, err := newStore(cfg.Notify.StorePath, logger)
	if err != nil {
		logger.Error("failed to open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	// History token signer
	signer, err := auth.NewCookieSigner(cfg.Notify.SigningSecret())
	if err != nil {
		logger.Error("failed to initialize token signer", slog.Any("error", err))
		os.Exit(1)
	}

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Deep history needs the database; without it the resolver falls
	// back to token and cache checks only.
	var db *database.DB
	var historyRepo *repositories.HistoryRepository
	var cleanupManager *background.CleanupManager
	if cfg.Notify.HistoryEnabled {
		db, err = database.NewConnection(&cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()

		historyRepo = repositories.NewHistoryRepository(db, cfg.Notify.HistoryRetention, nil)
		cleanupManager = background.NewCleanupManager(historyRepo, logger, cfg.Notify.CleanupInterval)
	}

	resolver := services.NewKnownLocationResolver(store, historyProvider(historyRepo), signer, services.ResolverConfig{
		HistoryEnabled: cfg.Notify.HistoryEnabled,
		NoInfoIsKnown:  cfg.Notify.NoInfoIsKnown,
		LocalRealm:     cfg.Notify.LocalRealm,
		MaxRealms:      cfg.Notify.MaxRealms,
		RealmTimeout:   cfg.Notify.RealmTimeout,
	}, logger)
	counter := services.NewAttemptCounter(store, logger)

	// Notification delivery: SES when configured, structured log
	// otherwise
	var sink services.NotificationSink
	if cfg.Email.Enabled {
		recipients := services.NewPatternRecipientResolver(cfg.Email.RecipientPattern)
		sink, err = services.NewSESNotificationSink(cfg.Email.AWSRegion, cfg.Email.FromAddress, recipients, logger)
		if err != nil {
			logger.Error("failed to initialize email sink", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		sink = services.NewLogNotificationSink(logger)
	}

	notifyService := services.NewLoginNotifyService(
		resolver, counter, store, signer, sink, historyRecorder(historyRepo),
		services.LoginNotifyConfig{
			KnownThreshold:   cfg.Notify.KnownThreshold,
			KnownTTL:         cfg.Notify.KnownTTL,
			NewThreshold:     cfg.Notify.NewThreshold,
			NewTTL:           cfg.Notify.NewTTL,
			MaxCookieRecords: cfg.Notify.MaxCookieRecords,
			CookieExpiry:     cfg.Notify.CookieExpiry,
			CacheTTL:         cfg.Notify.CacheTTL,
			SuccessNotify:    cfg.Notify.SuccessNotify,
			LocalRealm:       cfg.Notify.LocalRealm,
		},
		logger, auditLogger,
	)

	// Service token auth for the ingest API
	tokenManager := auth.NewServiceTokenManager(cfg.Auth.ServiceTokenSecret, cfg.Auth.ServiceTokenExpiry)

	ipConfig := &pkghttp.IPConfig{}
	eventsHandler := handlers.NewLoginEventsHandler(notifyService, auditLogger, ipConfig)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, eventsHandler, tokenManager)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := db.HealthCheck(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start history cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	if cleanupManager != nil {
		go cleanupManager.Start(cleanupCtx)
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	if cleanupManager != nil {
		cleanupManager.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// newStore opens the badger-backed store, on disk when a path is
// configured and in memory otherwise
func newStore(path string, logger *slog.Logger) (*cache.BadgerStore, error) {
	if path == "" {
		logger.Warn("NOTIFY_STORE_PATH not set, counters will not survive restarts")
		return cache.NewBadgerStoreInMemory()
	}
	return cache.NewBadgerStore(path)
}

// historyProvider converts a possibly-nil repository into the resolver's
// interface without producing a non-nil interface around a nil pointer
func historyProvider(repo *repositories.HistoryRepository) services.HistoryProvider {
	if repo == nil {
		return nil
	}
	return repo
}

// historyRecorder does the same for the engine's recorder
func historyRecorder(repo *repositories.HistoryRepository) services.HistoryRecorder {
	if repo == nil {
		return nil
	}
	return repo
}
