package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paper_shelf_go_backend/cmd/api/config"
	"paper_shelf_go_backend/internal/api"
	"paper_shelf_go_backend/internal/auth"
	"paper_shelf_go_backend/internal/database"
	"paper_shelf_go_backend/internal/observability"
	"paper_shelf_go_backend/internal/services"
	"paper_shelf_go_backend/internal/utils/taskrunner"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	zerolog.DefaultContextLogger = &logger

	if cfg.GeminiAPIKey == "" {
		logger.Warn().Msg("GOOGLE_AI_STUDIO_API_KEY is not set, enrichment will fail until it is configured")
	}
	if cfg.Auth0Domain == "" {
		logger.Fatal().Msg("AUTH0_DOMAIN is not set")
	}

	db, err := database.InitDB(database.Config{
		Host:     cfg.DBHost,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Name:     cfg.DBName,
		Port:     cfg.DBPort,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}

	metrics := observability.NewMetrics()

	runner := taskrunner.New(cfg.EnrichmentWorkers, cfg.EnrichmentQueueSize, logger)
	runner.OnDrop = func(string) { metrics.TasksDropped.Inc() }

	generator := services.NewGeminiGenerator(cfg.GeminiAPIKey, cfg.GeminiModel)
	defer generator.Close()

	arxivClient := services.NewArxivClient(services.ArxivConfig{
		BaseURL:         cfg.ArxivBaseURL,
		MaxRetries:      cfg.ArxivMaxRetries,
		InitialBackoff:  cfg.ArxivInitialBackoff,
		RequestInterval: cfg.ArxivRequestInterval,
		LatestPageSize:  cfg.ArxivLatestPageSize,
	}, nil, metrics, logger)
	catalog := services.NewCatalogServiceDB(db, logger)
	userService := services.NewUserService(db)
	fetcher := services.NewPDFFetcher(&http.Client{Timeout: cfg.PDFFetchTimeout}, cfg.PDFMaxBytes, logger)
	analyzer := services.NewEnrichmentAnalyzer(generator, logger)
	enrichment := services.NewEnrichmentService(catalog, fetcher, analyzer, runner, metrics, logger)
	library := services.NewLibraryService(arxivClient, catalog, enrichment, logger)
	verifier := auth.NewAuth0Verifier(cfg.Auth0Domain, nil)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(api.RequestLogger(logger))

	// CORS middleware configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api.SetupRoutes(r, library, verifier, userService)
	auth.SetupRoutes(r, verifier, userService)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Background enrichment did not finish before shutdown")
	}
}
