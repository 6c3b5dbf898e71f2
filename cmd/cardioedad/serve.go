package main

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/cardioedad/cardioedad/internal/config"
	"github.com/cardioedad/cardioedad/internal/domain/assistant"
	"github.com/cardioedad/cardioedad/internal/domain/attachment"
	"github.com/cardioedad/cardioedad/internal/domain/patient"
	"github.com/cardioedad/cardioedad/internal/platform/auth"
	"github.com/cardioedad/cardioedad/internal/platform/db"
	"github.com/cardioedad/cardioedad/internal/platform/live"
	"github.com/cardioedad/cardioedad/internal/platform/middleware"
)

const version = "0.1.0"

func newLogger(env string, out io.Writer) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// newBlobStore picks the attachment storage backend from config.
func newBlobStore(ctx context.Context, cfg *config.Config) (attachment.BlobStore, error) {
	if cfg.StorageBackend == config.StorageS3 {
		return attachment.NewS3Store(ctx, attachment.S3Config{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
		})
	}
	return attachment.NewMemoryStore(), nil
}

// signingKey returns the configured JWT key. Development servers without
// one get a random key per process.
func signingKey(cfg *config.Config, logger zerolog.Logger) ([]byte, error) {
	if cfg.JWTSigningKey != "" {
		return []byte(cfg.JWTSigningKey), nil
	}
	buf := make([]byte, 32)
	if _, err := crypto_rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	logger.Warn().Msg("JWT_SIGNING_KEY not set, using an ephemeral key")
	return []byte(hex.EncodeToString(buf)), nil
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"), os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if cfg.IsDev() {
		logger.Warn().Msg("development mode: /api/v1 is served without authentication")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	migrator := db.NewMigrator(pool, migrationFiles(cfg))
	if err := migrator.Verify(ctx); err != nil {
		logger.Fatal().Err(err).Msg("database schema check failed")
	}

	repos := repositories{
		patients:    patient.NewPatientRepo(pool),
		logs:        patient.NewDailyLogRepo(pool),
		attachments: attachment.NewRepo(pool),
		pool:        pool,
		migrator:    migrator,
		tx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.WithTx(ctx, pool, fn)
		},
	}
	e, err := buildServer(ctx, cfg, repos, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("storage", cfg.StorageBackend).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// repositories are the persistence dependencies of the API. pool and
// migrator are nil when the server is built without a database.
type repositories struct {
	patients    patient.PatientRepository
	logs        patient.DailyLogRepository
	attachments attachment.Repository
	tx          patient.TxFunc
	pool        *pgxpool.Pool
	migrator    *db.Migrator
}

func buildServer(ctx context.Context, cfg *config.Config, repos repositories, logger zerolog.Logger) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(middleware.BodyLimit("1M", fmt.Sprintf("%dM", attachment.MaxFileSize/(1024*1024)+1)))
	e.Use(middleware.RequestTimeout(60 * time.Second))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if repos.pool != nil {
		e.GET("/health/db", db.HealthHandler(repos.pool, repos.migrator))
	}

	key, err := signingKey(cfg, logger)
	if err != nil {
		return nil, err
	}
	gate := auth.NewGate(cfg.AccessPassphraseHash, key, cfg.TokenTTL)
	auth.NewHandler(gate).RegisterRoutes(e)

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}))
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{Issuer: auth.Issuer, SigningKey: key}))
	}

	// Patients and daily logs
	patientSvc := patient.NewService(repos.patients, repos.logs, logger)
	if repos.tx != nil {
		patientSvc.SetTx(repos.tx)
	}
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)

	// Live chart feed
	hub := live.NewHub(logger)
	patientSvc.SetPublisher(hub)
	live.NewHandler(hub, cfg.CORSOrigins, logger).RegisterRoutes(apiV1)

	// Attachments
	store, err := newBlobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	attachmentSvc := attachment.NewService(repos.attachments, store, patientSvc, cfg.S3PublicBaseURL, logger)
	patientSvc.SetAttachmentStore(attachmentSvc)
	attachment.NewHandler(attachmentSvc).RegisterRoutes(apiV1)

	// AI assistant
	var model assistant.Model
	if cfg.AssistantEnabled() {
		g, err := assistant.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		model = g
		logger.Info().Str("model", cfg.GeminiModel).Msg("assistant enabled")
	} else {
		logger.Warn().Msg("GEMINI_API_KEY not set, assistant endpoints will answer 503")
	}
	assistant.NewHandler(assistant.NewService(model, patientSvc, logger)).RegisterRoutes(apiV1)

	return e, nil
}
