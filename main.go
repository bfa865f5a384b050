// civictrack/main.go
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"civictrack/config"
	"civictrack/database"
	"civictrack/handlers"
	"civictrack/models"
	"civictrack/utils"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

type Application struct {
	db            database.Store
	logger        *slog.Logger
	storage       models.StorageService
	notifier      models.Notifier
	geocoder      *utils.Geocoder
	rateLimiter   *models.RateLimiter
	submitLimiter models.SubmitLimiter
	jwtSecret     string
	uploadDir     string
}

// Methods to satisfy the handlers.App interface
func (a *Application) DB() database.Store                  { return a.db }
func (a *Application) Logger() *slog.Logger                { return a.logger }
func (a *Application) Storage() models.StorageService      { return a.storage }
func (a *Application) Notifier() models.Notifier           { return a.notifier }
func (a *Application) Geocoder() *utils.Geocoder           { return a.geocoder }
func (a *Application) RateLimiter() *models.RateLimiter    { return a.rateLimiter }
func (a *Application) SubmitLimiter() models.SubmitLimiter { return a.submitLimiter }
func (a *Application) JWTSecret() string                   { return a.jwtSecret }
func (a *Application) UploadDir() string                   { return a.uploadDir }

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// .env is optional; the environment wins over the file.
	if err := godotenv.Load(); err == nil {
		logger.Info("Loaded configuration from .env")
	}

	// --- External Configuration ---
	port := utils.GetEnv("CIVICTRACK_PORT", "8080")
	jwtSecret := os.Getenv("CIVICTRACK_JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("FATAL: CIVICTRACK_JWT_SECRET must be set")
		os.Exit(1)
	}
	adminPassword := utils.GetEnv("CIVICTRACK_ADMIN_PASSWORD", "admin123")
	uploadDir := utils.GetEnv("CIVICTRACK_UPLOAD_DIR", "./uploads")

	rateLimitEvery, err := time.ParseDuration(utils.GetEnv("CIVICTRACK_RATE_EVERY", config.DefaultRateLimitEvery))
	if err != nil {
		logger.Warn("Invalid CIVICTRACK_RATE_EVERY duration, using default", "default", config.DefaultRateLimitEvery)
		rateLimitEvery, _ = time.ParseDuration(config.DefaultRateLimitEvery)
	}
	rateLimitBurst, err := strconv.Atoi(utils.GetEnv("CIVICTRACK_RATE_BURST", strconv.Itoa(config.DefaultRateLimitBurst)))
	if err != nil {
		logger.Warn("Invalid CIVICTRACK_RATE_BURST integer, using default", "default", config.DefaultRateLimitBurst)
		rateLimitBurst = config.DefaultRateLimitBurst
	}
	rateLimitPrune, _ := time.ParseDuration(config.DefaultRateLimitPrune)
	rateLimitExpire, _ := time.ParseDuration(config.DefaultRateLimitExpire)

	// --- Store Init ---
	var store database.Store
	if utils.GetEnv("CIVICTRACK_DB", "sqlite") == "memory" {
		store, err = database.NewMemoryStore(adminPassword, logger)
		if err != nil {
			logger.Error("Failed to initialize memory store", "error", err)
			os.Exit(1)
		}
	} else {
		dbPath := utils.GetEnv("CIVICTRACK_DB_PATH", "./civictrack.db?_journal_mode=WAL&_foreign_keys=on")
		store, err = database.InitDB(dbPath, adminPassword, logger)
		if err != nil {
			logger.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close store", "error", err)
		}
	}()

	// --- Storage Service Init ---
	var storageService models.StorageService
	if utils.GetEnv("CIVICTRACK_S3_ENABLED", "false") == "true" {
		endpoint := utils.GetEnv("CIVICTRACK_S3_ENDPOINT", "")
		accessKey := utils.GetEnv("CIVICTRACK_S3_ACCESS_KEY", "")
		secretKey := utils.GetEnv("CIVICTRACK_S3_SECRET_KEY", "")
		bucket := utils.GetEnv("CIVICTRACK_S3_BUCKET", "civictrack-photos")
		publicURL := utils.GetEnv("CIVICTRACK_S3_PUBLIC_URL", "")
		useSSL := utils.GetEnv("CIVICTRACK_S3_USE_SSL", "true") == "true"

		storageService, err = utils.NewS3Storage(endpoint, accessKey, secretKey, bucket, publicURL, useSSL)
		if err != nil {
			logger.Error("Failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
		logger.Info("S3 storage initialized", "endpoint", endpoint, "bucket", bucket)
	} else {
		storageService, err = utils.NewLocalStorage(uploadDir)
		if err != nil {
			logger.Error("FATAL: Could not create uploads directory", "error", err)
			os.Exit(1)
		}
		logger.Info("Local storage initialized", "dir", uploadDir)
	}

	// --- Notifier Init ---
	var notifier models.Notifier
	if smtpHost := os.Getenv("CIVICTRACK_SMTP_HOST"); smtpHost != "" {
		notifier = utils.NewSMTPNotifier(
			smtpHost,
			utils.GetEnv("CIVICTRACK_SMTP_PORT", "587"),
			os.Getenv("CIVICTRACK_SMTP_USER"),
			os.Getenv("CIVICTRACK_SMTP_PASSWORD"),
			utils.GetEnv("CIVICTRACK_SMTP_FROM", "noreply@civictrack.local"),
		)
		logger.Info("SMTP notifier initialized", "host", smtpHost)
	} else {
		notifier = utils.NoopNotifier{}
		logger.Info("SMTP not configured, email notifications disabled")
	}

	// --- Submission Limiter Init ---
	var submitLimiter models.SubmitLimiter
	if redisAddr := os.Getenv("CIVICTRACK_REDIS_ADDR"); redisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("CIVICTRACK_REDIS_PASSWORD"),
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.Error("Failed to connect to Redis", "addr", redisAddr, "error", err)
			os.Exit(1)
		}
		submitLimiter = &models.RedisSubmitLimiter{
			Client: client,
			Prefix: "civictrack:submissions",
			Limit:  config.DailyIssueLimit,
		}
		logger.Info("Redis submission limiter initialized", "addr", redisAddr)
	} else {
		submitLimiter = &models.MemorySubmitLimiter{Limit: config.DailyIssueLimit}
		logger.Info("In-process submission limiter initialized")
	}

	app := &Application{
		db:            store,
		logger:        logger,
		storage:       storageService,
		notifier:      notifier,
		geocoder:      utils.NewGeocoder(),
		rateLimiter:   models.NewRateLimiter(rateLimitEvery, rateLimitBurst, rateLimitPrune, rateLimitExpire),
		submitLimiter: submitLimiter,
		jwtSecret:     jwtSecret,
		uploadDir:     uploadDir,
	}

	mux := handlers.SetupRouter(app)

	// --- Graceful Shutdown ---
	server := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("civictrack server started successfully",
		"version", config.AppVersion,
		"address", "http://localhost:"+port,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("Server exiting")
}
