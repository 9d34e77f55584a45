package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	sloggorm "github.com/orandin/slog-gorm"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	otellib "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormtracing "gorm.io/plugin/opentelemetry/tracing"

	"github.com/testsmith/testsmith/cmd/server/internal/github"
	servermiddleware "github.com/testsmith/testsmith/cmd/server/internal/middleware"
	"github.com/testsmith/testsmith/cmd/server/internal/migrations"
	"github.com/testsmith/testsmith/cmd/server/internal/models"
	"github.com/testsmith/testsmith/cmd/server/internal/pipeline"
	"github.com/testsmith/testsmith/cmd/server/internal/routes"
	routesv1 "github.com/testsmith/testsmith/cmd/server/internal/routes/v1"
	"github.com/testsmith/testsmith/internal/archive"
	"github.com/testsmith/testsmith/internal/config"
	"github.com/testsmith/testsmith/internal/generation"
	"github.com/testsmith/testsmith/internal/logger"
	"github.com/testsmith/testsmith/internal/otel"
	"github.com/testsmith/testsmith/internal/upload"
)

const name string = "github.com/testsmith/testsmith/cmd/server"

var tracer = otellib.Tracer(name)

type server struct {
	router       *echo.Echo
	config       *config.Config
	db           *gorm.DB
	redis        *redis.Client
	otelShutdown func(context.Context) error
}

func initServer(ctx context.Context) (*server, error) {
	server := new(server)

	cfg, err := config.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize server config: %w", err)
	}
	server.config = cfg

	shutdownOTel, err := otel.SetupOTelSDK(ctx, otel.Options{UseOTLP: cfg.Logging.UseOTLP})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OTEL SDK: %w", err)
	}
	defer func() {
		// Something failed to initialize, make sure everything gets flushed to the server
		if server.otelShutdown == nil {
			otelShutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()

			if err = shutdownOTel(otelShutdownCtx); err != nil {
				logger.Logger.Error("failed to flush otel data", "error", err)
			}
		}
	}()

	ctx, span := tracer.Start(ctx, "initServer")
	defer span.End()

	logger.SetLevel(cfg.Logging.App.Level)

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to initialize database")
		return nil, err
	}

	span.AddEvent("initialized database connection")

	err = migrations.Up(ctx, db)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to perform database migrations")
		return nil, fmt.Errorf("failed to perform database migrations: %w", err)
	}

	span.AddEvent("migrated database to latest version")

	if err = models.LoadUsersFromConfig(ctx, db, cfg.Users); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load users from config")
		return nil, fmt.Errorf("failed to load users from config: %w", err)
	}

	span.AddEvent("loaded users from config")

	hosts, err := github.NewFactory(github.Config{
		APIBaseURL: cfg.Github.APIBaseURL,
		RetryMax:   cfg.Github.RetryMax,
		Timeout:    cfg.Github.Timeout,
		AppID:      cfg.Github.AppID,
		AppKeyPath: cfg.Github.AppKeyPath,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to construct github client factory")
		return nil, fmt.Errorf("failed to construct github client factory: %w", err)
	}

	span.AddEvent("initialized github client factory")

	engine, err := newEngine(ctx, cfg.Generation)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to construct generation engine")
		return nil, err
	}

	span.AddEvent("initialized generation engine")

	var opts []pipeline.Option
	if cfg.ArchiveEnabled() {
		archiver, err := newArchiver(ctx, cfg.S3Archive)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to construct archiver")
			return nil, err
		}
		opts = append(opts, pipeline.WithArchiver(archiver))
		span.AddEvent("initialized artifact archive")
	} else {
		logger.Logger.Warn("not configured to archive generated tests")
	}

	orchestrator := pipeline.New(
		models.NewJobStore(db),
		engine,
		hosts,
		pipeline.Config{
			BranchPrefix: cfg.Publish.BranchPrefix,
			TestsDir:     cfg.Publish.TestsDir,
			WriteReadme:  cfg.Publish.WriteReadme,
		},
		opts...,
	)

	if cfg.RateLimitEnabled() {
		logger.Logger.Debug("Setting up rate limiter with Redis", "redis", cfg.RateLimit.RedisHost)
		server.redis = redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisHost})
	}

	e, err := routes.BuildEcho(logger.Logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error building router")
		return nil, fmt.Errorf("error building router: %w", err)
	}

	span.AddEvent("created echo router")

	v1Handler := routesv1.NewHandler(orchestrator, cfg)
	middlewareHandler := servermiddleware.Handler{DB: db}
	v1Handler.AddRoutes(e, &middlewareHandler, server.redis)

	server.otelShutdown = shutdownOTel
	server.router = e
	server.db = db

	return server, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	ctx, span := tracer.Start(ctx, "openDatabase")
	defer span.End()

	gormLogger := slog.New(logger.Handler)

	sg := sloggorm.New(
		sloggorm.WithHandler(gormLogger.Handler()),
		sloggorm.SetLogLevel(sloggorm.DefaultLogType, slog.Level(cfg.Logging.Gorm.Level)),
	)
	if cfg.Logging.Gorm.TraceQueries {
		sg = sloggorm.New(
			sloggorm.WithHandler(gormLogger.Handler()),
			sloggorm.WithTraceAll(),
			sloggorm.SetLogLevel(sloggorm.DefaultLogType, slog.Level(cfg.Logging.Gorm.Level)),
		)
	}

	span.AddEvent("initialized gorm logging")

	db, err := gorm.Open(
		postgres.Open(cfg.PostgresDSN()),
		&gorm.Config{Logger: sg, TranslateError: true},
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open database")
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	sqlDB, err := db.WithContext(ctx).DB()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to acquire underlying database connection")
		return nil, fmt.Errorf("failed to acquire underlying database connection: %w", err)
	}

	// Configure db connection pool
	sqlDB.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.Postgres.ConnectionTTL)

	err = db.Use(gormtracing.NewPlugin())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to add otel plugin to gorm")
		return nil, fmt.Errorf("failed to add otel plugin to gorm: %w", err)
	}

	span.AddEvent("added the otel plugin to gorm")
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "opened database")
	return db, nil
}

// newEngine builds the generation engine for the configured provider. The
// fallback provider runs without a model.
func newEngine(ctx context.Context, cfg *config.GenerationConfig) (*generation.Engine, error) {
	engineCfg := generation.Config{
		Timeout:         cfg.Timeout,
		MaxPreviewChars: cfg.MaxPreviewChars,
	}

	switch cfg.Provider {
	case config.ProviderFallback:
		logger.Logger.Warn("generation provider is fallback, every result is a template")
		return generation.NewEngine(nil, engineCfg), nil
	case config.ProviderGemini:
		model, err := generation.NewGeminiModel(ctx, generation.GeminiConfig{
			APIKey:      cfg.Gemini.APIKey,
			Model:       cfg.Gemini.Model,
			Temperature: cfg.Gemini.Temperature,
			RetryMax:    3,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to construct gemini model: %w", err)
		}
		return generation.NewEngine(model, engineCfg), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}

func newArchiver(ctx context.Context, cfg *config.S3ArchiveConfig) (*archive.ArtifactArchiver, error) {
	minioUploader, err := upload.NewMinioUploader(
		cfg.Endpoint,
		cfg.AccessKeyID,
		cfg.SecretAccessKey,
		cfg.SSLEnabled,
		cfg.BucketName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to construct archive uploader: %w", err)
	}

	if err := minioUploader.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare archive bucket: %w", err)
	}

	backoff := func() retry.Backoff {
		b := retry.NewFibonacci(time.Millisecond * 25)
		b = retry.WithMaxRetries(3, b)
		return b
	}

	return archive.NewArtifactArchiver(upload.NewRetryUploaderBackoff(minioUploader, backoff)), nil
}

func (s *server) Start() error {
	logger.Logger.Info("Starting services...", "address", s.config.ListenAddress)

	err := s.router.Start(s.config.ListenAddress)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *server) Shutdown() error {
	var errs error

	ctx, cancelTimeout := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancelTimeout()

	if err := s.router.Shutdown(ctx); err != nil {
		errs = errors.Join(errs, err)
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if s.otelShutdown != nil {
		errs = errors.Join(errs, s.otelShutdown(ctx))
	}

	return errs
}

func main() {
	ctx, cancelSignal := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)

	logger.InitSlog()

	server, err := initServer(ctx)
	if err != nil {
		logger.Logger.Error(err.Error())
		cancelSignal()
		os.Exit(1)
	}

	errch := make(chan error, 1)
	go func() {
		<-ctx.Done()
		logger.Logger.Info("Got shutdown signal!")
		errch <- server.Shutdown()
		close(errch)
	}()

	if err := server.Start(); err != nil {
		logger.Logger.Error(err.Error())
		cancelSignal()
		os.Exit(1)
	}

	if err := <-errch; err != nil {
		logger.Logger.Error("Error shutting down server", "error", err)
	}

	cancelSignal()
}
