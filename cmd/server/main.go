package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/access-portal/internal/application/dispatcher"
	"github.com/garyjia/access-portal/internal/application/port"
	"github.com/garyjia/access-portal/internal/application/service"
	"github.com/garyjia/access-portal/internal/application/validation"
	"github.com/garyjia/access-portal/internal/auth"
	"github.com/garyjia/access-portal/internal/config"
	"github.com/garyjia/access-portal/internal/infrastructure/cache"
	"github.com/garyjia/access-portal/internal/infrastructure/export"
	"github.com/garyjia/access-portal/internal/infrastructure/external/lark"
	"github.com/garyjia/access-portal/internal/infrastructure/external/mail"
	"github.com/garyjia/access-portal/internal/infrastructure/external/solapi"
	"github.com/garyjia/access-portal/internal/infrastructure/persistence/memory"
	"github.com/garyjia/access-portal/internal/infrastructure/persistence/repository"
	"github.com/garyjia/access-portal/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/access-portal/internal/infrastructure/storage"
	"github.com/garyjia/access-portal/internal/infrastructure/worker"
	httpserver "github.com/garyjia/access-portal/internal/interfaces/http"
	"github.com/garyjia/access-portal/internal/metrics"
	"github.com/garyjia/access-portal/pkg/database"
	"github.com/garyjia/access-portal/pkg/utils"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file (optional)")
	hashPassword := flag.String("hash-password", "", "print a bcrypt hash for admin.password_hash and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to hash password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	if _, err := os.Stat(*configPath); errors.Is(err, os.ErrNotExist) {
		*configPath = ""
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "access-portal",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Access portal stopped with error", zap.Error(err))
	}
	logger.Info("Server exited successfully")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc := cfg.Location()
	kv := utils.NewKVLogger(logger)

	logger.Info("Starting BLNG access portal",
		zap.String("version", version),
		zap.String("store", cfg.Store.Backend),
		zap.String("cache", cfg.Cache.Backend),
		zap.String("timezone", loc.String()),
		zap.Int("port", cfg.Server.Port))

	var (
		store       port.ApplicationStore
		healthCheck func(context.Context) error
	)
	switch cfg.Store.Backend {
	case "memory":
		store = memory.NewStore(memory.WithLocation(loc))
		logger.Warn("Using in-memory store; applications are lost on restart")
	default:
		db, err := database.New(database.Config{
			Driver:          cfg.Database.Driver,
			Path:            cfg.Database.Path,
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		if err := database.NewMigrator(db, logger).Up(cfg.Database.MigrationsDir); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}

		store = repository.NewApplicationRepository(sqldb.NewDB(db.DB, logger), logger, repository.WithLocation(loc))
		healthCheck = db.PingContext
	}

	var appCache port.ApplicationCache
	switch cfg.Cache.Backend {
	case "memory":
		appCache = cache.NewMemoryCache(cache.WithTTL(cfg.Cache.TTL))
	case "redis":
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Cache.Redis.Addr},
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis is unreachable, continuing", zap.String("addr", cfg.Cache.Redis.Addr), zap.Error(err))
		}
		appCache = cache.NewRedisCache(client, cfg.Cache.TTL)
	}

	events := dispatcher.NewDispatcher(dispatcher.WithLogger(kv))
	defer events.Close()

	notifier := service.NewNotificationService(
		newMailer(cfg, logger),
		newSMSSender(cfg, logger),
		newAlerter(cfg, logger),
		cfg.Server.PublicURL,
		kv,
		service.WithNotificationLocation(loc),
	)
	notifier.Register(events)

	m := metrics.New()

	applications := service.NewApplicationService(
		store,
		appCache,
		validation.New(loc),
		events,
		kv,
		service.WithLocation(loc),
		service.WithMetrics(m),
	)

	authenticator, err := auth.NewAuthenticator(auth.Config{
		Username:     cfg.Admin.Username,
		PasswordHash: cfg.Admin.PasswordHash,
		JWTSecret:    cfg.Admin.JWTSecret,
		TokenTTL:     cfg.Admin.TokenTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize admin auth: %w", err)
	}

	files, err := storage.NewLocalFileStorage(cfg.Upload.Dir, logger,
		storage.WithMaxSize(cfg.Upload.MaxSize),
		storage.WithAllowedTypes(cfg.Upload.AllowedTypes),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize upload storage: %w", err)
	}

	workers := worker.NewWorkerManager(logger)
	if appCache != nil {
		workers.Register(worker.NewCacheJanitor(appCache, cfg.Cache.Schedule, logger))
	}
	if err := workers.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	defer func() {
		if err := workers.StopAll(); err != nil {
			logger.Error("Failed to stop workers", zap.Error(err))
		}
	}()

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	httpserver.Version = version
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Mode:            cfg.Server.Mode,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		MaxUploadSize:   files.MaxSize(),
		MetricsPath:     metricsPath,
		RateLimit: httpserver.RateLimitConfig{
			Enabled:           cfg.RateLimit.Enabled,
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		},
	}, httpserver.Dependencies{
		Applications: applications,
		Auth:         authenticator,
		Files:        files,
		Exporter:     export.NewExcelExporter(loc, logger),
		Metrics:      m,
		HealthCheck:  healthCheck,
		Location:     loc,
	}, kv)

	return server.Start(ctx)
}

func newMailer(cfg *config.Config, logger *zap.Logger) port.Mailer {
	e := cfg.Notify.Email
	if !e.Enabled {
		return nil
	}
	return mail.NewSMTPMailer(mail.Config{
		Host:     e.Host,
		Port:     e.Port,
		Username: e.Username,
		Password: e.Password,
		From:     e.From,
		FromName: e.FromName,
	}, logger)
}

func newSMSSender(cfg *config.Config, logger *zap.Logger) port.SMSSender {
	s := cfg.Notify.SMS
	if !s.Enabled {
		return nil
	}
	return solapi.NewClient(solapi.Config{
		APIKey:    s.APIKey,
		APISecret: s.APISecret,
		From:      s.From,
		Subject:   s.Subject,
		BaseURL:   s.BaseURL,
		Timeout:   s.Timeout,
	}, logger)
}

func newAlerter(cfg *config.Config, logger *zap.Logger) port.StaffAlerter {
	l := cfg.Notify.Lark
	if !l.Enabled {
		return nil
	}
	sdk := lark.NewSDKClient(lark.Config{
		AppID:     l.AppID,
		AppSecret: l.AppSecret,
		ChatID:    l.ChatID,
		BaseURL:   l.BaseURL,
	}, logger)
	return lark.NewMessenger(sdk, logger)
}
