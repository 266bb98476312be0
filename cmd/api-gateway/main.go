package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	_ "github.com/noah-isme/timeblock-api/api/swagger"
	"github.com/noah-isme/timeblock-api/internal/external"
	"github.com/noah-isme/timeblock-api/internal/handler"
	"github.com/noah-isme/timeblock-api/internal/repository"
	"github.com/noah-isme/timeblock-api/internal/service"
	"github.com/noah-isme/timeblock-api/internal/session"
	"github.com/noah-isme/timeblock-api/pkg/cache"
	"github.com/noah-isme/timeblock-api/pkg/config"
	"github.com/noah-isme/timeblock-api/pkg/database"
	"github.com/noah-isme/timeblock-api/pkg/jobs"
	"github.com/noah-isme/timeblock-api/pkg/logger"
	"github.com/noah-isme/timeblock-api/pkg/storage"
)

// @title Time Block API
// @version 1.0.0
// @description Time blocks, category filters, analytics and external calendars per authenticated user.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metricsSvc := service.NewMetricsService()
	checks := make(map[string]handler.Pinger)

	var redisClient *redis.Client
	if cfg.State.Backend == config.StateBackendRedis || cfg.Analytics.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close() //nolint:errcheck
		redisClient = client
		checks["redis"] = cache.Pinger{Client: client}
	}

	stateRepo, closeState, err := buildStateRepository(cfg, redisClient, checks)
	if err != nil {
		return err
	}
	defer closeState()

	manager := session.NewManager(stateRepo, session.ManagerConfig{
		Seed:          cfg.State.SeedOnCreate,
		IdleTimeout:   cfg.State.IdleTimeout,
		JanitorSpec:   cfg.State.FlushSchedule,
		Logger:        logr.Named("session"),
		OnActiveCount: metricsSvc.SetActiveSessions,
		OnSave:        metricsSvc.ObserveStateSave,
	})
	stopJanitor, err := manager.StartJanitor(ctx)
	if err != nil {
		return err
	}
	defer stopJanitor()

	var cacheRepo service.CacheRepository
	if cfg.Analytics.CacheEnabled {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr, cfg.Analytics.CacheEnabled)

	validate := validator.New()
	authSvc := service.NewAuthService(manager, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
	})
	timeBlockSvc := service.NewTimeBlockService(manager, cacheSvc, validate, logr)
	filterSvc := service.NewFilterService(manager, cacheSvc, logr)
	preferenceSvc := service.NewPreferenceService(manager, validate, logr)
	analyticsSvc := service.NewAnalyticsService(manager, cacheSvc, metricsSvc, logr)

	calendarCfg := service.CalendarConfig{ExternalEnabled: cfg.External.Enabled, WindowPadding: cfg.External.WindowPadding}
	calendarSvc := service.NewCalendarService(manager, nil, nil, calendarCfg, logr)
	if cfg.External.Enabled {
		providers, err := buildProviders(ctx, cfg, logr)
		if err != nil {
			return err
		}
		if len(providers) == 0 {
			logr.Warn("external calendars enabled but no provider configured")
		} else {
			worker := service.NewExternalRefreshWorker(manager, external.NewMultiProvider(providers...), metricsSvc, cfg.External.FetchTimeout, logr.Named("external"))
			queue := jobs.NewQueue("external-refresh", worker.Handle, jobs.QueueConfig{
				Workers:    cfg.External.Workers,
				BufferSize: cfg.External.QueueSize,
				MaxRetries: cfg.External.MaxRetries,
				RetryDelay: cfg.External.RetryDelay,
				Logger:     logr,
				OnDrop:     worker.Drop,
			})
			queue.Start(ctx)
			defer queue.Stop()
			calendarSvc = service.NewCalendarService(manager, queue, worker, calendarCfg, logr)
		}
	}

	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc, nil)
	if cfg.Exports.Enabled {
		files, err := storage.NewLocalStorage(cfg.Exports.Dir)
		if err != nil {
			return err
		}
		signer := storage.NewDownloadSigner(cfg.Exports.SigningSecret, cfg.Exports.ResultTTL)
		exportSvc := service.NewExportService(analyticsSvc, files, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.ResultTTL,
		}, logr)
		stopCleanup, err := scheduleExportCleanup(cfg.Exports.CleanupSchedule, exportSvc, logr)
		if err != nil {
			return err
		}
		defer stopCleanup()
		analyticsHandler = handler.NewAnalyticsHandler(analyticsSvc, exportSvc)
	}

	router := newRouter(cfg, logr, routerDeps{
		metrics:     metricsSvc,
		auth:        authSvc,
		health:      handler.NewMetricsHandler(metricsSvc, checks),
		categories:  handler.NewCategoryHandler(),
		timeBlocks:  handler.NewTimeBlockHandler(timeBlockSvc),
		filters:     handler.NewFilterHandler(filterSvc),
		calendar:    handler.NewCalendarHandler(calendarSvc),
		analytics:   analyticsHandler,
		preferences: handler.NewPreferenceHandler(preferenceSvc),
		authHandler: handler.NewAuthHandler(authSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("state_backend", cfg.State.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildStateRepository(cfg *config.Config, redisClient *redis.Client, checks map[string]handler.Pinger) (session.StateRepository, func(), error) {
	noop := func() {}
	switch cfg.State.Backend {
	case config.StateBackendRedis:
		return repository.NewRedisStateRepository(redisClient, cfg.State.RootKey), noop, nil
	case config.StateBackendPostgres:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewSQLStateRepository(db, cfg.State.RootKey)
		checks["postgres"] = repo
		return repo, func() { _ = db.Close() }, nil
	case config.StateBackendSQLite:
		db, err := database.NewSQLite(cfg.SQLite)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewSQLStateRepository(db, cfg.State.RootKey)
		checks["sqlite"] = repo
		return repo, func() { _ = db.Close() }, nil
	default:
		return repository.NewMemoryStateRepository(cfg.State.RootKey), noop, nil
	}
}

func buildProviders(ctx context.Context, cfg *config.Config, logr *zap.Logger) ([]external.Provider, error) {
	breakerCfg := external.BreakerConfig{
		Timeout:          cfg.External.BreakerTimeout,
		FailureThreshold: cfg.External.BreakerThreshold,
		MinRequests:      cfg.External.BreakerMinCalls,
	}
	var providers []external.Provider

	if cfg.Google.Enabled {
		creds, err := os.ReadFile(cfg.Google.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read google credentials: %w", err)
		}
		google, err := external.NewGoogleProvider(ctx, creds, cfg.Google.CalendarID)
		if err != nil {
			return nil, err
		}
		providers = append(providers, external.NewBreakerProvider(google, breakerCfg, logr))
	}

	client := &http.Client{Timeout: cfg.ICS.Timeout}
	for _, feed := range cfg.ICS.Feeds {
		ics := external.NewICSProvider(external.ICSFeed{Name: feed.Name, URL: feed.URL}, client, logr)
		providers = append(providers, external.NewBreakerProvider(ics, breakerCfg, logr))
	}

	for _, p := range providers {
		logr.Info("external calendar provider registered", zap.String("provider", p.Name()))
	}
	return providers, nil
}

func scheduleExportCleanup(spec string, exports *service.ExportService, logr *zap.Logger) (func(), error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if _, err := exports.Cleanup(); err != nil {
			logr.Warn("export cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule export cleanup: %w", err)
	}
	c.Start()
	return func() { <-c.Stop().Done() }, nil
}
