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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/roster-api/api/swagger"
	"github.com/noah-isme/roster-api/internal/handler"
	"github.com/noah-isme/roster-api/internal/middleware"
	"github.com/noah-isme/roster-api/internal/models"
	"github.com/noah-isme/roster-api/internal/notify"
	"github.com/noah-isme/roster-api/internal/repository"
	"github.com/noah-isme/roster-api/internal/scanner"
	"github.com/noah-isme/roster-api/internal/service"
	"github.com/noah-isme/roster-api/pkg/cache"
	"github.com/noah-isme/roster-api/pkg/config"
	"github.com/noah-isme/roster-api/pkg/database"
	"github.com/noah-isme/roster-api/pkg/dateutil"
	"github.com/noah-isme/roster-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/roster-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/roster-api/pkg/middleware/requestid"
	"github.com/noah-isme/roster-api/pkg/qr"
)

// @title Roster API
// @version 1.0.0
// @description Student roster, attendance and QR scanning service
// @BasePath /api/v1
// @schemes http

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc := cfg.Location()
	metrics := service.NewMetricsService()
	checks := map[string]handler.ReadinessCheck{}

	store, closeStore, err := openStore(ctx, cfg, logr, checks)
	if err != nil {
		logr.Fatal("failed to open record store", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer closeStore()
	store = repository.NewInstrumentedStore(store, metrics)

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	if redisClient != nil {
		checks["redis"] = cacheRepo.Ping
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, redisClient != nil)

	notifications := service.NewNotificationService(buildNotifiers(ctx, cfg, logr), metrics, cfg.Notify.Workers, logr)
	notifications.Start(ctx)
	defer notifications.Stop()

	validate := service.NewValidator()
	students := service.NewStudentService(
		repository.NewStudentRepository(store, loc),
		service.NewRosterSnapshot(),
		cfg.Roster.SnapshotTTL,
		cacheSvc,
		notifications,
		validate,
		logr,
	)
	attendance := service.NewAttendanceService(repository.NewAttendanceRepository(store, loc), cacheSvc, notifications, validate, logr)
	dashboard := service.NewDashboardService(service.DashboardServiceParams{
		Roster:     students,
		Attendance: attendance,
		Cache:      cacheSvc,
		Logger:     logr,
		Config: service.DashboardServiceConfig{
			CacheTTL:     cfg.Dashboard.CacheTTL,
			AbsenteeCap:  cfg.Dashboard.AbsenteeCap,
			TopAttendees: cfg.Dashboard.TopAttendees,
			BirthdayDays: cfg.Dashboard.BirthdayDays,
			AgePolicy:    dateutil.ParsePolicy(cfg.Dashboard.AgePolicy),
			Location:     loc,
		},
	})
	exports := service.NewExportService(students, dashboard, logr, nil, nil)

	scans := service.NewScanService(scanner.NewHub(), qr.NewDecoder(0), attendance, notifications, metrics, service.ScanServiceConfig{
		FPS:            cfg.Scanner.FPS,
		MaxFrameBytes:  cfg.Scanner.MaxFrameBytes,
		Retention:      cfg.Scanner.Retention,
		SessionTimeout: cfg.Scanner.SessionTimeout,
	}, logr)
	scans.Start(ctx)
	defer scans.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	routes := handler.Routes{
		Students:   handler.NewStudentHandler(students, exports),
		Attendance: handler.NewAttendanceHandler(attendance),
		Dashboard:  handler.NewDashboardHandler(dashboard, exports),
		Scan:       handler.NewScanHandler(scans),
		Metrics:    handler.NewMetricsHandler(metrics, checks),
		FrameLimit: middleware.RateLimit(middleware.NewTokenBucket(0, cfg.Scanner.RateLimitPerMin)),
	}
	if cfg.JWT.Enabled {
		routes.Auth = middleware.JWT(middleware.NewTokenVerifier(cfg.JWT))
	}
	routes.Register(r, cfg.APIPrefix)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, logr *zap.Logger, checks map[string]handler.ReadinessCheck) (repository.RecordStore, func(), error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		checks["store"] = db.PingContext
		return repository.NewPostgresStore(db), func() { _ = db.Close() }, nil
	case config.StoreFirestore:
		fs, err := repository.NewFirestoreStore(ctx, cfg.Firestore)
		if err != nil {
			return nil, nil, err
		}
		checks["store"] = func(ctx context.Context) error {
			_, err := fs.Get(ctx, models.CollectionStudents, "_readiness")
			if errors.Is(err, repository.ErrDocumentNotFound) {
				return nil
			}
			return err
		}
		return fs, func() { _ = fs.Close() }, nil
	case config.StoreMemory, "":
		logr.Warn("using in-memory record store, data is lost on restart")
		return repository.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func buildNotifiers(ctx context.Context, cfg *config.Config, logr *zap.Logger) []service.Notifier {
	notifiers := []service.Notifier{notify.NewLogNotifier(logr)}
	if !cfg.Notify.EmailEnabled {
		return notifiers
	}
	ses, err := notify.NewSESNotifier(ctx, cfg.Notify, logr)
	if err != nil {
		logr.Warn("ses notifier disabled", zap.Error(err))
		return notifiers
	}
	return append(notifiers, ses)
}
