package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campuskit/timetable-api/internal/handler"
	"github.com/campuskit/timetable-api/internal/repository"
	"github.com/campuskit/timetable-api/internal/service"
	"github.com/campuskit/timetable-api/pkg/cache"
	"github.com/campuskit/timetable-api/pkg/config"
	"github.com/campuskit/timetable-api/pkg/database"
	"github.com/campuskit/timetable-api/pkg/export"
	"github.com/campuskit/timetable-api/pkg/jobs"
	"github.com/campuskit/timetable-api/pkg/logger"
	"github.com/campuskit/timetable-api/pkg/middleware/cors"
	"github.com/campuskit/timetable-api/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Sugar().Fatalw("server exited", "error", err)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	redisClient := cacheClient(cfg, log)

	seed := cfg.Scheduler.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	log.Sugar().Infow("scheduler seeded", "seed", seed)

	entries := repository.NewEntryRepository(db)
	subjects := repository.NewSubjectRepository(db)
	sessions := repository.NewSessionRepository(db)
	courses := repository.NewCourseRepository(db)
	rooms := repository.NewRoomRepository(db)
	staff := repository.NewStaffRepository(db)
	students := repository.NewStudentRepository(db)
	windows := repository.NewUnavailabilityRepository(db)
	extraSlots := repository.NewExtraSlotRepository(db)
	extraClasses := repository.NewExtraClassRepository(db)
	audits := repository.NewAuditRepository(db)
	notifications := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, cfg.Cache.ExtraSlotTTL, cfg.Cache.GridTTL)

	metrics := service.NewMetrics()
	dispatcher := service.NewDispatcher(notifications, students, audits, jobs.QueueConfig{
		Workers:    cfg.Dispatch.Workers,
		BufferSize: cfg.Dispatch.BufferSize,
		MaxRetries: cfg.Dispatch.MaxRetries,
		RetryDelay: cfg.Dispatch.RetryDelay,
		Logger:     log,
	}, log)

	suggester := service.NewSlotSuggester(entries, windows, rooms, rng, cfg.Scheduler.SuggestionLimit, log)
	validator := service.NewPlacementValidator(entries, subjects, windows, suggester)

	timetable := service.NewTimetableService(db, entries, subjects, validator, cacheRepo, dispatcher, metrics, log)
	generator := service.NewGeneratorService(db, entries, subjects, rooms, validator, cacheRepo, dispatcher, metrics, rng, log)
	unavailability := service.NewUnavailabilityService(db, windows, entries, extraSlots, staff, cacheRepo, dispatcher, log)
	extraSlotSvc := service.NewExtraSlotService(db, extraSlots, entries, subjects, validator, cacheRepo, dispatcher, metrics, log)
	extraClassSvc := service.NewExtraClassService(db, extraClasses, entries, subjects, extraSlots, validator, nil, cacheRepo, dispatcher, log)
	exports := service.NewExportService(timetable, subjects, staff, rooms, export.NewCSVExporter(), export.NewPDFExporter())
	catalog := service.NewCatalogService(sessions, courses, subjects, staff, rooms, audits, notifications)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	router := buildRouter(cfg, log, metrics,
		handler.NewTimetableHandler(timetable),
		handler.NewGeneratorHandler(generator),
		handler.NewUnavailabilityHandler(unavailability),
		handler.NewExtraSlotHandler(extraSlotSvc),
		handler.NewExtraClassHandler(extraClassSvc),
		handler.NewExportHandler(exports),
		handler.NewCatalogHandler(catalog),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Sugar().Infow("server listening", "port", cfg.Port, "env", cfg.Env)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

type registrar interface {
	Register(r *gin.RouterGroup)
}

func buildRouter(cfg *config.Config, log *zap.Logger, metrics *service.Metrics, handlers ...registrar) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.Middleware())
	router.Use(logger.GinMiddleware(log))
	router.Use(metrics.GinMiddleware())
	router.Use(cors.New(cfg.CORS.AllowedOrigins))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group(cfg.APIPrefix)
	for _, h := range handlers {
		h.Register(api)
	}
	return router
}

func cacheClient(cfg *config.Config, log *zap.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	client, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		log.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		return nil
	}
	return client
}
