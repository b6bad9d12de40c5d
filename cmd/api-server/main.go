package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/clinicbase/scheduling-engine/internal/api"
	"github.com/clinicbase/scheduling-engine/internal/config"
	"github.com/clinicbase/scheduling-engine/internal/db"
	"github.com/clinicbase/scheduling-engine/internal/notify"
	redisclient "github.com/clinicbase/scheduling-engine/internal/redis"
	"github.com/clinicbase/scheduling-engine/internal/scheduling"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	var logger *zap.Logger
	if cfg.Env == "prod" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic("logger init error: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("schedule_tz", cfg.ScheduleTZ),
		zap.Int("granularity_minutes", cfg.GranularityMinutes),
		zap.Bool("allow_unconfigured_doctors", cfg.AllowUnconfiguredDoctors),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, db.Options{
		DSN:      cfg.PostgresDSN,
		MaxConns: cfg.PgMaxConns,
		MinConns: cfg.PgMinConns,
	})
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.Connect(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		PoolSize: cfg.RedisPoolSize,
	})
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()
	logger.Info("connected to Redis")

	repo := scheduling.NewPgRepository(pgPool)
	locker := redisclient.NewDoctorLocker(rdb, cfg.LockTTL, cfg.LockRetryInterval)
	resolver := scheduling.NewResolver(repo, scheduling.ResolverOptions{
		Location:           cfg.ScheduleLocation,
		GranularityMinutes: cfg.GranularityMinutes,
		AllowUnconfigured:  cfg.AllowUnconfiguredDoctors,
	})
	guard := scheduling.NewConflictGuard(repo, locker, resolver)
	dispatcher := notify.NewLogDispatcher(logger)

	bookings := scheduling.NewBookingService(repo, guard, resolver, dispatcher, logger)
	schedule := scheduling.NewScheduleService(repo)

	router := api.NewRouter(api.RouterConfig{
		Bookings: bookings,
		Schedule: schedule,
		PgPool:   pgPool,
		Redis:    rdb,
		Logger:   logger,
		Env:      cfg.Env,
		Version:  version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	case <-rootCtx.Done():
	}

	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}
