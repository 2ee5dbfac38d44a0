package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"nightlight/app"
	"nightlight/config"
	"nightlight/jobqueue"
	"nightlight/notify"
	"nightlight/server"
	"nightlight/store"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	templates := notify.DefaultTemplates()
	if cfg.TemplatesPath != "" {
		templates, err = notify.LoadTemplates(cfg.TemplatesPath)
		if err != nil {
			logger.Fatal("load notification templates", zap.Error(err))
		}
	}
	if err := templates.Validate(); err != nil {
		logger.Fatal("invalid notification templates", zap.Error(err))
	}

	dbpool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("pgxpool", zap.Error(err))
	}
	defer dbpool.Close()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer rdb.Close()
	}

	st := store.NewPostgresStore(dbpool)
	queue := jobqueue.NewQueue(dbpool)
	notifier := notify.New(st, rdb, cfg.PushGatewayURL, templates, logger.Named("notify"))
	application := app.New(st, queue, notifier, logger.Named("app"))

	worker := jobqueue.NewWorker(dbpool, application.HandlerFunc(), jobqueue.WorkerConfig{
		Concurrency:     cfg.WorkerConcurrency,
		PollInterval:    cfg.WorkerPollEvery,
		LeaseDuration:   cfg.LeaseDuration,
		RetainSucceeded: cfg.JobRetention,
		RetainDead:      cfg.JobRetention,
		Logger:          zap.NewStdLog(logger.Named("jobqueue")),
	})

	srv := server.New(application, queue, logger.Named("http"))
	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: srv.Router(),
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt)

	wg := sync.WaitGroup{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wg.Go(func() {
		logger.Info("starting job queue worker")
		worker.Run(ctx)
		logger.Info("job queue worker stopped")
	})

	wg.Go(func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
		}
		logger.Info("http server stopped")
	})

	<-stopChan
	logger.Info("shutting down")

	go func() {
		<-stopChan
		logger.Warn("force shutdown")
		os.Exit(1)
	}()

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}

	wg.Wait()
}
