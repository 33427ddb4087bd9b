package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harshitk-cp/doxa/internal/api"
	"github.com/Harshitk-cp/doxa/internal/buildconfig"
	"github.com/Harshitk-cp/doxa/internal/config"
	"github.com/Harshitk-cp/doxa/internal/queue"
	"github.com/Harshitk-cp/doxa/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}

	logger, err := newLogger(config.LogLevel())
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("doxa starting",
		zap.String("version", buildconfig.Version()),
		zap.String("commit", buildconfig.Commit()),
		zap.String("built", buildconfig.Date()))

	driver := config.DatabaseDriver()
	dsn := config.DatabasePath()
	if driver == store.DialectPostgres {
		dsn = config.DatabaseURL()
		if dsn == "" {
			logger.Fatal("DATABASE_URL is required for the postgres driver")
		}
	}

	db, err := store.Open(driver, dsn)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer func() { _ = db.Close() }()
	logger.Info("store opened", zap.String("driver", driver))

	q, err := queue.Open(queue.Options{
		Dir:          config.QueueDir(),
		MinBatchSize: config.MinBatchSize(),
		MaxBatchSize: config.MaxBatchSize(),
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal("failed to open queue", zap.Error(err))
	}
	defer func() { _ = q.Close() }()

	app, err := api.NewApp(db, q, logger)
	if err != nil {
		logger.Fatal("failed to wire services", zap.Error(err))
	}

	app.Start()

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:    addr,
		Handler: app.Router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down")

	// Producers stop first: once the listener drains, nothing new reaches
	// the queue and the pipeline can flush what remains.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	app.Stop()

	logger.Info("server stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
