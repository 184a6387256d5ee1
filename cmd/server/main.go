package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/banjarejo/greensmart/internal/config"
	"github.com/banjarejo/greensmart/internal/repository"
	"github.com/banjarejo/greensmart/internal/repository/memory"
	"github.com/banjarejo/greensmart/internal/repository/mongodb"
	"github.com/banjarejo/greensmart/internal/repository/sheets"
	"github.com/banjarejo/greensmart/internal/scheduler"
	"github.com/banjarejo/greensmart/internal/server/router"
	"github.com/banjarejo/greensmart/internal/service/ledger"
	"github.com/banjarejo/greensmart/internal/service/reporting"
	"github.com/banjarejo/greensmart/internal/service/session"
	"github.com/banjarejo/greensmart/pkg/clients/webhook"
	"github.com/banjarejo/greensmart/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New())
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	var store repository.Store
	switch cfg.Store.Driver {
	case config.DriverMemory:
		store = memory.New()
		baseLogger.Warn("using in-memory store, records will not survive a restart")
	default:
		mongoStore, err := mongodb.New(context.Background(), cfg.MongoDB.URI, cfg.MongoDB.DBName, baseLogger.Named("repo.mongodb"))
		if err != nil {
			baseLogger.Fatal("failed to init mongodb store", zap.Error(err))
		}
		store = mongoStore
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close store", zap.Error(err))
		}
	}()

	codes, err := ledger.NewCodeGenerator(cfg.Store.NodeID)
	if err != nil {
		baseLogger.Fatal("failed to init code generator", zap.Error(err))
	}

	sessions := session.NewManager(store, codes, cfg.Auth, baseLogger.Named("svc.session"))
	defer sessions.Shutdown()

	reportingSvc := reporting.NewService(store, baseLogger.Named("svc.reporting"))
	notifier := webhook.NewClient(cfg.Webhook)

	var mirror sheets.Mirror
	if cfg.SheetsEnabled() {
		mirror, err = sheets.NewGoogleSheetMirror(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets mirror", zap.Error(err))
		}
	} else {
		baseLogger.Info("spreadsheet mirror disabled")
	}

	engine := router.New(sessions, baseLogger.Named("router"))

	sched := scheduler.NewScheduler(*cfg, reportingSvc, notifier, mirror, baseLogger.Named("scheduler"))
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE streams stay open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
