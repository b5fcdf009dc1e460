package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	tele "gopkg.in/telebot.v3"

	"taxidispatch/config"
	"taxidispatch/pkg/api"
	"taxidispatch/pkg/bot"
	"taxidispatch/pkg/jobs"
	"taxidispatch/pkg/logger"
	"taxidispatch/pkg/metrics"
	"taxidispatch/service"
	"taxidispatch/storage"
	"taxidispatch/storage/memory"
	"taxidispatch/storage/postgres"
)

func main() {
	// 1. Config and logger
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)

	// 2. Storage
	stg, err := newStorage(cfg, log)
	if err != nil {
		log.Error("failed to initialize storage", logger.Error(err))
		os.Exit(1)
	}
	defer stg.Close()

	// 3. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	settings := config.NewSettings(cfg)
	runner := service.NewAsyncRunner(log, 0)

	// 4. Telegram. Without a token notifications are dropped and logged.
	var (
		notifier service.Notifier = service.NopNotifier{}
		teleBot  *bot.Bot
	)
	tb, err := newTelegram(cfg, log)
	if err != nil {
		log.Error("failed to initialize telegram bot", logger.Error(err))
		os.Exit(1)
	}
	if tb != nil {
		notifier = bot.NewNotifier(tb)
	}

	svc := service.New(service.Options{
		Storage:  stg,
		Notifier: notifier,
		Settings: settings,
		Tasks:    runner,
		Metrics:  m,
		Log:      log,
	})

	if tb != nil {
		teleBot = bot.New(tb, cfg, svc, settings, log)
		go teleBot.Start()
	}

	// 5. Reconciler schedule
	reconcileJob := jobs.NewReconcileJob(svc.Reconciler(), cfg.ReconcileSchedule, log)
	if err := reconcileJob.Start(); err != nil {
		log.Error("failed to start reconcile job", logger.Error(err))
		os.Exit(1)
	}

	// 6. HTTP API
	srv := api.NewServer(cfg, api.NewRouter(cfg, svc, reg, log))
	go func() {
		log.Info("🚀 HTTP API listening", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server stopped", logger.Error(err))
			os.Exit(1)
		}
	}()

	// 7. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown failed", logger.Error(err))
	}
	if teleBot != nil {
		teleBot.Stop()
	}
	reconcileJob.Stop()
	runner.Wait()

	log.Info("Stopped")
}

func newStorage(cfg config.Config, log logger.ILogger) (storage.IStorage, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		log.Warning("using in-memory storage, data is lost on restart")
		return memory.New(), nil
	case config.StorageDriverPostgres:
		pg, err := postgres.New(context.Background(), cfg, log)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	return nil, errors.New("unknown STORAGE_DRIVER " + cfg.StorageDriver)
}

func newTelegram(cfg config.Config, log logger.ILogger) (*tele.Bot, error) {
	if cfg.TelegramBotToken == "" {
		log.Warning("TG_BOT_TOKEN is not set, telegram notifications are disabled")
		return nil, nil
	}
	return bot.NewTelegram(cfg)
}
