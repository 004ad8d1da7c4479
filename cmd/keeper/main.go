package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"SeriesKeeper/internal/cache"
	"SeriesKeeper/internal/collector"
	"SeriesKeeper/internal/config"
	"SeriesKeeper/internal/model"
	"SeriesKeeper/internal/notifier"
	"SeriesKeeper/internal/recorder"
	"SeriesKeeper/internal/scheduler"
	"SeriesKeeper/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] SeriesKeeper starting...")

	// Load config
	config.LoadDotenv()
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}
	epoch, _ := cfg.EpochDay()

	// Init fetchers
	prices := collector.NewCryptoCompareFetcher(cfg.PriceSource.BaseURL, cfg.PriceSource.APIKey,
		cfg.PriceSource.PageSize, epoch, cfg.Proxy)
	metrics := collector.NewCoinMetricsFetcher(cfg.MetricsSource.BaseURL, cfg.MetricsSource.PageSize, epoch, cfg.Proxy)
	log.Printf("[INFO] data sources: %s, %s", prices.Name(), metrics.Name())

	// Init recorder
	var rec recorder.Recorder
	if cfg.Store.AuditSQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Store.AuditSQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Init cache
	svc := cache.NewService(
		cache.NewCoordinator(model.PriceSchema, cache.PriceSource(prices),
			store.NewFileStore(cfg.Store.DataDir, model.PriceSchema),
			cache.Options{FreshnessLagDays: cfg.PriceSource.FreshnessLagDays, FetchTimeout: cfg.Fetch.Timeout, Recorder: rec}),
		cache.NewCoordinator(model.MetricSchema, cache.MetricSource(metrics),
			store.NewFileStore(cfg.Store.DataDir, model.MetricSchema),
			cache.Options{FreshnessLagDays: cfg.MetricsLagDays(), FetchTimeout: cfg.Fetch.Timeout, Recorder: rec}),
	)
	log.Printf("[INFO] caching %d price and %d metric series in %s",
		len(cfg.Series.Prices), len(cfg.Series.Metrics), cfg.Store.DataDir)

	// Init Telegram notifier
	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
	var alerts scheduler.Sender
	if tn != nil {
		alerts = tn
	} else {
		log.Println("[INFO] Telegram not configured, alerts disabled")
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, svc, cfg.PriceKeys(), cfg.MetricKeys(), alerts, rec)
	if err := sched.RegisterAll(cfg.Schedule.RefreshCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, refreshing all series now")
		go sched.RunRefreshNow()
	}

	log.Println("[INFO] SeriesKeeper is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] SeriesKeeper stopped")
}
