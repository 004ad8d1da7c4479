package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"SeriesKeeper/internal/cache"
	"SeriesKeeper/internal/model"
	"SeriesKeeper/internal/notifier"
	"SeriesKeeper/internal/recorder"

	"github.com/robfig/cron/v3"
)

// Sender delivers alert messages. *notifier.TelegramNotifier implements it.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler refreshes every configured series on a cron schedule and
// answers chat commands about the cache.
type Scheduler struct {
	Cron       *cron.Cron
	Service    *cache.Service
	PriceKeys  []model.Key
	MetricKeys []model.Key
	// Alerts is nil when no chat is configured.
	Alerts   Sender
	Recorder recorder.Recorder
	Ctx      context.Context
	Now      func() time.Time

	running sync.Mutex
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, svc *cache.Service, priceKeys, metricKeys []model.Key, alerts Sender, rec recorder.Recorder) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron:       cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		Service:    svc,
		PriceKeys:  priceKeys,
		MetricKeys: metricKeys,
		Alerts:     alerts,
		Recorder:   rec,
		Ctx:        ctx,
		Now:        time.Now,
	}
}

// RegisterAll registers the daily refresh task. The expression is evaluated
// in UTC, the same calendar that decides freshness.
func (s *Scheduler) RegisterAll(refreshCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for a running task to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunRefreshNow executes the refresh task immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunRefreshNow() {
	s.refreshTask()
}

// RefreshAll accesses every configured series concurrently and returns one
// report per series, prices first, in configuration order.
func (s *Scheduler) RefreshAll(ctx context.Context) []model.RefreshReport {
	reports := make([]model.RefreshReport, len(s.PriceKeys)+len(s.MetricKeys))
	var wg sync.WaitGroup
	for i, key := range s.PriceKeys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := s.Service.Prices.GetSeries(ctx, key)
			reports[i] = res.Report
		}()
	}
	for i, key := range s.MetricKeys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := s.Service.Metrics.GetSeries(ctx, key)
			reports[len(s.PriceKeys)+i] = res.Report
		}()
	}
	wg.Wait()

	for i, r := range reports {
		if r.Outcome == "" {
			// Lock wait was cancelled before the cycle started.
			r.Outcome = model.OutcomeError
			r.Err = "refresh cancelled"
			if i < len(s.PriceKeys) {
				r.Kind, r.Key = model.PriceSchema.Name, s.PriceKeys[i]
			} else {
				r.Kind, r.Key = model.MetricSchema.Name, s.MetricKeys[i-len(s.PriceKeys)]
			}
			reports[i] = r
		}
	}
	return reports
}

func (s *Scheduler) refreshTask() {
	if !s.running.TryLock() {
		log.Println("[WARN] refresh already running, skipping")
		return
	}
	defer s.running.Unlock()

	log.Println("[INFO] running refresh task")
	start := s.Now()
	reports := s.RefreshAll(s.Ctx)

	degraded := 0
	for _, r := range reports {
		if r.Degraded() {
			degraded++
			log.Printf("[WARN] %s %s: %s: %s", r.Kind, r.Key, r.Outcome, r.Err)
		}
	}
	log.Printf("[INFO] refresh task done: %d series, %d degraded, took %v",
		len(reports), degraded, s.Now().Sub(start).Round(time.Millisecond))

	if msg := notifier.FormatRefreshAlert(reports, start); msg != "" {
		s.trySend(msg)
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	switch command {
	case "查看状态", "/status":
		reports, err := s.Recorder.LastRefreshes()
		if err != nil {
			log.Printf("[ERROR] load last refreshes: %v", err)
			return fmt.Sprintf("❌ 读取刷新记录失败: %v", err)
		}
		return notifier.FormatStatus(reports)
	case "立即刷新", "/refresh":
		if !s.running.TryLock() {
			return "⏳ 刷新正在进行中"
		}
		defer s.running.Unlock()
		return notifier.FormatStatus(s.RefreshAll(ctx))
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Alerts == nil {
		return
	}
	if err := s.Alerts.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
