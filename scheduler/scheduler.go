package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"pcbazaar/config"
	"pcbazaar/ingest"
	"pcbazaar/workers"
)

// Scheduler drives periodic ingest passes, by cron expression when one is
// configured, otherwise by plain interval. Each pass kicks the reconcile
// worker so fresh listings resolve promptly.
type Scheduler struct {
	cfg       *config.Config
	ingester  *ingest.Service
	reconcile *workers.ReconcileWorker

	cron   *cron.Cron
	cancel context.CancelFunc
}

func New(cfg *config.Config, ingester *ingest.Service, reconcile *workers.ReconcileWorker) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		ingester:  ingester,
		reconcile: reconcile,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	if expr := s.cfg.Scheduler.Cron; expr != "" {
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(expr, func() { s.runIngest(ctx) }); err != nil {
			return err
		}
		s.cron.Start()
		log.Printf("Scheduler: ingest on cron %q", expr)
		return nil
	}

	interval := s.cfg.Scheduler.Interval
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	go s.loop(ctx, interval)
	log.Printf("Scheduler: ingest every %s", interval)
	return nil
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runIngest(ctx)
		}
	}
}

func (s *Scheduler) runIngest(ctx context.Context) {
	start := time.Now()
	stats, err := s.ingester.RunAll(ctx)
	if err != nil {
		log.Printf("Scheduled ingest failed: %v", err)
		return
	}
	log.Printf("Scheduled ingest: %d vendors, %d listings, %d skipped, %d failed vendors in %s",
		stats.Vendors, stats.Inserted, stats.Skipped, stats.Failed, time.Since(start).Round(time.Millisecond))
	if stats.Inserted > 0 && s.reconcile != nil {
		s.reconcile.Trigger()
	}
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
}
