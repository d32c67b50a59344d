package workers

import (
	"context"
	"log"
	"time"

	"pcbazaar/reconcile"
)

// ReconcileWorker drains pending raw listings on an interval. Trigger()
// requests an immediate pass, used right after an ingest.
type ReconcileWorker struct {
	engine  *reconcile.Engine
	trigger chan struct{}
}

func NewReconcileWorker(engine *reconcile.Engine) *ReconcileWorker {
	return &ReconcileWorker{
		engine:  engine,
		trigger: make(chan struct{}, 1),
	}
}

// Trigger schedules a pass without blocking; a pending trigger coalesces.
func (w *ReconcileWorker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *ReconcileWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.trigger:
		}
		w.pass(ctx, batchSize)
	}
}

func (w *ReconcileWorker) pass(ctx context.Context, batchSize int) {
	for {
		run, err := w.engine.ProcessBatch(ctx, batchSize)
		if err != nil {
			log.Printf("Reconcile batch failed: %v", err)
			return
		}
		if run == nil {
			return
		}
		log.Printf("Reconcile run %d: processed=%d auto=%d escalated=%d created=%d requeued=%d errors=%d",
			run.ID, run.Processed, run.AutoMatched, run.Escalated, run.Created, run.Requeued, run.Errors)
		// A full batch means more may be waiting; keep draining. Requeued
		// listings stay pending, so stop once they are all that remains.
		if run.Processed < batchSize || run.Processed == run.Requeued {
			return
		}
	}
}
