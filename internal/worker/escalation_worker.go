package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/commerce-support/internal/service"
)

// EscalationWorker periodically sweeps open tickets that have gone
// stale and escalates them. One sweep runs at a time; the worker stops
// when its context is cancelled.
type EscalationWorker struct {
	tickets  *service.TicketService
	interval time.Duration
	logger   *zap.Logger
}

// NewEscalationWorker constructs the worker.
func NewEscalationWorker(tickets *service.TicketService, interval time.Duration, logger *zap.Logger) *EscalationWorker {
	return &EscalationWorker{tickets: tickets, interval: interval, logger: logger}
}

// Start launches the sweep loop in its own goroutine.
func (w *EscalationWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *EscalationWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("escalation worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *EscalationWorker) sweep(ctx context.Context) {
	escalated, err := w.tickets.EscalateStale(ctx)
	if err != nil {
		w.logger.Error("escalation sweep failed", zap.Error(err))
		return
	}
	if escalated > 0 {
		w.logger.Info("escalation sweep", zap.Int("escalated", escalated))
	}
}
