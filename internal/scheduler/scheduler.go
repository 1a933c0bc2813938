// Package scheduler re-runs the recurrence and auto-pay passes on a timer,
// independent of the host application's foreground lifecycle. The passes'
// own idempotency guards, not the tick rate, are what keep the ledger
// correct; ticking twice in a period creates nothing extra.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/omarfs/mizania/internal/service"
)

// Scheduler drives periodic ledger maintenance.
type Scheduler struct {
	materializer *service.Materializer
	autopay      *service.AutoPay
	interval     time.Duration
	log          *zap.Logger
}

func New(materializer *service.Materializer, autopay *service.AutoPay, interval time.Duration, log *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{materializer: materializer, autopay: autopay, interval: interval, log: log}
}

// Run ticks until ctx is canceled. Each tick is failure-isolated the same
// way the startup pass is.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if n, err := s.materializer.ProcessRecurringTransactions(ctx); err != nil {
		s.log.Error("scheduled recurrence pass failed", zap.Error(err))
	} else if n > 0 {
		s.log.Info("scheduled recurrence pass", zap.Int("created", n))
	}

	if n, err := s.autopay.EvaluateDebtAutoPay(ctx); err != nil {
		s.log.Error("scheduled auto-pay pass failed", zap.Error(err))
	} else if n > 0 {
		s.log.Info("scheduled auto-pay pass", zap.Int("posted", n))
	}
}
