package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gopkg.in/tomb.v2"
)

const (
	defaultQuotaResetInterval     = time.Minute
	defaultLikesReconcileInterval = 15 * time.Minute
	maintenanceTaskTimeout        = 30 * time.Second
)

type quotaResetter interface {
	ResetDue(ctx context.Context) (int64, error)
}

type likesReconciler interface {
	ReconcileLikes(ctx context.Context) (int64, error)
}

// MaintenanceWorker periodically applies due quota resets and repairs
// likes_count drift. One goroutine per task, both owned by the tomb.
type MaintenanceWorker struct {
	tomb    tomb.Tomb
	started bool

	quotas            quotaResetter
	likes             likesReconciler
	resetInterval     time.Duration
	reconcileInterval time.Duration
	logger            *zap.Logger
}

func NewMaintenanceWorker(
	quotas quotaResetter,
	likes likesReconciler,
	resetInterval time.Duration,
	reconcileInterval time.Duration,
	logger *zap.Logger,
) *MaintenanceWorker {
	if resetInterval <= 0 {
		resetInterval = defaultQuotaResetInterval
	}
	if reconcileInterval <= 0 {
		reconcileInterval = defaultLikesReconcileInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceWorker{
		quotas:            quotas,
		likes:             likes,
		resetInterval:     resetInterval,
		reconcileInterval: reconcileInterval,
		logger:            logger,
	}
}

// Start runs both tasks once immediately and then on their tickers.
func (w *MaintenanceWorker) Start() {
	if w.started {
		return
	}
	w.started = true
	w.tomb.Go(func() error {
		if w.quotas != nil {
			w.tomb.Go(func() error {
				return w.loop("quota_reset", w.resetInterval, w.quotas.ResetDue)
			})
		}
		if w.likes != nil {
			w.tomb.Go(func() error {
				return w.loop("likes_reconcile", w.reconcileInterval, w.likes.ReconcileLikes)
			})
		}
		<-w.tomb.Dying()
		return nil
	})
}

// Stop signals the tasks to exit and waits for them.
func (w *MaintenanceWorker) Stop() error {
	if !w.started {
		return nil
	}
	w.tomb.Kill(nil)
	return w.tomb.Wait()
}

func (w *MaintenanceWorker) loop(name string, interval time.Duration, task func(ctx context.Context) (int64, error)) error {
	ctx := w.tomb.Context(context.Background())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		w.run(ctx, name, task)

		select {
		case <-w.tomb.Dying():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *MaintenanceWorker) run(ctx context.Context, name string, task func(ctx context.Context) (int64, error)) {
	taskCtx, cancel := context.WithTimeout(ctx, maintenanceTaskTimeout)
	defer cancel()

	count, err := task(taskCtx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Error("maintenance task failed", zap.String("task", name), zap.Error(err))
		return
	}
	w.logger.Debug("maintenance task done", zap.String("task", name), zap.Int64("affected", count))
}
