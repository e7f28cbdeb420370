package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/user-provisioning/internal/config"
	"github.com/spec-kit/user-provisioning/internal/domain"
)

// Deregistrar removes an identity from the external provider. The call must
// be idempotent; the queue delivers at least once.
type Deregistrar interface {
	Deregister(ctx context.Context, authID string) error
}

// OrphanSource is the consumer side of the compensation queue.
type OrphanSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*domain.OrphanIdentity, error)
	Enqueue(ctx context.Context, orphan domain.OrphanIdentity) error
}

// ReconciliationWorker drains the orphan queue and deregisters identities
// whose local persistence failed after external registration succeeded.
type ReconciliationWorker struct {
	queue          OrphanSource
	registrar      Deregistrar
	logger         *zap.Logger
	dequeueTimeout time.Duration
	requeueDelay   time.Duration
}

// NewReconciliationWorker builds the worker from reconciler configuration.
func NewReconciliationWorker(queue OrphanSource, registrar Deregistrar, logger *zap.Logger, cfg config.ReconcilerConfig) *ReconciliationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	dequeueTimeout := time.Duration(cfg.DequeueTimeoutSec) * time.Second
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5 * time.Second
	}
	requeueDelay := time.Duration(cfg.RequeueDelaySeconds) * time.Second
	if requeueDelay <= 0 {
		requeueDelay = 10 * time.Second
	}
	return &ReconciliationWorker{
		queue:          queue,
		registrar:      registrar,
		logger:         logger,
		dequeueTimeout: dequeueTimeout,
		requeueDelay:   requeueDelay,
	}
}

// Run processes tasks until the context is canceled.
func (w *ReconciliationWorker) Run(ctx context.Context) {
	w.logger.Info("reconciliation worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reconciliation worker stopped")
			return
		default:
		}
		w.ProcessNext(ctx)
	}
}

// ProcessNext handles at most one task: dequeue, deregister, requeue on
// failure. A timed-out dequeue is a no-op.
func (w *ReconciliationWorker) ProcessNext(ctx context.Context) {
	orphan, err := w.queue.Dequeue(ctx, w.dequeueTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Warn("dequeue failed", zap.Error(err))
		w.sleep(ctx, w.requeueDelay)
		return
	}
	if orphan == nil {
		return
	}

	if err := w.registrar.Deregister(ctx, orphan.AuthID); err != nil {
		w.logger.Warn("deregister failed; requeueing orphan",
			zap.String("auth_id", orphan.AuthID),
			zap.Error(err))
		if err := w.queue.Enqueue(ctx, *orphan); err != nil {
			w.logger.Error("requeue failed; orphan dropped",
				zap.String("auth_id", orphan.AuthID),
				zap.Error(err))
		}
		w.sleep(ctx, w.requeueDelay)
		return
	}

	w.logger.Info("orphaned identity deregistered",
		zap.String("auth_id", orphan.AuthID),
		zap.String("email", orphan.Email))
}

func (w *ReconciliationWorker) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
