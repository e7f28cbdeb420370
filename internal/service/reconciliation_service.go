package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/user-provisioning/internal/domain"
	"github.com/spec-kit/user-provisioning/internal/events"
)

// OrphanQueue accepts identity compensation tasks for later processing.
type OrphanQueue interface {
	Enqueue(ctx context.Context, orphan domain.OrphanIdentity) error
}

// ReconciliationService listens for orphaned registrations and hands them to
// the durable compensation queue. Without a queue configured the orphan is
// only logged, which matches the source system's behavior.
type ReconciliationService struct {
	dispatcher events.Dispatcher
	queue      OrphanQueue
	logger     *zap.Logger
}

// NewReconciliationService creates the service.
func NewReconciliationService(dispatcher events.Dispatcher, queue OrphanQueue, logger *zap.Logger) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationService{
		dispatcher: dispatcher,
		queue:      queue,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (r *ReconciliationService) RegisterHandlers() {
	if r.dispatcher == nil {
		return
	}
	r.dispatcher.Subscribe(events.EventProvisioningOrphaned, r.handleOrphaned)
}

func (r *ReconciliationService) handleOrphaned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ProvisioningOrphanedPayload)
	if !ok {
		return nil
	}

	if r.queue == nil {
		r.logger.Warn("orphaned identity left unreconciled",
			zap.String("auth_id", payload.Orphan.AuthID),
			zap.String("email", payload.Orphan.Email),
			zap.String("reason", payload.Orphan.Reason))
		return nil
	}

	if err := r.queue.Enqueue(ctx, payload.Orphan); err != nil {
		r.logger.Error("failed to enqueue orphaned identity",
			zap.String("auth_id", payload.Orphan.AuthID),
			zap.Error(err))
		return err
	}

	r.logger.Info("orphaned identity queued for deregistration",
		zap.String("auth_id", payload.Orphan.AuthID))
	return nil
}
