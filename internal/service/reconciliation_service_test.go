package service

import (
	"context"
	"errors"
	"testing"

	"github.com/spec-kit/user-provisioning/internal/domain"
	"github.com/spec-kit/user-provisioning/internal/events"
)

type recordingQueue struct {
	orphans []domain.OrphanIdentity
	failing bool
}

func (q *recordingQueue) Enqueue(_ context.Context, orphan domain.OrphanIdentity) error {
	if q.failing {
		return errors.New("queue unavailable")
	}
	q.orphans = append(q.orphans, orphan)
	return nil
}

func TestReconciliationService_QueuesOrphanedIdentity(t *testing.T) {
	t.Parallel()

	dispatcher := events.NewInMemoryDispatcher()
	queue := &recordingQueue{}
	NewReconciliationService(dispatcher, queue, nil).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{
		Type: events.EventProvisioningOrphaned,
		Payload: events.ProvisioningOrphanedPayload{
			Orphan: domain.OrphanIdentity{AuthID: "auth-1", Email: "a@x.com", Reason: "write failed"},
		},
	})
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	if len(queue.orphans) != 1 || queue.orphans[0].AuthID != "auth-1" {
		t.Fatalf("expected orphan queued, got %v", queue.orphans)
	}
}

func TestReconciliationService_NoQueueOnlyLogs(t *testing.T) {
	t.Parallel()

	dispatcher := events.NewInMemoryDispatcher()
	NewReconciliationService(dispatcher, nil, nil).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{
		Type: events.EventProvisioningOrphaned,
		Payload: events.ProvisioningOrphanedPayload{
			Orphan: domain.OrphanIdentity{AuthID: "auth-1"},
		},
	})
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
}

func TestReconciliationService_IgnoresForeignPayloads(t *testing.T) {
	t.Parallel()

	dispatcher := events.NewInMemoryDispatcher()
	queue := &recordingQueue{}
	NewReconciliationService(dispatcher, queue, nil).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventProvisioningOrphaned,
		Payload: "not an orphan payload",
	})
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if len(queue.orphans) != 0 {
		t.Errorf("expected nothing queued, got %v", queue.orphans)
	}
}
