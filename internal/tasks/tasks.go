package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type names. The worker registers a handler per type.
const (
	TypeOrderExpire = "order:expire"
	TypeOrderSweep  = "order:sweep"
	TypeOTPPurge    = "otp:purge"
)

// OrderExpirePayload identifies the order to check for expiry.
type OrderExpirePayload struct {
	OrderID string `json:"order_id"`
}

// NewOrderExpireTask builds the deferred expiry task for an order.
func NewOrderExpireTask(orderID string) (*asynq.Task, error) {
	payload, err := json.Marshal(OrderExpirePayload{OrderID: orderID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeOrderExpire, payload), nil
}

// NewOrderSweepTask builds the periodic pending-order sweep. It backstops the
// per-order expiry tasks: orders placed while the queue was unreachable still
// get cancelled once their window lapses.
func NewOrderSweepTask() *asynq.Task {
	return asynq.NewTask(TypeOrderSweep, nil)
}

// NewOTPPurgeTask builds the periodic OTP cleanup task.
func NewOTPPurgeTask() *asynq.Task {
	return asynq.NewTask(TypeOTPPurge, nil)
}

// Enqueuer schedules background tasks on the asynq queue.
type Enqueuer struct {
	Client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{Client: client}
}

// EnqueueOrderExpiry schedules the expiry check for an order after delay.
func (e *Enqueuer) EnqueueOrderExpiry(ctx context.Context, orderID string, delay time.Duration) error {
	task, err := NewOrderExpireTask(orderID)
	if err != nil {
		return fmt.Errorf("build expiry task: %w", err)
	}
	_, err = e.Client.EnqueueContext(ctx, task,
		asynq.ProcessIn(delay),
		asynq.MaxRetry(3),
		asynq.Queue("default"),
	)
	if err != nil {
		return fmt.Errorf("enqueue expiry task: %w", err)
	}
	return nil
}
