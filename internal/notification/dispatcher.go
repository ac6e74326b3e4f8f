package notification

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Dispatcher enqueues events for asynchronous delivery. Failures are logged
// and swallowed: a committed business operation never fails because its
// notification could not be queued.
type Dispatcher struct {
	client *asynq.Client
	queue  string
	logger *slog.Logger
}

// NewDispatcher builds Dispatcher.
func NewDispatcher(client *asynq.Client, queue string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{client: client, queue: queue, logger: logger}
}

// Dispatch enqueues each event.
func (d *Dispatcher) Dispatch(ctx context.Context, events ...Event) {
	if d == nil || d.client == nil {
		return
	}
	for _, event := range events {
		if event.EventID == "" {
			event.EventID = uuid.NewString()
		}
		task, err := NewDispatchTask(event)
		if err != nil {
			d.warn("notification encode failed", event, err)
			continue
		}
		if _, err := d.client.EnqueueContext(ctx, task, asynq.Queue(d.queue)); err != nil {
			d.warn("notification enqueue failed", event, err)
		}
	}
}

func (d *Dispatcher) warn(msg string, event Event, err error) {
	if d.logger == nil {
		return
	}
	d.logger.Warn(msg,
		slog.String("event_id", event.EventID),
		slog.String("type", event.Type),
		slog.String("invoice_no", event.InvoiceNo),
		slog.Any("error", err))
}
