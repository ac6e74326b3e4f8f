package notification

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/samudra-retail/samudra-retail/internal/shared"
)

// Store is the persistence surface the writer needs.
type Store interface {
	InsertMany(ctx context.Context, rows []Notification) error
	ListByShop(ctx context.Context, shopID int64, page shared.PageRequest) ([]Notification, error)
	MarkRead(ctx context.Context, id int64) error
}

// Writer consumes dispatch tasks on the worker: one durable row per shop,
// then a best-effort publish on each shop's real-time channel.
type Writer struct {
	store  Store
	redis  *redis.Client
	logger *slog.Logger
}

// NewWriter builds Writer.
func NewWriter(store Store, redisClient *redis.Client, logger *slog.Logger) *Writer {
	return &Writer{store: store, redis: redisClient, logger: logger}
}

// HandleDispatchTask processes one TaskTypeDispatch task.
func (w *Writer) HandleDispatchTask(ctx context.Context, t *asynq.Task) error {
	event, err := DecodeDispatchTask(t.Payload())
	if err != nil {
		return asynq.SkipRetry
	}
	rows := make([]Notification, 0, len(event.ShopIDs))
	for _, shopID := range event.ShopIDs {
		rows = append(rows, Notification{
			ShopID:            shopID,
			Title:             event.Title,
			Message:           event.Message,
			Type:              event.Type,
			RelatedEntityType: event.RelatedEntityType,
			SaleID:            event.SaleID,
			InvoiceNo:         event.InvoiceNo,
		})
	}
	if err := w.store.InsertMany(ctx, rows); err != nil {
		return err
	}
	w.publish(ctx, event)
	return nil
}

// publish pushes the event onto each shop channel. Publish failures are
// logged, never returned: the durable rows are already written.
func (w *Writer) publish(ctx context.Context, event Event) {
	if w.redis == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	for _, shopID := range event.ShopIDs {
		if err := w.redis.Publish(ctx, ChannelForShop(shopID), payload).Err(); err != nil && w.logger != nil {
			w.logger.Warn("notification publish failed",
				slog.Int64("shop_id", shopID),
				slog.Any("error", err))
		}
	}
}
