package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/samudra-retail/samudra-retail/internal/shared"
)

type memoryStore struct {
	rows []Notification
}

func (m *memoryStore) InsertMany(ctx context.Context, rows []Notification) error {
	m.rows = append(m.rows, rows...)
	return nil
}

func (m *memoryStore) ListByShop(ctx context.Context, shopID int64, page shared.PageRequest) ([]Notification, error) {
	out := []Notification{}
	for _, row := range m.rows {
		if row.ShopID == shopID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memoryStore) MarkRead(ctx context.Context, id int64) error {
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleEvent() Event {
	return Event{
		Title:             "Sale approved",
		Message:           "Sale INV-2608-0001 has been approved",
		Type:              TypeSaleApproved,
		RelatedEntityType: "sell",
		SaleID:            1,
		InvoiceNo:         "INV-2608-0001",
		ShopIDs:           []int64{2, 3},
		At:                time.Now().UTC(),
	}
}

func TestWriterPersistsAndPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	sub := client.Subscribe(ctx, ChannelForShop(2))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	store := &memoryStore{}
	w := NewWriter(store, client, testLogger())

	task, err := NewDispatchTask(sampleEvent())
	require.NoError(t, err)
	require.NoError(t, w.HandleDispatchTask(ctx, task))

	// One durable row per shop.
	require.Len(t, store.rows, 2)
	require.Equal(t, int64(2), store.rows[0].ShopID)
	require.Equal(t, int64(3), store.rows[1].ShopID)

	select {
	case msg := <-sub.Channel():
		var got Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		require.Equal(t, "INV-2608-0001", got.InvoiceNo)
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}
}

func TestWriterSkipsUndecodablePayload(t *testing.T) {
	w := NewWriter(&memoryStore{}, nil, testLogger())
	err := w.HandleDispatchTask(context.Background(), asynq.NewTask(TaskTypeDispatch, []byte("not json")))
	require.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestWriterSurvivesPublishFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	store := &memoryStore{}
	w := NewWriter(store, client, testLogger())
	task, err := NewDispatchTask(sampleEvent())
	require.NoError(t, err)

	// Rows are written even when the real-time channel is down.
	require.NoError(t, w.HandleDispatchTask(context.Background(), task))
	require.Len(t, store.rows, 2)
}
