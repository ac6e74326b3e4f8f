package notification

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TaskTypeDispatch is the asynq task type carrying one Event.
const TaskTypeDispatch = "notification:dispatch"

// ChannelForShop is the Redis pub/sub channel for one shop's real-time feed.
func ChannelForShop(shopID int64) string {
	return fmt.Sprintf("notify:shop:%d", shopID)
}

// NewDispatchTask wraps an event in an asynq task.
func NewDispatchTask(event Event) (*asynq.Task, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDispatch, data), nil
}

// DecodeDispatchTask unpacks a dispatch task payload.
func DecodeDispatchTask(payload []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}
