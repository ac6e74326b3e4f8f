package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerDriftScan recomputes ledger sums against location stock rows.
	TaskLedgerDriftScan = "stock:drift_scan"
)

// NewLedgerDriftTask constructs the nightly drift scan task.
func NewLedgerDriftTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerDriftScan, nil)
}
