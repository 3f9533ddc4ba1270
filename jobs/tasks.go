package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRetention purges audit rows past the retention window.
	TaskAuditRetention = "audit:retention"
	// TaskStaleBugScan reports open bugs that have gone quiet.
	TaskStaleBugScan = "bugs:stale-scan"
)

// AuditRetentionPayload configures a retention purge run.
type AuditRetentionPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewAuditRetentionTask constructs an Asynq task.
func NewAuditRetentionTask(payload AuditRetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}

// StaleBugScanPayload configures a stale-bug scan run.
type StaleBugScanPayload struct {
	StaleAfter time.Duration `json:"staleAfter"`
}

// NewStaleBugScanTask constructs an Asynq task.
func NewStaleBugScanTask(payload StaleBugScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStaleBugScan, data), nil
}
