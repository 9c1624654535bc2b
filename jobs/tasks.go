package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPermissionWarmup refreshes cached permission info for recently updated users.
	TaskPermissionWarmup = "permissions:warmup"
	// DefaultWarmupLimit caps how many users a single warmup run resolves.
	DefaultWarmupLimit = 500
)

// PermissionWarmupPayload configures a warmup run.
type PermissionWarmupPayload struct {
	Limit int `json:"limit,omitempty"`
}

// NewPermissionWarmupTask constructs an Asynq task for the permission warmup.
func NewPermissionWarmupTask(payload PermissionWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPermissionWarmup, data, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}
