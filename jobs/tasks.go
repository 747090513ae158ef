package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDashboardWarmup refreshes the shared boards so their payloads sit
	// in the Redis cache before a browser asks for them.
	TaskDashboardWarmup = "dashboard:warmup"
)

// DashboardWarmupPayload selects the boards to warm. An empty list warms
// every board.
type DashboardWarmupPayload struct {
	Boards []string `json:"boards,omitempty"`
}

// NewDashboardWarmupTask constructs the warm-up task.
func NewDashboardWarmupTask(boards ...string) (*asynq.Task, error) {
	data, err := json.Marshal(DashboardWarmupPayload{Boards: boards})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDashboardWarmup, data), nil
}

// NewTask builds the task registered under name with its default payload.
func NewTask(name string) (*asynq.Task, error) {
	switch name {
	case TaskDashboardWarmup, "warmup":
		return NewDashboardWarmupTask()
	default:
		return nil, &UnknownTaskError{Name: name}
	}
}

// UnknownTaskError reports a task name no handler serves.
type UnknownTaskError struct {
	Name string
}

func (e *UnknownTaskError) Error() string {
	return "jobs: unsupported task " + e.Name
}
