package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCashflowWarmup preloads snapshot caches for every owner scope.
	TaskCashflowWarmup = "cashflow:warmup"
	// TaskCashflowInvalidate bumps the snapshot cache version.
	TaskCashflowInvalidate = "cashflow:invalidate"
)

// WarmupPayload tunes a warmup run. An empty payload warms every scope.
type WarmupPayload struct {
	Limit int `json:"limit,omitempty"`
}

// InvalidatePayload records why the cache was bumped.
type InvalidatePayload struct {
	Reason string `json:"reason"`
}

// NewWarmupTask constructs a cashflow:warmup task.
func NewWarmupTask(payload WarmupPayload) (*asynq.Task, error) {
	if payload.Limit < 0 {
		return nil, fmt.Errorf("jobs: warmup limit must not be negative")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCashflowWarmup, data), nil
}

// NewInvalidateTask constructs a cashflow:invalidate task.
func NewInvalidateTask(reason string) (*asynq.Task, error) {
	if reason == "" {
		reason = "manual"
	}
	data, err := json.Marshal(InvalidatePayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCashflowInvalidate, data), nil
}
