package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/cashledger/internal/jobs"
)

// VersionBumper advances the snapshot cache version.
type VersionBumper interface {
	Bump(ctx context.Context) (int64, error)
}

// InvalidateJob discards every cached snapshot by bumping the cache version.
// Writers enqueue it after changing sales, payments or expenses.
type InvalidateJob struct {
	Cache   VersionBumper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewInvalidateJob wires dependencies for the invalidation handler.
func NewInvalidateJob(cache VersionBumper, logger *slog.Logger, metrics *jobmetrics.Metrics) *InvalidateJob {
	return &InvalidateJob{Cache: cache, Logger: logger, Metrics: metrics}
}

// Handle processes cashflow:invalidate tasks.
func (j *InvalidateJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Cache == nil {
		return errors.New("cashflow invalidate: handler not configured")
	}
	var payload InvalidatePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("cashflow invalidate: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskCashflowInvalidate)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version, err := j.Cache.Bump(ctx)
	if err != nil {
		logger.Error("bump cache version", slog.String("job", TaskCashflowInvalidate), slog.Any("error", err))
		return err
	}
	metrics.IncInvalidations()
	logger.Info("cashflow cache invalidated",
		slog.String("job", TaskCashflowInvalidate),
		slog.String("reason", payload.Reason),
		slog.Int64("version", version))
	return nil
}
