package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/cashledger/internal/cashflow"
	jobmetrics "github.com/odyssey-erp/cashledger/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ScopeLister enumerates owners that hold cash-flow data.
type ScopeLister interface {
	ListOwnerScopes(ctx context.Context) ([]cashflow.OwnerScope, error)
}

// ScopeWarmer loads and caches the snapshot of one owner.
type ScopeWarmer interface {
	WarmScope(ctx context.Context, scope cashflow.OwnerScope) error
}

// WarmupJob pre-populates snapshot caches so the first dashboard request of
// each owner is served from Redis.
type WarmupJob struct {
	Scopes       ScopeLister
	Warmer       ScopeWarmer
	Logger       *slog.Logger
	Metrics      *jobmetrics.Metrics
	ScopeTimeout time.Duration
	clock        func() time.Time
}

// NewWarmupJob wires dependencies for the warmup handler.
func NewWarmupJob(scopes ScopeLister, warmer ScopeWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *WarmupJob {
	return &WarmupJob{
		Scopes:       scopes,
		Warmer:       warmer,
		Logger:       logger,
		Metrics:      metrics,
		ScopeTimeout: 20 * time.Second,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes cashflow:warmup tasks. A failing scope is logged and the
// run continues; the task fails when any scope failed.
func (j *WarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Scopes == nil || j.Warmer == nil {
		return errors.New("cashflow warmup: handler not configured")
	}
	var payload WarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("cashflow warmup: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	tracker := j.metrics().Track(TaskCashflowWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := j.now()
	logger.Info("starting cashflow warmup")

	scopes, err := j.Scopes.ListOwnerScopes(ctx)
	if err != nil {
		resultErr = err
		logger.Error("load warmup scopes", slog.Any("error", err))
		return resultErr
	}
	if payload.Limit > 0 && len(scopes) > payload.Limit {
		scopes = scopes[:payload.Limit]
	}
	if len(scopes) == 0 {
		logger.Info("no scopes discovered for warmup")
		return resultErr
	}

	warmed := 0
	var failures []error
	for _, scope := range scopes {
		if err := ctx.Err(); err != nil {
			resultErr = err
			return resultErr
		}
		if err := j.warmScope(ctx, scope); err != nil {
			logger.Warn("warm scope", slog.String("scope", scope.Key()), slog.Any("error", err))
			failures = append(failures, fmt.Errorf("%s: %w", scope.Key(), err))
			continue
		}
		warmed++
	}
	j.metrics().AddWarmed(warmed)

	logger.Info("completed cashflow warmup",
		slog.Int("scopes", warmed),
		slog.Int("failed", len(failures)),
		slog.Duration("duration", j.now().Sub(start)))
	resultErr = errors.Join(failures...)
	return resultErr
}

func (j *WarmupJob) warmScope(ctx context.Context, scope cashflow.OwnerScope) error {
	scopeCtx := ctx
	if j.ScopeTimeout > 0 {
		var cancel context.CancelFunc
		scopeCtx, cancel = context.WithTimeout(ctx, j.ScopeTimeout)
		defer cancel()
	}
	return j.Warmer.WarmScope(scopeCtx, scope)
}

func (j *WarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCashflowWarmup))
	}
	return slog.Default().With(slog.String("job", TaskCashflowWarmup))
}

func (j *WarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *WarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
