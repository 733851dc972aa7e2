package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/cashledger/internal/calendar"
	"github.com/odyssey-erp/cashledger/internal/cashflow"
	"github.com/odyssey-erp/cashledger/internal/recurrence"
)

const (
	defaultRecentLimit = 5
	defaultLoadTimeout = 30 * time.Second
)

// Repository exposes the read-only record queries the engine relies on. With a
// non-nil window implementations return a superset: sales dated or with any
// payment due or paid inside it, expenses due inside it, and every recurring
// expense regardless of its anchor.
type Repository interface {
	ListSales(ctx context.Context, scope cashflow.OwnerScope, window *calendar.Range) ([]cashflow.Sale, error)
	ListExpenses(ctx context.Context, scope cashflow.OwnerScope, window *calendar.Range) ([]cashflow.Expense, error)
}

// Recorder receives report build measurements.
type Recorder interface {
	ObserveReport(kind string, events int, elapsed time.Duration)
}

// ServiceConfig carries optional collaborators.
type ServiceConfig struct {
	Logger      *slog.Logger
	Metrics     Recorder
	RecentLimit int
	// LoadTimeout bounds a shared snapshot load, which outlives the caller
	// that started it.
	LoadTimeout time.Duration
	Now         func() time.Time
}

// Service coordinates snapshot loading, the cash-flow engine and the cache layer.
type Service struct {
	repo        Repository
	cache       *Cache
	group       singleflight.Group
	logger      *slog.Logger
	metrics     Recorder
	recentLimit int
	loadTimeout time.Duration
	now         func() time.Time
}

// NewService wires a Repository with a Cache helper.
func NewService(repo Repository, cache *Cache, cfg ServiceConfig) *Service {
	s := &Service{
		repo:        repo,
		cache:       cache,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		recentLimit: cfg.RecentLimit,
		loadTimeout: cfg.LoadTimeout,
		now:         cfg.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.recentLimit <= 0 {
		s.recentLimit = defaultRecentLimit
	}
	if s.loadTimeout <= 0 {
		s.loadTimeout = defaultLoadTimeout
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Cache exposes the cache helper for invalidation jobs.
func (s *Service) Cache() *Cache {
	return s.cache
}

// loadSnapshot reads and validates one owner's records. Concurrent identical
// loads share a single repository round trip, detached from any one caller's
// cancellation.
func (s *Service) loadSnapshot(ctx context.Context, scope cashflow.OwnerScope, window *calendar.Range) (cashflow.Snapshot, error) {
	keyBase := keySnapshot(scope, window)
	loader := func(ctx context.Context) (interface{}, error) {
		var snap cashflow.Snapshot
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			sales, err := s.repo.ListSales(gctx, scope, window)
			if err != nil {
				return fmt.Errorf("list sales: %w", err)
			}
			snap.Sales = sales
			return nil
		})
		g.Go(func() error {
			expenses, err := s.repo.ListExpenses(gctx, scope, window)
			if err != nil {
				return fmt.Errorf("list expenses: %w", err)
			}
			snap.Expenses = expenses
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return snap, nil
	}

	value, err, _ := singleflightLoad(ctx, &s.group, keyBase, s.loadTimeout, func(ctx context.Context) (interface{}, error) {
		var snap cashflow.Snapshot
		if s.cache == nil {
			raw, err := loader(ctx)
			if err != nil {
				return nil, classify(err)
			}
			snap = raw.(cashflow.Snapshot)
		} else {
			key, err := s.cache.BuildKey(ctx, keyBase)
			if err != nil {
				return nil, err
			}
			if err := s.cache.FetchJSON(ctx, key, &snap, loader); err != nil {
				return nil, classify(err)
			}
		}
		if err := snap.Validate(); err != nil {
			return nil, classify(err)
		}
		return snap, nil
	})
	if err != nil {
		return cashflow.Snapshot{}, err
	}
	return value.(cashflow.Snapshot), nil
}

// WarmScope loads the snapshots behind the dashboard and the default
// current-month report so later requests hit the cache.
func (s *Service) WarmScope(ctx context.Context, scope cashflow.OwnerScope) error {
	if _, err := s.loadSnapshot(ctx, scope, nil); err != nil {
		return err
	}
	today := calendar.FromTime(s.now())
	covering := calendar.MonthOf(today).Union(cashflow.ProjectionRange(today))
	_, err := s.loadSnapshot(ctx, scope, &covering)
	return err
}

// classify marks stored-record violations as validation failures.
func classify(err error) error {
	if errors.Is(err, ErrValidation) {
		return err
	}
	if errors.Is(err, cashflow.ErrInvalidRecord) || errors.Is(err, recurrence.ErrInvalidRule) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return err
}

// singleflightLoad runs fn once per key on a context that keeps the first
// caller's values but not its cancellation. Each caller still stops waiting
// when its own ctx ends.
func singleflightLoad(ctx context.Context, group *singleflight.Group, key string, timeout time.Duration, fn func(context.Context) (interface{}, error)) (interface{}, error, bool) {
	resultChan := group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return fn(loadCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}

func (s *Service) observe(kind string, events int, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveReport(kind, events, time.Since(start))
	}
}
