package perf

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/cashledger/internal/analytics"
	"github.com/odyssey-erp/cashledger/internal/calendar"
	"github.com/odyssey-erp/cashledger/internal/cashflow"
	"github.com/odyssey-erp/cashledger/internal/recurrence"
)

var (
	benchNow   = time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	benchScope = cashflow.OwnerScope{UserID: uuid.MustParse("5a0e4f8c-1d2b-4c3a-9e8f-7a6b5c4d3e2f")}
)

type staticRepo struct {
	snap cashflow.Snapshot
}

func (r staticRepo) ListSales(ctx context.Context, scope cashflow.OwnerScope, window *calendar.Range) ([]cashflow.Sale, error) {
	return r.snap.Sales, nil
}

func (r staticRepo) ListExpenses(ctx context.Context, scope cashflow.OwnerScope, window *calendar.Range) ([]cashflow.Expense, error) {
	return r.snap.Expenses, nil
}

// syntheticSnapshot builds sales paid in 12 installments and a handful of
// monthly recurring expenses spread over two years.
func syntheticSnapshot(tb testing.TB, sales int) cashflow.Snapshot {
	tb.Helper()
	start := calendar.MustParse("2024-01-05")
	snap := cashflow.Snapshot{}
	for i := 0; i < sales; i++ {
		saleDate := start.AddDays(i % 540)
		plan, err := cashflow.PlanInstallments(cashflow.InstallmentPlanInput{
			Total:        decimal.NewFromInt(int64(1200 + i)),
			Installments: 12,
			FirstDueDate: saleDate.AddMonths(1),
		})
		require.NoError(tb, err)
		sale := cashflow.Sale{
			ID:       uuid.New(),
			Client:   cashflow.Client{ID: uuid.New(), Name: fmt.Sprintf("Client %03d", i%50)},
			Total:    decimal.NewFromInt(int64(1200 + i)),
			SaleDate: saleDate,
		}
		for _, p := range plan {
			payment := cashflow.Payment{
				ID:                uuid.New(),
				SaleID:            sale.ID,
				Kind:              p.Kind,
				Amount:            p.Amount,
				DueDate:           p.DueDate,
				Status:            cashflow.PaymentPending,
				InstallmentNumber: p.InstallmentNumber,
				TotalInstallments: p.TotalInstallments,
			}
			if p.DueDate.Before(calendar.FromTime(benchNow).AddDays(-30)) {
				payment.Status = cashflow.PaymentPaid
				payment.PaidDate = p.DueDate
			}
			sale.Payments = append(sale.Payments, payment)
		}
		snap.Sales = append(snap.Sales, sale)
	}
	for i := 0; i < 8; i++ {
		anchor := start.AddDays(i * 3)
		rule, err := recurrence.NewRule(recurrence.Monthly, anchor, 0, calendar.Date{})
		require.NoError(tb, err)
		snap.Expenses = append(snap.Expenses, cashflow.Expense{
			ID:          uuid.New(),
			Description: fmt.Sprintf("Recurring %d", i),
			Amount:      decimal.NewFromInt(int64(100 * (i + 1))),
			DueDate:     anchor,
			Status:      cashflow.ExpensePending,
			Category:    &cashflow.Category{ID: uuid.New(), Name: fmt.Sprintf("Category %d", i%3)},
			Recurrence:  &rule,
		})
	}
	require.NoError(tb, snap.Validate())
	return snap
}

func newBenchService(tb testing.TB, snap cashflow.Snapshot) *analytics.Service {
	tb.Helper()
	mr := miniredis.RunT(tb)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tb.Cleanup(func() { _ = client.Close() })
	return analytics.NewService(staticRepo{snap: snap}, analytics.NewCache(client, time.Minute), analytics.ServiceConfig{
		Now: func() time.Time { return benchNow },
	})
}

func BenchmarkMaterializeAndAggregate(b *testing.B) {
	snap := syntheticSnapshot(b, 500)
	window := calendar.MonthOf(calendar.FromTime(benchNow))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		events := cashflow.Materialize(snap, window)
		_ = cashflow.Aggregate(events, benchNow)
	}
}

func BenchmarkProjection(b *testing.B) {
	snap := syntheticSnapshot(b, 500)
	anchor := calendar.FromTime(benchNow)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cashflow.Project(snap, anchor)
	}
}

func BenchmarkCachedReport(b *testing.B) {
	svc := newBenchService(b, syntheticSnapshot(b, 500))
	ctx := context.Background()
	start, end := calendar.MustParse("2025-01-01"), calendar.MustParse("2025-06-30")
	_, err := svc.BuildCashFlowReport(ctx, benchScope, start, end, analytics.Filters{})
	require.NoError(b, err)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.BuildCashFlowReport(ctx, benchScope, start, end, analytics.Filters{}); err != nil {
			b.Fatal(err)
		}
	}
}

func TestCachedReportLatencyTarget(t *testing.T) {
	if testing.Short() {
		t.Skip("latency sampling skipped in short mode")
	}
	svc := newBenchService(t, syntheticSnapshot(t, 300))
	ctx := context.Background()
	start, end := calendar.MustParse("2025-01-01"), calendar.MustParse("2025-06-30")

	samples := make([]time.Duration, 0, 20)
	for i := 0; i < 20; i++ {
		began := time.Now()
		report, err := svc.BuildCashFlowReport(ctx, benchScope, start, end, analytics.Filters{})
		require.NoError(t, err)
		require.NotEmpty(t, report.Items)
		samples = append(samples, time.Since(began))
	}
	p95 := percentile95(samples[1:])
	require.Less(t, p95, 500*time.Millisecond, "cached report p95=%s", p95)
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	return sorted[index]
}
