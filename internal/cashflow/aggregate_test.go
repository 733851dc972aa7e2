package cashflow

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/cashledger/internal/calendar"
)

func event(typ EventType, amount, due string, status EventStatus) CashEvent {
	return CashEvent{ID: uuid.NewString(), Type: typ, Amount: amt(amount), DueDate: d(due), Status: status}
}

func TestAggregateRunningBalanceAndConservation(t *testing.T) {
	events := []CashEvent{
		event(TypeExpense, "300", "2025-06-15", StatusPending),
		event(TypeIncome, "1000", "2025-06-10", StatusPaid),
		event(TypeIncome, "250.55", "2025-06-15", StatusPending),
		event(TypeExpense, "0.10", "2025-06-01", StatusPaid),
	}
	now := time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC)
	agg := Aggregate(events, now)

	require.Len(t, agg.Entries, 4)
	prev := decimal.Zero
	for i, e := range agg.Entries {
		require.True(t, e.Balance.Equal(prev.Add(e.Signed())), "entry %d", i)
		prev = e.Balance
		if i > 0 {
			require.False(t, e.DueDate.Before(agg.Entries[i-1].DueDate))
		}
	}
	// Stable on ties: the expense on the 15th was produced before the income.
	require.Equal(t, TypeExpense, agg.Entries[2].Type)
	require.Equal(t, TypeIncome, agg.Entries[3].Type)

	s := agg.Summary
	require.Equal(t, "1250.55", s.TotalIncome.StringFixed(2))
	require.Equal(t, "300.10", s.TotalExpenses.StringFixed(2))
	require.True(t, s.TotalIncome.Sub(s.TotalExpenses).Equal(s.NetFlow))
	require.Equal(t, "250.55", s.PendingIncome.StringFixed(2))
	require.Equal(t, "300.00", s.PendingExpenses.StringFixed(2))
	require.True(t, prev.Equal(s.NetFlow))

	bucketNet := decimal.Zero
	for _, b := range agg.Buckets {
		bucketNet = bucketNet.Add(b.NetFlow)
		require.True(t, b.Income.Sub(b.Expenses).Equal(b.NetFlow))
	}
	require.True(t, bucketNet.Equal(s.NetFlow))
	require.Len(t, agg.Buckets, 3)
	require.Len(t, agg.Buckets[2].Events, 2)
}

func TestAggregateOverdue(t *testing.T) {
	events := []CashEvent{
		event(TypeExpense, "80", "2025-01-01", StatusPending),
		event(TypeExpense, "20", "2025-01-01", StatusPaid),
		event(TypeIncome, "40", "2025-07-01", StatusPending),
	}
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	agg := Aggregate(events, now)

	require.Len(t, agg.Overdue, 1)
	require.Equal(t, 151, agg.Overdue[0].DaysOverdue)
	require.Equal(t, 1, agg.Summary.OverdueCount)
	require.Equal(t, "80.00", agg.Summary.OverdueAmount.StringFixed(2))
}

func TestAggregateOverdueDependsOnNow(t *testing.T) {
	events := []CashEvent{event(TypeIncome, "10", "2025-06-10", StatusPending)}

	before := Aggregate(events, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))
	require.Zero(t, before.Summary.OverdueCount)

	after := Aggregate(events, time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC))
	require.Equal(t, 1, after.Summary.OverdueCount)
	require.Equal(t, 1, after.Overdue[0].DaysOverdue)
}

func TestAggregateDueTodayIsNotOverdue(t *testing.T) {
	events := []CashEvent{event(TypeIncome, "10", "2025-06-20", StatusPending)}

	agg := Aggregate(events, time.Date(2025, 6, 20, 9, 0, 0, 0, time.UTC))
	require.Zero(t, agg.Summary.OverdueCount)
	require.Empty(t, agg.Overdue)
	require.False(t, IsOverdue(events[0], time.Date(2025, 6, 20, 23, 59, 59, 0, time.UTC)))
}

func TestAggregateEmpty(t *testing.T) {
	agg := Aggregate(nil, time.Now())
	require.Empty(t, agg.Entries)
	require.Empty(t, agg.Buckets)
	require.True(t, agg.Summary.NetFlow.IsZero())
}

func TestTotalSalesIgnoresPaymentStatus(t *testing.T) {
	sales := []Sale{
		{ID: uuid.New(), Total: amt("1000"), SaleDate: d("2025-06-10")},
		{ID: uuid.New(), Total: amt("500"), SaleDate: d("2025-06-20"), Payments: []Payment{{Status: PaymentPending}}},
		{ID: uuid.New(), Total: amt("700"), SaleDate: d("2025-05-31")},
	}
	window, err := calendar.NewRange(d("2025-06-01"), d("2025-06-30"))
	require.NoError(t, err)
	require.Equal(t, "1500.00", TotalSales(sales, window).StringFixed(2))
}

func TestSaleScenarioCountedOnce(t *testing.T) {
	sale := Sale{ID: uuid.New(), Client: Client{Name: "ACME"}, Total: amt("1000"), SaleDate: d("2025-06-10")}
	snap := Snapshot{Sales: []Sale{sale}}
	window := win(t, "2025-06-01", "2025-06-30")

	agg := Aggregate(Materialize(snap, window), time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC))
	require.Equal(t, "1000.00", agg.Summary.TotalIncome.StringFixed(2))
	require.Equal(t, "1000.00", TotalSales(snap.Sales, window).StringFixed(2))
	require.Zero(t, agg.Summary.OverdueCount)
}
