package cashflow

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/cashledger/internal/calendar"
)

// Entry is an event with the running balance after applying it.
type Entry struct {
	CashEvent
	Balance decimal.Decimal `json:"runningBalance"`
}

// Summary carries window totals. TotalSales is filled by callers holding the
// sale records, since it does not derive from events.
type Summary struct {
	TotalIncome     decimal.Decimal `json:"totalIncome"`
	TotalExpenses   decimal.Decimal `json:"totalExpenses"`
	NetFlow         decimal.Decimal `json:"netFlow"`
	PendingIncome   decimal.Decimal `json:"pendingIncome"`
	PendingExpenses decimal.Decimal `json:"pendingExpenses"`
	OverdueAmount   decimal.Decimal `json:"overdueAmount"`
	OverdueCount    int             `json:"overdueCount"`
	TotalSales      decimal.Decimal `json:"totalSales"`
}

// OverdueItem is a pending event past its due date at evaluation time.
type OverdueItem struct {
	CashEvent
	DaysOverdue int `json:"daysOverdue"`
}

// PeriodBucket groups the events of one calendar day.
type PeriodBucket struct {
	Date     calendar.Date   `json:"date"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	NetFlow  decimal.Decimal `json:"netFlow"`
	Events   []CashEvent     `json:"events"`
}

// Aggregation is the ordered, summarised view of a set of events.
type Aggregation struct {
	Entries []Entry        `json:"entries"`
	Summary Summary        `json:"summary"`
	Buckets []PeriodBucket `json:"periodBuckets"`
	Overdue []OverdueItem  `json:"overdue"`
}

// SortEvents orders events by displayed due date, keeping input order on ties.
func SortEvents(events []CashEvent) []CashEvent {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b CashEvent) int {
		return a.DueDate.Compare(b.DueDate)
	})
	return sorted
}

// IsOverdue reports whether ev is pending and its due date is an earlier
// calendar day than now. An event due today is not yet overdue.
func IsOverdue(ev CashEvent, now time.Time) bool {
	return ev.IsPending() && ev.DueDate.Before(calendar.FromTime(now))
}

// Aggregate sorts events and folds them into balances, totals, day buckets and
// the overdue set as seen at now.
func Aggregate(events []CashEvent, now time.Time) Aggregation {
	sorted := SortEvents(events)
	agg := Aggregation{
		Entries: make([]Entry, 0, len(sorted)),
		Overdue: []OverdueItem{},
		Buckets: []PeriodBucket{},
	}

	balance := decimal.Zero
	var bucket *PeriodBucket
	for _, ev := range sorted {
		balance = balance.Add(ev.Signed())
		agg.Entries = append(agg.Entries, Entry{CashEvent: ev, Balance: balance})

		switch ev.Type {
		case TypeIncome:
			agg.Summary.TotalIncome = agg.Summary.TotalIncome.Add(ev.Amount)
			if ev.IsPending() {
				agg.Summary.PendingIncome = agg.Summary.PendingIncome.Add(ev.Amount)
			}
		case TypeExpense:
			agg.Summary.TotalExpenses = agg.Summary.TotalExpenses.Add(ev.Amount)
			if ev.IsPending() {
				agg.Summary.PendingExpenses = agg.Summary.PendingExpenses.Add(ev.Amount)
			}
		}

		if IsOverdue(ev, now) {
			agg.Overdue = append(agg.Overdue, OverdueItem{CashEvent: ev, DaysOverdue: ev.DueDate.DaysSince(now)})
			agg.Summary.OverdueAmount = agg.Summary.OverdueAmount.Add(ev.Amount)
			agg.Summary.OverdueCount++
		}

		// Events are sorted, so a new day always opens a new bucket.
		if bucket == nil || !bucket.Date.Equal(ev.DueDate) {
			agg.Buckets = append(agg.Buckets, PeriodBucket{Date: ev.DueDate})
			bucket = &agg.Buckets[len(agg.Buckets)-1]
		}
		if ev.Type == TypeIncome {
			bucket.Income = bucket.Income.Add(ev.Amount)
		} else {
			bucket.Expenses = bucket.Expenses.Add(ev.Amount)
		}
		bucket.NetFlow = bucket.NetFlow.Add(ev.Signed())
		bucket.Events = append(bucket.Events, ev)
	}
	agg.Summary.NetFlow = agg.Summary.TotalIncome.Sub(agg.Summary.TotalExpenses)
	return agg
}

// TotalSales sums the totals of sales dated inside window, regardless of
// payment status.
func TotalSales(sales []Sale, window calendar.Range) decimal.Decimal {
	total := decimal.Zero
	for _, s := range sales {
		if window.Contains(s.SaleDate) {
			total = total.Add(s.Total)
		}
	}
	return total
}
