package cashflow

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/cashledger/internal/calendar"
	"github.com/odyssey-erp/cashledger/internal/recurrence"
)

func d(s string) calendar.Date { return calendar.MustParse(s) }

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func win(t *testing.T, start, end string) calendar.Range {
	t.Helper()
	r, err := calendar.NewRange(d(start), d(end))
	require.NoError(t, err)
	return r
}

func monthlyExpense(t *testing.T, desc, amount, anchor string, day int) Expense {
	t.Helper()
	rule, err := recurrence.NewRule(recurrence.Monthly, d(anchor), day, calendar.Date{})
	require.NoError(t, err)
	return Expense{
		ID:          uuid.New(),
		Description: desc,
		Amount:      amt(amount),
		DueDate:     d(anchor),
		Status:      ExpensePending,
		Category:    &Category{ID: uuid.New(), Name: "Rent"},
		Recurrence:  &rule,
	}
}

func TestMaterializeSaleWithoutPayments(t *testing.T) {
	sale := Sale{ID: uuid.New(), Client: Client{Name: "ACME"}, Total: amt("1000"), SaleDate: d("2025-06-10")}
	snap := Snapshot{Sales: []Sale{sale}}
	require.NoError(t, snap.Validate())

	events := Materialize(snap, win(t, "2025-06-01", "2025-06-30"))
	require.Len(t, events, 1)
	ev := events[0]
	require.Equal(t, TypeIncome, ev.Type)
	require.Equal(t, StatusPaid, ev.Status)
	require.True(t, ev.Amount.Equal(amt("1000")))
	require.Equal(t, "ACME", ev.Counterparty)
	require.Equal(t, "sale:"+sale.ID.String(), ev.ID)

	require.Empty(t, Materialize(snap, win(t, "2025-07-01", "2025-07-31")))
}

func TestMaterializeRecurringMonthly(t *testing.T) {
	exp := monthlyExpense(t, "Office rent", "300", "2025-01-15", 15)
	snap := Snapshot{Expenses: []Expense{exp}}
	require.NoError(t, snap.Validate())

	events := Materialize(snap, win(t, "2025-06-01", "2025-08-31"))
	require.Len(t, events, 3)
	want := []string{"2025-06-15", "2025-07-15", "2025-08-15"}
	for i, ev := range events {
		require.Equal(t, TypeExpense, ev.Type)
		require.Equal(t, StatusPending, ev.Status)
		require.True(t, ev.Amount.Equal(amt("300")))
		require.Equal(t, want[i], ev.DueDate.String())
		require.Equal(t, "Rent", ev.Counterparty)
		require.Equal(t, SourceRecurrence, ev.Source.Kind)
	}
	require.Equal(t, "generated:"+exp.ID.String()+":"+"1749945600000", events[0].ID)
}

func TestMaterializeRecurringIsDeterministic(t *testing.T) {
	exp := monthlyExpense(t, "Office rent", "300", "2025-01-15", 0)
	snap := Snapshot{Expenses: []Expense{exp}}
	w := win(t, "2025-01-01", "2025-12-31")
	require.Equal(t, Materialize(snap, w), Materialize(snap, w))
}

func TestMaterializeAnchorNotDuplicated(t *testing.T) {
	exp := monthlyExpense(t, "Hosting", "50", "2025-03-05", 0)
	exp.Status = ExpensePaid
	snap := Snapshot{Expenses: []Expense{exp}}

	events := Materialize(snap, win(t, "2025-03-01", "2025-04-30"))
	require.Len(t, events, 2)
	require.Equal(t, "2025-03-05", events[0].DueDate.String())
	require.Equal(t, "expense:"+exp.ID.String(), events[0].ID)
	require.Equal(t, StatusPaid, events[0].Status)
	require.Equal(t, "2025-04-05", events[1].DueDate.String())
	require.Equal(t, StatusPending, events[1].Status)
}

func TestMaterializeSkipsOccurrenceMatchingConcreteRow(t *testing.T) {
	exp := monthlyExpense(t, "Hosting", "50", "2025-03-05", 0)
	settled := Expense{
		ID:          uuid.New(),
		Description: "Hosting",
		Amount:      amt("50.00"),
		DueDate:     d("2025-04-05"),
		Status:      ExpensePaid,
	}
	snap := Snapshot{Expenses: []Expense{exp, settled}}

	events := Materialize(snap, win(t, "2025-04-01", "2025-04-30"))
	require.Len(t, events, 1)
	require.Equal(t, "expense:"+settled.ID.String(), events[0].ID)
	require.Equal(t, UncategorizedLabel, events[0].Counterparty)
}

func TestMaterializeKeepsOccurrenceDifferingBelowACent(t *testing.T) {
	exp := monthlyExpense(t, "Hosting", "50", "2025-03-05", 0)
	adjusted := Expense{
		ID:          uuid.New(),
		Description: "Hosting",
		Amount:      amt("50.004"),
		DueDate:     d("2025-04-05"),
		Status:      ExpensePaid,
	}
	snap := Snapshot{Expenses: []Expense{exp, adjusted}}

	events := Materialize(snap, win(t, "2025-04-01", "2025-04-30"))
	require.Len(t, events, 2)
	require.Equal(t, "expense:"+adjusted.ID.String(), events[0].ID)
	require.Contains(t, events[1].ID, "generated:"+exp.ID.String())
}

func TestMaterializeLatePaymentUsesPaidDate(t *testing.T) {
	saleID := uuid.New()
	payment := Payment{
		ID:       uuid.New(),
		SaleID:   saleID,
		Kind:     PaymentAdvance,
		Amount:   amt("250"),
		DueDate:  d("2025-05-20"),
		Status:   PaymentPaid,
		PaidDate: d("2025-06-02"),
	}
	sale := Sale{ID: saleID, Client: Client{Name: "Globex"}, Total: amt("250"), SaleDate: d("2025-05-01"), Payments: []Payment{payment}}
	snap := Snapshot{Sales: []Sale{sale}}
	require.NoError(t, snap.Validate())

	june := Materialize(snap, win(t, "2025-06-01", "2025-06-30"))
	require.Len(t, june, 1)
	require.Equal(t, "2025-06-02", june[0].DueDate.String())
	require.Equal(t, StatusPaid, june[0].Status)

	require.Empty(t, Materialize(snap, win(t, "2025-05-01", "2025-05-31")))
}

func TestMaterializePendingInstallments(t *testing.T) {
	saleID := uuid.New()
	var payments []Payment
	for i := 1; i <= 3; i++ {
		payments = append(payments, Payment{
			ID:                uuid.New(),
			SaleID:            saleID,
			Kind:              PaymentInstallment,
			Amount:            amt("100"),
			DueDate:           d("2025-06-10").AddMonths(i - 1),
			Status:            PaymentPending,
			InstallmentNumber: i,
			TotalInstallments: 3,
		})
	}
	sale := Sale{ID: saleID, Client: Client{Name: "Initech"}, Total: amt("300"), SaleDate: d("2025-06-01"), Payments: payments}
	snap := Snapshot{Sales: []Sale{sale}}
	require.NoError(t, snap.Validate())

	events := Materialize(snap, win(t, "2025-06-01", "2025-07-31"))
	require.Len(t, events, 2)
	require.Equal(t, "Installment 1/3 - Initech", events[0].Description)
	require.Equal(t, "Installment 2/3 - Initech", events[1].Description)
}

func TestValidateRejectsMalformedRecords(t *testing.T) {
	base := Payment{ID: uuid.New(), Kind: PaymentAdvance, Amount: amt("10"), DueDate: d("2025-01-01"), Status: PaymentPending}

	cases := map[string]func(p *Payment){
		"zero amount":        func(p *Payment) { p.Amount = decimal.Zero },
		"paid without date":  func(p *Payment) { p.Status = PaymentPaid },
		"pending with date":  func(p *Payment) { p.PaidDate = d("2025-01-02") },
		"unknown kind":       func(p *Payment) { p.Kind = "BARTER" },
		"installment bounds": func(p *Payment) { p.Kind = PaymentInstallment; p.InstallmentNumber = 4; p.TotalInstallments = 3 },
	}
	for name, mutate := range cases {
		p := base
		mutate(&p)
		snap := Snapshot{Sales: []Sale{{ID: uuid.New(), Total: amt("10"), SaleDate: d("2025-01-01"), Payments: []Payment{p}}}}
		require.ErrorIs(t, snap.Validate(), ErrInvalidRecord, name)
	}

	exp := monthlyExpense(t, "Rent", "10", "2025-01-15", 0)
	exp.DueDate = d("2025-01-16")
	snap := Snapshot{Expenses: []Expense{exp}}
	require.ErrorIs(t, snap.Validate(), ErrInvalidRecord)
}

func TestValidateNormalisesLegacyOverdue(t *testing.T) {
	p := Payment{ID: uuid.New(), Kind: PaymentAdvance, Amount: amt("10"), DueDate: d("2025-01-01"), Status: PaymentOverdue}
	snap := Snapshot{Sales: []Sale{{ID: uuid.New(), Total: amt("10"), SaleDate: d("2025-01-01"), Payments: []Payment{p}}}}
	require.NoError(t, snap.Validate())
	require.Equal(t, PaymentPending, snap.Sales[0].Payments[0].Status)

	events := Materialize(snap, win(t, "2025-01-01", "2025-01-31"))
	require.Len(t, events, 1)
	require.True(t, IsOverdue(events[0], time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)))
}
