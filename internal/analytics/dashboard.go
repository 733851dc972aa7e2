package analytics

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/cashledger/internal/calendar"
	"github.com/odyssey-erp/cashledger/internal/cashflow"
)

// RecentSale is a compact sale row for the dashboard.
type RecentSale struct {
	ID       uuid.UUID       `json:"id"`
	Client   string          `json:"client"`
	Total    decimal.Decimal `json:"total"`
	SaleDate calendar.Date   `json:"saleDate"`
	Payments int             `json:"payments"`
}

// RecentExpense is a compact expense row for the dashboard.
type RecentExpense struct {
	ID          uuid.UUID              `json:"id"`
	Description string                 `json:"description"`
	Amount      decimal.Decimal        `json:"amount"`
	DueDate     calendar.Date          `json:"dueDate"`
	Status      cashflow.ExpenseStatus `json:"status"`
	Category    string                 `json:"category"`
	Recurring   bool                   `json:"recurring"`
}

// DashboardStats contains the current-month figures surfaced on the dashboard.
type DashboardStats struct {
	Month           string          `json:"month"`
	TotalIncome     decimal.Decimal `json:"totalIncome"`
	TotalExpenses   decimal.Decimal `json:"totalExpenses"`
	NetBalance      decimal.Decimal `json:"netBalance"`
	PendingIncome   decimal.Decimal `json:"pendingIncome"`
	PendingExpenses decimal.Decimal `json:"pendingExpenses"`
	OverduePayments int             `json:"overduePayments"`
	OverdueAmount   decimal.Decimal `json:"overdueAmount"`
	RecentSales     []RecentSale    `json:"recentSales"`
	RecentExpenses  []RecentExpense `json:"recentExpenses"`
}

// BuildDashboardStats summarises the current calendar month and lists the
// most recent sales and expenses dated on or before today.
func (s *Service) BuildDashboardStats(ctx context.Context, scope cashflow.OwnerScope) (DashboardStats, error) {
	started := time.Now()
	now := s.now()
	today := calendar.FromTime(now)
	snap, err := s.loadSnapshot(ctx, scope, nil)
	if err != nil {
		return DashboardStats{}, err
	}
	month := calendar.MonthOf(today)
	agg := cashflow.Aggregate(cashflow.Materialize(snap, month), now)
	sum := agg.Summary
	stats := DashboardStats{
		Month:           today.MonthKey(),
		TotalIncome:     sum.TotalIncome,
		TotalExpenses:   sum.TotalExpenses,
		NetBalance:      sum.NetFlow,
		PendingIncome:   sum.PendingIncome,
		PendingExpenses: sum.PendingExpenses,
		OverduePayments: sum.OverdueCount,
		OverdueAmount:   sum.OverdueAmount,
		RecentSales:     recentSales(snap.Sales, today, s.recentLimit),
		RecentExpenses:  recentExpenses(snap.Expenses, today, s.recentLimit),
	}
	s.observe("dashboard", len(agg.Entries), started)
	return stats, nil
}

func recentSales(sales []cashflow.Sale, today calendar.Date, limit int) []RecentSale {
	rows := make([]cashflow.Sale, 0, len(sales))
	for _, sale := range sales {
		if !sale.SaleDate.After(today) {
			rows = append(rows, sale)
		}
	}
	slices.SortStableFunc(rows, func(a, b cashflow.Sale) int {
		return b.SaleDate.Compare(a.SaleDate)
	})
	out := make([]RecentSale, 0, min(limit, len(rows)))
	for _, sale := range rows[:min(limit, len(rows))] {
		out = append(out, RecentSale{
			ID:       sale.ID,
			Client:   sale.Client.Name,
			Total:    sale.Total,
			SaleDate: sale.SaleDate,
			Payments: len(sale.Payments),
		})
	}
	return out
}

func recentExpenses(expenses []cashflow.Expense, today calendar.Date, limit int) []RecentExpense {
	rows := make([]cashflow.Expense, 0, len(expenses))
	for _, exp := range expenses {
		if !exp.DueDate.After(today) {
			rows = append(rows, exp)
		}
	}
	slices.SortStableFunc(rows, func(a, b cashflow.Expense) int {
		return b.DueDate.Compare(a.DueDate)
	})
	out := make([]RecentExpense, 0, min(limit, len(rows)))
	for _, exp := range rows[:min(limit, len(rows))] {
		category := cashflow.UncategorizedLabel
		if exp.Category != nil && exp.Category.Name != "" {
			category = exp.Category.Name
		}
		out = append(out, RecentExpense{
			ID:          exp.ID,
			Description: exp.Description,
			Amount:      exp.Amount,
			DueDate:     exp.DueDate,
			Status:      exp.Status,
			Category:    category,
			Recurring:   exp.IsRecurring(),
		})
	}
	return out
}
