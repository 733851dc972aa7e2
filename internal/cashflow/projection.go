package cashflow

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/cashledger/internal/calendar"
)

// ProjectionMonths is the fixed projection horizon.
const ProjectionMonths = 12

// MonthPoint is one month of the forward projection. Balance is the month's
// own net, not a running total.
type MonthPoint struct {
	Month    string          `json:"month"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Balance  decimal.Decimal `json:"balance"`
}

// ProjectionRange returns the window covered by Project for anchorMonth.
func ProjectionRange(anchorMonth calendar.Date) calendar.Range {
	first := anchorMonth.FirstOfMonth()
	return calendar.Range{Start: first, End: first.AddMonths(ProjectionMonths - 1).LastOfMonth()}
}

// Project builds twelve monthly points starting at the month of anchorMonth.
// Income counts every payment due in the month whatever its status; expenses
// count concrete rows due in the month plus each recurring occurrence.
func Project(snap Snapshot, anchorMonth calendar.Date) []MonthPoint {
	first := anchorMonth.FirstOfMonth()
	points := make([]MonthPoint, 0, ProjectionMonths)
	for i := 0; i < ProjectionMonths; i++ {
		month := calendar.MonthOf(first.AddMonths(i))
		point := MonthPoint{Month: month.Start.MonthKey()}

		for _, sale := range snap.Sales {
			for _, p := range sale.Payments {
				if month.Contains(p.DueDate) {
					point.Income = point.Income.Add(p.Amount)
				}
			}
		}
		for _, exp := range snap.Expenses {
			if exp.IsRecurring() {
				occurrences := exp.Recurrence.Occurrences(month)
				point.Expenses = point.Expenses.Add(exp.Amount.Mul(decimal.NewFromInt(int64(len(occurrences)))))
				continue
			}
			if month.Contains(exp.DueDate) {
				point.Expenses = point.Expenses.Add(exp.Amount)
			}
		}
		point.Balance = point.Income.Sub(point.Expenses)
		points = append(points, point)
	}
	return points
}
