package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/cashledger/internal/calendar"
	"github.com/odyssey-erp/cashledger/internal/cashflow"
)

// ReportItem is one row of the windowed report. DisplayStatus shows OVERDUE
// for pending events past due at generation time.
type ReportItem struct {
	cashflow.Entry
	DisplayStatus cashflow.EventStatus `json:"displayStatus"`
	DaysOverdue   int                  `json:"daysOverdue,omitempty"`
}

// CashFlowReport is the windowed cash-flow view of one owner.
type CashFlowReport struct {
	Window            calendar.Range          `json:"window"`
	GeneratedAt       time.Time               `json:"generatedAt"`
	Filters           Filters                 `json:"filters"`
	Items             []ReportItem            `json:"items"`
	PeriodAnalysis    []cashflow.PeriodBucket `json:"periodAnalysis"`
	MonthlyProjection []cashflow.MonthPoint   `json:"monthlyProjection"`
	Summary           cashflow.Summary        `json:"summary"`
	Overdue           []cashflow.OverdueItem  `json:"overdue"`
	CategoryBreakdown []CategoryTotal         `json:"categoryBreakdown"`
}

// BuildCashFlowReport materialises and aggregates the owner's records over
// [start, end]. The 12-month projection is anchored on the current month.
func (s *Service) BuildCashFlowReport(ctx context.Context, scope cashflow.OwnerScope, start, end calendar.Date, filters Filters) (CashFlowReport, error) {
	started := time.Now()
	window, err := calendar.NewRange(start, end)
	if err != nil {
		return CashFlowReport{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := filters.Validate(); err != nil {
		return CashFlowReport{}, err
	}
	now := s.now()
	covering := window.Union(cashflow.ProjectionRange(calendar.FromTime(now)))
	snap, err := s.loadSnapshot(ctx, scope, &covering)
	if err != nil {
		return CashFlowReport{}, err
	}
	report := buildReport(snap, window, filters, now)
	s.observe("cashflow", len(report.Items), started)
	s.logger.DebugContext(ctx, "cash flow report built",
		slog.String("scope", scope.Key()),
		slog.String("window", window.String()),
		slog.Int("items", len(report.Items)),
	)
	return report, nil
}

func buildReport(snap cashflow.Snapshot, window calendar.Range, filters Filters, now time.Time) CashFlowReport {
	filters = filters.normalized()
	events := filters.Apply(cashflow.Materialize(snap, window))
	agg := cashflow.Aggregate(events, now)
	agg.Summary.TotalSales = cashflow.TotalSales(snap.Sales, window)

	items := make([]ReportItem, 0, len(agg.Entries))
	for _, entry := range agg.Entries {
		item := ReportItem{Entry: entry, DisplayStatus: entry.Status}
		if cashflow.IsOverdue(entry.CashEvent, now) {
			item.DisplayStatus = cashflow.StatusOverdue
			item.DaysOverdue = entry.DueDate.DaysSince(now)
		}
		items = append(items, item)
	}

	return CashFlowReport{
		Window:            window,
		GeneratedAt:       now,
		Filters:           filters,
		Items:             items,
		PeriodAnalysis:    agg.Buckets,
		MonthlyProjection: cashflow.Project(snap, calendar.FromTime(now)),
		Summary:           agg.Summary,
		Overdue:           agg.Overdue,
		CategoryBreakdown: categoryBreakdown(events),
	}
}
