// Package export serialises cash-flow reports for download.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/odyssey-erp/cashledger/internal/analytics"
	"github.com/odyssey-erp/cashledger/internal/cashflow"
	"github.com/odyssey-erp/cashledger/internal/money"
)

// WriteReportCSV writes the summary, items, period analysis and projection
// sections separated by blank lines.
func WriteReportCSV(w io.Writer, report analytics.CashFlowReport) error {
	sections := []func(*csv.Writer) error{
		func(cw *csv.Writer) error { return writeSummary(cw, report) },
		func(cw *csv.Writer) error { return writeItems(cw, report.Items) },
		func(cw *csv.Writer) error { return writePeriods(cw, report.PeriodAnalysis) },
		func(cw *csv.Writer) error { return writeProjection(cw, report.MonthlyProjection) },
	}
	for i, section := range sections {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		writer := csv.NewWriter(w)
		if err := section(writer); err != nil {
			return err
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return err
		}
	}
	return nil
}

func writeSummary(w *csv.Writer, report analytics.CashFlowReport) error {
	s := report.Summary
	records := [][]string{
		{"Metric", "Value"},
		{"Window", report.Window.String()},
		{"Total Income", money.Format(s.TotalIncome)},
		{"Total Expenses", money.Format(s.TotalExpenses)},
		{"Net Flow", money.Format(s.NetFlow)},
		{"Pending Income", money.Format(s.PendingIncome)},
		{"Pending Expenses", money.Format(s.PendingExpenses)},
		{"Overdue Amount", money.Format(s.OverdueAmount)},
		{"Overdue Count", strconv.Itoa(s.OverdueCount)},
		{"Total Sales", money.Format(s.TotalSales)},
	}
	return w.WriteAll(records)
}

// WriteItemsCSV emits report rows with their running balance.
func WriteItemsCSV(w io.Writer, items []analytics.ReportItem) error {
	writer := csv.NewWriter(w)
	if err := writeItems(writer, items); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func writeItems(w *csv.Writer, items []analytics.ReportItem) error {
	if err := w.Write([]string{"Date", "Type", "Description", "Counterparty", "Category", "Status", "Amount", "Running Balance"}); err != nil {
		return err
	}
	for _, item := range items {
		category := item.CategoryLabel
		if item.Type == cashflow.TypeIncome {
			category = ""
		}
		if err := w.Write([]string{
			item.DueDate.String(),
			string(item.Type),
			item.Description,
			item.Counterparty,
			category,
			string(item.DisplayStatus),
			money.Format(item.Signed()),
			money.Format(item.Balance),
		}); err != nil {
			return err
		}
	}
	return nil
}

func writePeriods(w *csv.Writer, buckets []cashflow.PeriodBucket) error {
	if err := w.Write([]string{"Date", "Income", "Expenses", "Net Flow", "Events"}); err != nil {
		return err
	}
	for _, b := range buckets {
		if err := w.Write([]string{
			b.Date.String(),
			money.Format(b.Income),
			money.Format(b.Expenses),
			money.Format(b.NetFlow),
			strconv.Itoa(len(b.Events)),
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeProjection(w *csv.Writer, points []cashflow.MonthPoint) error {
	if err := w.Write([]string{"Month", "Income", "Expenses", "Balance"}); err != nil {
		return err
	}
	for _, p := range points {
		if err := w.Write([]string{p.Month, money.Format(p.Income), money.Format(p.Expenses), money.Format(p.Balance)}); err != nil {
			return err
		}
	}
	return nil
}
