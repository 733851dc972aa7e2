package analytics

import (
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/cashledger/internal/cashflow"
)

// CategoryTotal sums the expenses of one category label.
type CategoryTotal struct {
	CategoryID *uuid.UUID      `json:"categoryId,omitempty"`
	Label      string          `json:"label"`
	Amount     decimal.Decimal `json:"amount"`
	Count      int             `json:"count"`
}

func categoryBreakdown(events []cashflow.CashEvent) []CategoryTotal {
	index := map[string]int{}
	totals := []CategoryTotal{}
	for _, ev := range events {
		if ev.Type != cashflow.TypeExpense {
			continue
		}
		label := ev.CategoryLabel
		if label == "" {
			label = cashflow.UncategorizedLabel
		}
		i, ok := index[label]
		if !ok {
			i = len(totals)
			index[label] = i
			totals = append(totals, CategoryTotal{CategoryID: ev.CategoryID, Label: label, Amount: decimal.Zero})
		}
		totals[i].Amount = totals[i].Amount.Add(ev.Amount)
		totals[i].Count++
	}

	// Collators keep internal buffers, one per call.
	col := collate.New(language.Und, collate.IgnoreCase)
	slices.SortStableFunc(totals, func(a, b CategoryTotal) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return col.CompareString(a.Label, b.Label)
	})
	return totals
}
