package cashflow

import (
	"fmt"
	"strconv"

	"github.com/odyssey-erp/cashledger/internal/calendar"
)

// Materialize converts a validated snapshot into the cash events of window.
// Events are returned in production order: sales, payments, concrete expenses,
// then generated recurring occurrences.
func Materialize(snap Snapshot, window calendar.Range) []CashEvent {
	m := newMaterializer(window)
	for _, sale := range snap.Sales {
		m.addSale(sale)
	}
	for _, exp := range snap.Expenses {
		m.addConcreteExpense(exp)
	}
	for _, exp := range snap.Expenses {
		if exp.IsRecurring() {
			m.addOccurrences(exp)
		}
	}
	return m.events
}

type materializer struct {
	window calendar.Range
	events []CashEvent
	// concrete holds description|amount|date keys of row-backed expenses.
	concrete map[string]struct{}
	seen     map[string]struct{}
}

func newMaterializer(window calendar.Range) *materializer {
	return &materializer{
		window:   window,
		concrete: make(map[string]struct{}),
		seen:     make(map[string]struct{}),
	}
}

func (m *materializer) emit(ev CashEvent) {
	if _, dup := m.seen[ev.ID]; dup {
		return
	}
	m.seen[ev.ID] = struct{}{}
	m.events = append(m.events, ev)
}

func (m *materializer) addSale(sale Sale) {
	if len(sale.Payments) == 0 {
		if !m.window.Contains(sale.SaleDate) {
			return
		}
		m.emit(CashEvent{
			ID:           "sale:" + sale.ID.String(),
			Type:         TypeIncome,
			Description:  "Sale - " + sale.Client.Name,
			Amount:       sale.Total,
			DueDate:      sale.SaleDate,
			Status:       StatusPaid,
			Counterparty: sale.Client.Name,
			Source:       SourceRef{Kind: SourceSale, ID: sale.ID},
		})
		return
	}
	for _, p := range sale.Payments {
		// Paid payments belong to the window they were settled in.
		if !m.window.Contains(p.DisplayDate()) {
			continue
		}
		status := StatusPending
		if p.IsPaid() {
			status = StatusPaid
		}
		m.emit(CashEvent{
			ID:           "payment:" + p.ID.String(),
			Type:         TypeIncome,
			Description:  paymentDescription(p, sale.Client.Name),
			Amount:       p.Amount,
			DueDate:      p.DisplayDate(),
			Status:       status,
			Counterparty: sale.Client.Name,
			Source:       SourceRef{Kind: SourcePayment, ID: p.ID},
		})
	}
}

func paymentDescription(p Payment, client string) string {
	if p.Kind == PaymentInstallment {
		return fmt.Sprintf("Installment %d/%d - %s", p.InstallmentNumber, p.TotalInstallments, client)
	}
	return "Advance payment - " + client
}

func (m *materializer) addConcreteExpense(exp Expense) {
	if !m.window.Contains(exp.DueDate) {
		return
	}
	status := StatusPending
	if exp.Status == ExpensePaid {
		status = StatusPaid
	}
	kind := SourceExpense
	if exp.IsRecurring() {
		kind = SourceRecurrence
	}
	ev := expenseEvent(exp, "expense:"+exp.ID.String(), exp.DueDate, status, kind)
	m.concrete[dedupKey(ev)] = struct{}{}
	m.emit(ev)
}

func (m *materializer) addOccurrences(exp Expense) {
	for _, d := range exp.Recurrence.Occurrences(m.window) {
		id := "generated:" + exp.ID.String() + ":" + strconv.FormatInt(d.UnixMilli(), 10)
		ev := expenseEvent(exp, id, d, StatusPending, SourceRecurrence)
		if _, exists := m.concrete[dedupKey(ev)]; exists {
			continue
		}
		m.emit(ev)
	}
}

func expenseEvent(exp Expense, id string, due calendar.Date, status EventStatus, kind SourceKind) CashEvent {
	ev := CashEvent{
		ID:           id,
		Type:         TypeExpense,
		Description:  exp.Description,
		Amount:       exp.Amount,
		DueDate:      due,
		Status:       status,
		Counterparty: UncategorizedLabel,
		Source:       SourceRef{Kind: kind, ID: exp.ID},
	}
	ev.CategoryLabel = UncategorizedLabel
	if exp.Category != nil {
		catID := exp.Category.ID
		ev.CategoryID = &catID
		if exp.Category.Name != "" {
			ev.Counterparty = exp.Category.Name
			ev.CategoryLabel = exp.Category.Name
		}
	}
	return ev
}

// dedupKey compares amounts exactly; trailing zeros do not matter.
func dedupKey(ev CashEvent) string {
	return ev.Description + "|" + ev.Amount.String() + "|" + ev.DueDate.String()
}
