package cashflow

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/cashledger/internal/calendar"
)

// EventType classifies the direction of a cash event.
type EventType string

const (
	TypeIncome  EventType = "INCOME"
	TypeExpense EventType = "EXPENSE"
)

// EventStatus is the settlement state of a cash event. Materialised events are
// only PENDING or PAID; OVERDUE is a view computed against "now".
type EventStatus string

const (
	StatusPending EventStatus = "PENDING"
	StatusPaid    EventStatus = "PAID"
	StatusOverdue EventStatus = "OVERDUE"
)

// SourceKind names the stored record an event came from.
type SourceKind string

const (
	SourceSale       SourceKind = "SALE"
	SourcePayment    SourceKind = "SALE_PAYMENT"
	SourceExpense    SourceKind = "EXPENSE"
	SourceRecurrence SourceKind = "RECURRING_EXPENSE"
)

// SourceRef points back at the originating record.
type SourceRef struct {
	Kind SourceKind `json:"kind"`
	ID   uuid.UUID  `json:"id"`
}

// UncategorizedLabel is shown for expenses without a category.
const UncategorizedLabel = "Uncategorized"

// CashEvent is one dated movement of money derived from stored records.
type CashEvent struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       calendar.Date   `json:"dueDate"`
	Status        EventStatus     `json:"status"`
	Counterparty  string          `json:"counterparty"`
	CategoryLabel string          `json:"categoryLabel,omitempty"`
	CategoryID    *uuid.UUID      `json:"categoryId,omitempty"`
	Source        SourceRef       `json:"source"`
}

// Signed returns the amount with expenses negated.
func (e CashEvent) Signed() decimal.Decimal {
	if e.Type == TypeExpense {
		return e.Amount.Neg()
	}
	return e.Amount
}

// IsPending reports whether the event is still unsettled.
func (e CashEvent) IsPending() bool {
	return e.Status == StatusPending || e.Status == StatusOverdue
}
