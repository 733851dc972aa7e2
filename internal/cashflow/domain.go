// Package cashflow materialises stored sales, payments and expenses into dated
// cash events and aggregates them into balances, buckets and projections.
package cashflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/cashledger/internal/calendar"
	"github.com/odyssey-erp/cashledger/internal/recurrence"
)

// ErrInvalidRecord indicates a stored record violating engine invariants.
var ErrInvalidRecord = errors.New("cashflow: invalid record")

// PaymentKind enumerates sale payment kinds.
type PaymentKind string

const (
	PaymentAdvance     PaymentKind = "ADVANCE"
	PaymentInstallment PaymentKind = "INSTALLMENT"
)

// PaymentStatus enumerates persisted payment statuses.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	// PaymentOverdue exists in legacy rows only; it is read back as PENDING.
	PaymentOverdue PaymentStatus = "OVERDUE"
)

// ExpenseStatus enumerates persisted expense statuses.
type ExpenseStatus string

const (
	ExpensePending ExpenseStatus = "PENDING"
	ExpensePaid    ExpenseStatus = "PAID"
)

// OwnerScope identifies whose records are read.
type OwnerScope struct {
	UserID         uuid.UUID  `json:"userId"`
	OrganizationID *uuid.UUID `json:"organizationId,omitempty"`
}

// Key renders the scope for cache keys and logs.
func (s OwnerScope) Key() string {
	if s.OrganizationID != nil {
		return "org:" + s.OrganizationID.String()
	}
	return "user:" + s.UserID.String()
}

// Client is the counterparty of a sale.
type Client struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Category labels an expense.
type Category struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Payment is one scheduled or settled portion of a sale.
type Payment struct {
	ID                uuid.UUID       `json:"id"`
	SaleID            uuid.UUID       `json:"saleId"`
	Kind              PaymentKind     `json:"kind"`
	Amount            decimal.Decimal `json:"amount"`
	DueDate           calendar.Date   `json:"dueDate"`
	Status            PaymentStatus   `json:"status"`
	PaidDate          calendar.Date   `json:"paidDate"`
	InstallmentNumber int             `json:"installmentNumber,omitempty"`
	TotalInstallments int             `json:"totalInstallments,omitempty"`
}

// IsPaid reports whether the payment was settled.
func (p Payment) IsPaid() bool { return p.Status == PaymentPaid }

// DisplayDate is the paid date when settled, else the due date.
func (p Payment) DisplayDate() calendar.Date {
	if p.IsPaid() && !p.PaidDate.IsZero() {
		return p.PaidDate
	}
	return p.DueDate
}

// Sale is a stored sale with its payment children.
type Sale struct {
	ID       uuid.UUID       `json:"id"`
	Client   Client          `json:"client"`
	Total    decimal.Decimal `json:"total"`
	SaleDate calendar.Date   `json:"saleDate"`
	Payments []Payment       `json:"payments"`
}

// Expense is a stored expense row. A non-nil Recurrence marks the row as the
// anchor of an open-ended series.
type Expense struct {
	ID                uuid.UUID        `json:"id"`
	Description       string           `json:"description"`
	Amount            decimal.Decimal  `json:"amount"`
	DueDate           calendar.Date    `json:"dueDate"`
	Category          *Category        `json:"category,omitempty"`
	Status            ExpenseStatus    `json:"status"`
	PaidAt            *time.Time       `json:"paidAt,omitempty"`
	InstallmentNumber int              `json:"installmentNumber,omitempty"`
	TotalInstallments int              `json:"totalInstallments,omitempty"`
	Recurrence        *recurrence.Rule `json:"recurrence,omitempty"`
}

// IsRecurring reports whether the row carries a recurrence rule.
func (e Expense) IsRecurring() bool { return e.Recurrence != nil }

// Snapshot is an immutable read of one owner's records.
type Snapshot struct {
	Sales    []Sale    `json:"sales"`
	Expenses []Expense `json:"expenses"`
}

// Validate enforces record invariants at the engine boundary and normalises
// legacy OVERDUE payment statuses to PENDING.
func (s *Snapshot) Validate() error {
	for i := range s.Sales {
		sale := &s.Sales[i]
		if !sale.Total.IsPositive() {
			return invalid("sale %s: total must be positive", sale.ID)
		}
		if sale.SaleDate.IsZero() {
			return invalid("sale %s: sale date required", sale.ID)
		}
		for j := range sale.Payments {
			if err := validatePayment(&sale.Payments[j]); err != nil {
				return fmt.Errorf("sale %s: %w", sale.ID, err)
			}
		}
	}
	for i := range s.Expenses {
		if err := validateExpense(&s.Expenses[i]); err != nil {
			return err
		}
	}
	return nil
}

func validatePayment(p *Payment) error {
	if !p.Amount.IsPositive() {
		return invalid("payment %s: amount must be positive", p.ID)
	}
	if p.DueDate.IsZero() {
		return invalid("payment %s: due date required", p.ID)
	}
	switch p.Kind {
	case PaymentAdvance:
	case PaymentInstallment:
		if p.TotalInstallments < 1 || p.InstallmentNumber < 1 || p.InstallmentNumber > p.TotalInstallments {
			return invalid("payment %s: installment %d/%d out of range", p.ID, p.InstallmentNumber, p.TotalInstallments)
		}
	default:
		return invalid("payment %s: unknown kind %q", p.ID, p.Kind)
	}
	switch p.Status {
	case PaymentOverdue:
		p.Status = PaymentPending
		fallthrough
	case PaymentPending:
		if !p.PaidDate.IsZero() {
			return invalid("payment %s: paid date set on unpaid payment", p.ID)
		}
	case PaymentPaid:
		if p.PaidDate.IsZero() {
			return invalid("payment %s: paid payment without paid date", p.ID)
		}
	default:
		return invalid("payment %s: unknown status %q", p.ID, p.Status)
	}
	return nil
}

func validateExpense(e *Expense) error {
	if !e.Amount.IsPositive() {
		return invalid("expense %s: amount must be positive", e.ID)
	}
	if e.DueDate.IsZero() {
		return invalid("expense %s: due date required", e.ID)
	}
	switch e.Status {
	case ExpensePending, ExpensePaid:
	default:
		return invalid("expense %s: unknown status %q", e.ID, e.Status)
	}
	if e.TotalInstallments > 0 && (e.InstallmentNumber < 1 || e.InstallmentNumber > e.TotalInstallments) {
		return invalid("expense %s: installment %d/%d out of range", e.ID, e.InstallmentNumber, e.TotalInstallments)
	}
	if e.Recurrence != nil {
		if e.TotalInstallments > 0 {
			return invalid("expense %s: recurring expense cannot be an installment", e.ID)
		}
		if !e.Recurrence.Anchor.Equal(e.DueDate) {
			return invalid("expense %s: recurrence anchor %s differs from due date %s", e.ID, e.Recurrence.Anchor, e.DueDate)
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, fmt.Sprintf(format, args...))
}
