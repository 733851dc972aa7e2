package analytics

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/cashledger/internal/cashflow"
	"github.com/odyssey-erp/cashledger/internal/platform/httpx"
)

// ErrValidation marks caller input the report cannot be built from. It is the
// platform validation sentinel so handlers map it to 400 responses.
var ErrValidation = httpx.ErrValidation

// TypeFilter restricts events by direction.
type TypeFilter string

const (
	TypeAll     TypeFilter = "ALL"
	TypeIncome  TypeFilter = "INCOME"
	TypeExpense TypeFilter = "EXPENSE"
)

// StatusFilter restricts events by settlement state.
type StatusFilter string

const (
	StatusAll     StatusFilter = "ALL"
	StatusPending StatusFilter = "PENDING"
	StatusPaid    StatusFilter = "PAID"
)

// Filters narrows a report after materialisation. Zero values mean ALL.
type Filters struct {
	Type       TypeFilter   `json:"type"`
	Status     StatusFilter `json:"status"`
	CategoryID *uuid.UUID   `json:"categoryId,omitempty"`
}

// ParseFilters builds Filters from raw query values.
func ParseFilters(typ, status, categoryID string) (Filters, error) {
	f := Filters{
		Type:   TypeFilter(strings.ToUpper(strings.TrimSpace(typ))),
		Status: StatusFilter(strings.ToUpper(strings.TrimSpace(status))),
	}
	if raw := strings.TrimSpace(categoryID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return Filters{}, fmt.Errorf("%w: categoryId: %v", ErrValidation, err)
		}
		f.CategoryID = &id
	}
	f = f.normalized()
	if err := f.Validate(); err != nil {
		return Filters{}, err
	}
	return f, nil
}

func (f Filters) normalized() Filters {
	if f.Type == "" {
		f.Type = TypeAll
	}
	if f.Status == "" {
		f.Status = StatusAll
	}
	return f
}

// Validate rejects unknown filter values.
func (f Filters) Validate() error {
	f = f.normalized()
	switch f.Type {
	case TypeAll, TypeIncome, TypeExpense:
	default:
		return fmt.Errorf("%w: unknown type filter %q", ErrValidation, f.Type)
	}
	switch f.Status {
	case StatusAll, StatusPending, StatusPaid:
	default:
		return fmt.Errorf("%w: unknown status filter %q", ErrValidation, f.Status)
	}
	return nil
}

// Apply keeps the events matching every filter. Overdue events count as
// pending; the category filter only narrows expenses.
func (f Filters) Apply(events []cashflow.CashEvent) []cashflow.CashEvent {
	f = f.normalized()
	out := make([]cashflow.CashEvent, 0, len(events))
	for _, ev := range events {
		if f.Type != TypeAll && string(ev.Type) != string(f.Type) {
			continue
		}
		switch f.Status {
		case StatusPending:
			if !ev.IsPending() {
				continue
			}
		case StatusPaid:
			if ev.Status != cashflow.StatusPaid {
				continue
			}
		}
		if f.CategoryID != nil && ev.Type == cashflow.TypeExpense {
			if ev.CategoryID == nil || *ev.CategoryID != *f.CategoryID {
				continue
			}
		}
		out = append(out, ev)
	}
	return out
}
