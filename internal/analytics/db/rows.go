package analyticsdb

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/cashledger/internal/calendar"
	"github.com/odyssey-erp/cashledger/internal/cashflow"
	"github.com/odyssey-erp/cashledger/internal/recurrence"
)

type saleRow struct {
	ID         pgtype.UUID
	Total      string
	SaleDate   pgtype.Date
	ClientID   pgtype.UUID
	ClientName string
}

func (r saleRow) toDomain() (cashflow.Sale, error) {
	id := uuid.UUID(r.ID.Bytes)
	total, err := decimal.NewFromString(r.Total)
	if err != nil {
		return cashflow.Sale{}, fmt.Errorf("analyticsdb: sale %s total: %w", id, err)
	}
	return cashflow.Sale{
		ID:       id,
		Client:   cashflow.Client{ID: uuid.UUID(r.ClientID.Bytes), Name: r.ClientName},
		Total:    total,
		SaleDate: dateOf(r.SaleDate),
	}, nil
}

type paymentRow struct {
	ID                pgtype.UUID
	SaleID            pgtype.UUID
	Kind              string
	Amount            string
	DueDate           pgtype.Date
	Status            string
	PaidDate          pgtype.Date
	InstallmentNumber pgtype.Int4
	TotalInstallments pgtype.Int4
}

func (r paymentRow) toDomain() (cashflow.Payment, error) {
	id := uuid.UUID(r.ID.Bytes)
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return cashflow.Payment{}, fmt.Errorf("analyticsdb: payment %s amount: %w", id, err)
	}
	return cashflow.Payment{
		ID:                id,
		SaleID:            uuid.UUID(r.SaleID.Bytes),
		Kind:              cashflow.PaymentKind(r.Kind),
		Amount:            amount,
		DueDate:           dateOf(r.DueDate),
		Status:            cashflow.PaymentStatus(r.Status),
		PaidDate:          dateOf(r.PaidDate),
		InstallmentNumber: intOf(r.InstallmentNumber),
		TotalInstallments: intOf(r.TotalInstallments),
	}, nil
}

type expenseRow struct {
	ID                pgtype.UUID
	Description       string
	Amount            string
	DueDate           pgtype.Date
	Status            string
	PaidAt            pgtype.Timestamptz
	InstallmentNumber pgtype.Int4
	TotalInstallments pgtype.Int4
	IsRecurring       bool
	Frequency         pgtype.Text
	RecurrenceDay     pgtype.Int4
	RecurrenceEnd     pgtype.Date
	CategoryID        pgtype.UUID
	CategoryName      pgtype.Text
}

func (r expenseRow) toDomain() (cashflow.Expense, error) {
	id := uuid.UUID(r.ID.Bytes)
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return cashflow.Expense{}, fmt.Errorf("analyticsdb: expense %s amount: %w", id, err)
	}
	exp := cashflow.Expense{
		ID:                id,
		Description:       r.Description,
		Amount:            amount,
		DueDate:           dateOf(r.DueDate),
		Status:            cashflow.ExpenseStatus(r.Status),
		InstallmentNumber: intOf(r.InstallmentNumber),
		TotalInstallments: intOf(r.TotalInstallments),
	}
	if r.PaidAt.Valid {
		paidAt := r.PaidAt.Time.UTC()
		exp.PaidAt = &paidAt
	}
	if r.CategoryID.Valid {
		exp.Category = &cashflow.Category{ID: uuid.UUID(r.CategoryID.Bytes), Name: r.CategoryName.String}
	}
	if r.IsRecurring {
		freq, err := recurrence.ParseFrequency(r.Frequency.String)
		if err != nil {
			return cashflow.Expense{}, fmt.Errorf("analyticsdb: expense %s: %w", id, err)
		}
		rule, err := recurrence.NewRule(freq, exp.DueDate, intOf(r.RecurrenceDay), dateOf(r.RecurrenceEnd))
		if err != nil {
			return cashflow.Expense{}, fmt.Errorf("analyticsdb: expense %s: %w", id, err)
		}
		exp.Recurrence = &rule
	}
	return exp, nil
}

func ownerScope(user, org pgtype.UUID) cashflow.OwnerScope {
	scope := cashflow.OwnerScope{UserID: uuid.UUID(user.Bytes)}
	if org.Valid {
		orgID := uuid.UUID(org.Bytes)
		scope.OrganizationID = &orgID
	}
	return scope
}

func dateOf(d pgtype.Date) calendar.Date {
	if !d.Valid {
		return calendar.Date{}
	}
	return calendar.FromTime(d.Time)
}

func intOf(v pgtype.Int4) int {
	if !v.Valid {
		return 0
	}
	return int(v.Int32)
}
