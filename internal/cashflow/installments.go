package cashflow

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/cashledger/internal/calendar"
	"github.com/odyssey-erp/cashledger/internal/money"
)

// InstallmentPlanInput describes a sale to be split into installments.
type InstallmentPlanInput struct {
	Total        decimal.Decimal
	Advance      decimal.Decimal
	AdvanceDate  calendar.Date
	Installments int
	FirstDueDate calendar.Date
}

// PlannedPayment is one line of an installment preview.
type PlannedPayment struct {
	Kind              PaymentKind     `json:"kind"`
	Amount            decimal.Decimal `json:"amount"`
	DueDate           calendar.Date   `json:"dueDate"`
	InstallmentNumber int             `json:"installmentNumber,omitempty"`
	TotalInstallments int             `json:"totalInstallments,omitempty"`
}

// PlanInstallments splits total minus the advance into monthly installments.
// Each installment is rounded down to cents and the last absorbs the residual.
func PlanInstallments(in InstallmentPlanInput) ([]PlannedPayment, error) {
	if !in.Total.IsPositive() {
		return nil, invalid("plan: total must be positive")
	}
	if in.Advance.IsNegative() || in.Advance.GreaterThan(in.Total) {
		return nil, invalid("plan: advance must be between 0 and total")
	}
	if in.FirstDueDate.IsZero() {
		return nil, invalid("plan: first due date required")
	}

	var plan []PlannedPayment
	if in.Advance.IsPositive() {
		date := in.AdvanceDate
		if date.IsZero() {
			date = in.FirstDueDate
		}
		plan = append(plan, PlannedPayment{Kind: PaymentAdvance, Amount: in.Advance, DueDate: date})
	}

	remaining := in.Total.Sub(in.Advance)
	if remaining.IsZero() {
		return plan, nil
	}
	if in.Installments < 1 {
		return nil, invalid("plan: installments must be at least 1")
	}
	parts, err := money.Split(remaining, in.Installments)
	if err != nil {
		return nil, invalid("plan: %v", err)
	}
	for i, amount := range parts {
		plan = append(plan, PlannedPayment{
			Kind:              PaymentInstallment,
			Amount:            amount,
			DueDate:           in.FirstDueDate.AddMonths(i),
			InstallmentNumber: i + 1,
			TotalInstallments: in.Installments,
		})
	}
	return plan, nil
}
