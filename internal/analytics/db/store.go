// Package analyticsdb reads sales, payments and expenses for the cash-flow
// engine from PostgreSQL. It never writes domain rows.
package analyticsdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/odyssey-erp/cashledger/internal/calendar"
	"github.com/odyssey-erp/cashledger/internal/cashflow"
)

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements analytics.Repository on PostgreSQL.
type Store struct {
	db Querier
}

// New constructs a Store.
func New(db Querier) *Store {
	return &Store{db: db}
}

var errNotInitialised = errors.New("analyticsdb: store not initialised")

const salesQuery = `
SELECT s.id, s.total::text, s.sale_date, c.id, c.name
FROM sales s
JOIN clients c ON c.id = s.client_id
WHERE %s
  AND ($2::date IS NULL
       OR s.sale_date BETWEEN $2 AND $3
       OR EXISTS (
           SELECT 1 FROM sale_payments p
           WHERE p.sale_id = s.id
             AND (p.due_date BETWEEN $2 AND $3 OR p.paid_date BETWEEN $2 AND $3)))
ORDER BY s.sale_date, s.id`

const paymentsQuery = `
SELECT id, sale_id, kind, amount::text, due_date, status, paid_date,
       installment_number, total_installments
FROM sale_payments
WHERE sale_id = ANY($1::uuid[])
ORDER BY due_date, installment_number NULLS FIRST, id`

const expensesQuery = `
SELECT e.id, e.description, e.amount::text, e.due_date, e.status, e.paid_at,
       e.installment_number, e.total_installments,
       e.is_recurring, e.recurrence_frequency, e.recurrence_day, e.recurrence_end_date,
       cat.id, cat.name
FROM expenses e
LEFT JOIN categories cat ON cat.id = e.category_id
WHERE %s
  AND ($2::date IS NULL OR e.due_date BETWEEN $2 AND $3 OR e.is_recurring)
ORDER BY e.due_date, e.id`

const ownersQuery = `
SELECT DISTINCT ON (COALESCE(organization_id, user_id)) user_id, organization_id
FROM (
    SELECT user_id, organization_id FROM sales
    UNION
    SELECT user_id, organization_id FROM expenses
) owners
ORDER BY COALESCE(organization_id, user_id), user_id`

// scopeClause restricts rows of alias to the owner. Organisation scopes share
// rows across members.
func scopeClause(alias string, scope cashflow.OwnerScope) (string, any) {
	if scope.OrganizationID != nil {
		return alias + ".organization_id = $1", *scope.OrganizationID
	}
	return alias + ".user_id = $1", scope.UserID
}

func windowArgs(window *calendar.Range) (pgtype.Date, pgtype.Date) {
	if window == nil {
		return pgtype.Date{}, pgtype.Date{}
	}
	return pgtype.Date{Time: window.Start.Time(), Valid: true}, pgtype.Date{Time: window.End.Time(), Valid: true}
}

// ListSales returns the owner's sales with their payments.
func (s *Store) ListSales(ctx context.Context, scope cashflow.OwnerScope, window *calendar.Range) ([]cashflow.Sale, error) {
	if s == nil || s.db == nil {
		return nil, errNotInitialised
	}
	clause, owner := scopeClause("s", scope)
	from, to := windowArgs(window)
	rows, err := s.db.Query(ctx, fmt.Sprintf(salesQuery, clause), owner, from, to)
	if err != nil {
		return nil, fmt.Errorf("analyticsdb: query sales: %w", err)
	}
	var sales []cashflow.Sale
	index := map[string]int{}
	ids := []string{}
	for rows.Next() {
		var row saleRow
		if err := rows.Scan(&row.ID, &row.Total, &row.SaleDate, &row.ClientID, &row.ClientName); err != nil {
			rows.Close()
			return nil, fmt.Errorf("analyticsdb: scan sale: %w", err)
		}
		sale, err := row.toDomain()
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[sale.ID.String()] = len(sales)
		ids = append(ids, sale.ID.String())
		sales = append(sales, sale)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analyticsdb: iterate sales: %w", err)
	}
	if len(ids) == 0 {
		return sales, nil
	}

	prow, err := s.db.Query(ctx, paymentsQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("analyticsdb: query payments: %w", err)
	}
	defer prow.Close()
	for prow.Next() {
		var row paymentRow
		if err := prow.Scan(&row.ID, &row.SaleID, &row.Kind, &row.Amount, &row.DueDate, &row.Status, &row.PaidDate, &row.InstallmentNumber, &row.TotalInstallments); err != nil {
			return nil, fmt.Errorf("analyticsdb: scan payment: %w", err)
		}
		payment, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		i, ok := index[payment.SaleID.String()]
		if !ok {
			continue
		}
		sales[i].Payments = append(sales[i].Payments, payment)
	}
	if err := prow.Err(); err != nil {
		return nil, fmt.Errorf("analyticsdb: iterate payments: %w", err)
	}
	return sales, nil
}

// ListExpenses returns the owner's expenses with recurrence rules attached.
func (s *Store) ListExpenses(ctx context.Context, scope cashflow.OwnerScope, window *calendar.Range) ([]cashflow.Expense, error) {
	if s == nil || s.db == nil {
		return nil, errNotInitialised
	}
	clause, owner := scopeClause("e", scope)
	from, to := windowArgs(window)
	rows, err := s.db.Query(ctx, fmt.Sprintf(expensesQuery, clause), owner, from, to)
	if err != nil {
		return nil, fmt.Errorf("analyticsdb: query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []cashflow.Expense
	for rows.Next() {
		var row expenseRow
		if err := rows.Scan(
			&row.ID, &row.Description, &row.Amount, &row.DueDate, &row.Status, &row.PaidAt,
			&row.InstallmentNumber, &row.TotalInstallments,
			&row.IsRecurring, &row.Frequency, &row.RecurrenceDay, &row.RecurrenceEnd,
			&row.CategoryID, &row.CategoryName,
		); err != nil {
			return nil, fmt.Errorf("analyticsdb: scan expense: %w", err)
		}
		expense, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analyticsdb: iterate expenses: %w", err)
	}
	return expenses, nil
}

// ListOwnerScopes enumerates every owner with at least one sale or expense,
// one entry per organisation.
func (s *Store) ListOwnerScopes(ctx context.Context) ([]cashflow.OwnerScope, error) {
	if s == nil || s.db == nil {
		return nil, errNotInitialised
	}
	rows, err := s.db.Query(ctx, ownersQuery)
	if err != nil {
		return nil, fmt.Errorf("analyticsdb: query owners: %w", err)
	}
	defer rows.Close()
	var scopes []cashflow.OwnerScope
	for rows.Next() {
		var user, org pgtype.UUID
		if err := rows.Scan(&user, &org); err != nil {
			return nil, fmt.Errorf("analyticsdb: scan owner: %w", err)
		}
		scopes = append(scopes, ownerScope(user, org))
	}
	return scopes, rows.Err()
}

// Ping verifies the store can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errNotInitialised
	}
	_, err := s.db.Exec(ctx, "SELECT 1")
	return err
}
