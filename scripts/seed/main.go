// Command seed loads a demo owner with clients, installment sales and
// recurring expenses so the cash-flow endpoints have data to show.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/cashledger/internal/app"
	"github.com/odyssey-erp/cashledger/internal/calendar"
	"github.com/odyssey-erp/cashledger/internal/cashflow"
	"github.com/odyssey-erp/cashledger/internal/platform/db"
	"github.com/odyssey-erp/cashledger/jobs"
)

var demoUser = uuid.MustParse("00000000-0000-4000-8000-00000000d3e0")

func main() {
	_ = godotenv.Load()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions("seed"))
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	today := calendar.FromTime(time.Now().UTC())
	err = db.WithTx(ctx, pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		fmt.Println("→ Clearing demo owner...")
		if err := clearOwner(ctx, tx); err != nil {
			return err
		}
		fmt.Println("→ Seeding categories...")
		categories, err := seedCategories(ctx, tx)
		if err != nil {
			return fmt.Errorf("seed categories: %w", err)
		}
		fmt.Println("→ Seeding sales...")
		if err := seedSales(ctx, tx, today); err != nil {
			return fmt.Errorf("seed sales: %w", err)
		}
		fmt.Println("→ Seeding expenses...")
		if err := seedExpenses(ctx, tx, today, categories); err != nil {
			return fmt.Errorf("seed expenses: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	client := jobs.NewClient(cfg.QueueOptions())
	defer func() { _ = client.Close() }()
	if _, err := client.EnqueueInvalidate(ctx, "seed"); err != nil {
		log.Printf("enqueue cache invalidation: %v", err)
	}

	fmt.Println("✓ Seed complete for user", demoUser, "at", time.Now().Format(time.RFC3339))
}

func clearOwner(ctx context.Context, tx pgx.Tx) error {
	for _, stmt := range []string{
		`DELETE FROM expenses WHERE user_id = $1`,
		`DELETE FROM sales WHERE user_id = $1`,
		`DELETE FROM categories WHERE user_id = $1`,
		`DELETE FROM clients WHERE user_id = $1`,
	} {
		if _, err := tx.Exec(ctx, stmt, demoUser); err != nil {
			return err
		}
	}
	return nil
}

func seedCategories(ctx context.Context, tx pgx.Tx) (map[string]uuid.UUID, error) {
	ids := map[string]uuid.UUID{}
	for _, name := range []string{"Rent", "Payroll", "Software", "Supplies"} {
		id := uuid.New()
		if _, err := tx.Exec(ctx, `INSERT INTO categories (id, user_id, name) VALUES ($1, $2, $3)`, id, demoUser, name); err != nil {
			return nil, err
		}
		ids[name] = id
	}
	return ids, nil
}

func seedSales(ctx context.Context, tx pgx.Tx, today calendar.Date) error {
	sales := []struct {
		client       string
		total        string
		advance      string
		installments int
		monthsAgo    int
	}{
		{"Acme Ltda", "12000.00", "2000.00", 10, 4},
		{"Globex", "4500.00", "0", 3, 2},
		{"Initech", "900.00", "900.00", 0, 1},
		{"Umbrella", "7300.50", "1000.00", 6, 0},
	}
	for _, s := range sales {
		clientID := uuid.New()
		if _, err := tx.Exec(ctx, `INSERT INTO clients (id, user_id, name) VALUES ($1, $2, $3)`, clientID, demoUser, s.client); err != nil {
			return err
		}
		saleDate := today.FirstOfMonth().AddMonths(-s.monthsAgo).AddDays(4)
		plan, err := cashflow.PlanInstallments(cashflow.InstallmentPlanInput{
			Total:        decimal.RequireFromString(s.total),
			Advance:      decimal.RequireFromString(s.advance),
			AdvanceDate:  saleDate,
			Installments: s.installments,
			FirstDueDate: saleDate.AddMonths(1),
		})
		if err != nil {
			return err
		}
		saleID := uuid.New()
		if _, err := tx.Exec(ctx,
			`INSERT INTO sales (id, user_id, client_id, total, sale_date) VALUES ($1, $2, $3, $4, $5)`,
			saleID, demoUser, clientID, s.total, saleDate.Time()); err != nil {
			return err
		}
		for _, p := range plan {
			status, paid := "PENDING", (*time.Time)(nil)
			// Everything due more than ten days ago was paid on time.
			if p.DueDate.Before(today.AddDays(-10)) {
				status = "PAID"
				t := p.DueDate.Time()
				paid = &t
			}
			var number, total *int
			if p.Kind == cashflow.PaymentInstallment {
				number, total = &p.InstallmentNumber, &p.TotalInstallments
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO sale_payments (id, sale_id, kind, amount, due_date, status, paid_date, installment_number, total_installments)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				uuid.New(), saleID, string(p.Kind), p.Amount.StringFixed(2), p.DueDate.Time(), status, paid, number, total); err != nil {
				return err
			}
		}
	}
	return nil
}

func seedExpenses(ctx context.Context, tx pgx.Tx, today calendar.Date, categories map[string]uuid.UUID) error {
	start := today.FirstOfMonth().AddMonths(-3)
	expenses := []struct {
		description string
		amount      string
		category    string
		due         calendar.Date
		frequency   string
		day         int
	}{
		{"Office rent", "2500.00", "Rent", start.AddDays(4), "MONTHLY", 5},
		{"Team payroll", "8000.00", "Payroll", start.AddDays(24), "MONTHLY", 25},
		{"Accounting suite", "1200.00", "Software", start.AddDays(9), "YEARLY", 0},
		{"Printer toner", "180.00", "Supplies", today.AddDays(-12), "", 0},
		{"Cleaning service", "90.00", "Supplies", start, "WEEKLY", 0},
	}
	for _, e := range expenses {
		var frequency *string
		var day *int
		if e.frequency != "" {
			frequency = &e.frequency
		}
		if e.day > 0 {
			day = &e.day
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO expenses (id, user_id, description, amount, due_date, category_id, status, is_recurring, recurrence_frequency, recurrence_day)
			VALUES ($1, $2, $3, $4, $5, $6, 'PENDING', $7, $8, $9)`,
			uuid.New(), demoUser, e.description, e.amount, e.due.Time(), categories[e.category], frequency != nil, frequency, day); err != nil {
			return err
		}
	}
	return nil
}
