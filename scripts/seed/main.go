package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// defaultMappings routes integration keys to the default chart.
var defaultMappings = []struct {
	module string
	key    string
	code   string
}{
	{"SALES", "invoice.receivable", "1200"},
	{"SALES", "invoice.revenue", "6100"},
	{"SALES", "payment.cash", "1100"},
	{"PURCHASES", "bill.payable", "3100"},
	{"PURCHASES", "bill.expense", "8100"},
	{"PURCHASES", "payment.cash", "1100"},
	{"INVENTORY", "stock.asset", "1300"},
	{"INVENTORY", "stock.cogs", "8100"},
}

type demoInvoice struct {
	Number string
	Date   time.Time
	Lines  []integration.Line
}

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.Postgres())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	ledger := app.NewLedger(app.PostgresRepositories(pool), nil, nil, cfg, logger)

	fmt.Println("→ Seeding chart of accounts...")
	if err := ledger.Accounts.SeedDefaults(ctx); err != nil {
		log.Fatalf("seed accounts: %v", err)
	}

	if cfg.EnableFinancialYear {
		fmt.Println("→ Seeding financial year...")
		if err := seedFinancialYear(ctx, ledger, cfg.FYStartMonth); err != nil {
			log.Fatalf("seed financial year: %v", err)
		}
	}

	fmt.Println("→ Seeding account mappings...")
	if err := seedMappings(ctx, pool); err != nil {
		log.Fatalf("seed mappings: %v", err)
	}

	if os.Getenv("SEED_DEMO") != "" {
		fmt.Println("→ Seeding demo invoices...")
		if err := seedDemo(ctx, ledger); err != nil {
			log.Fatalf("seed demo: %v", err)
		}
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func seedFinancialYear(ctx context.Context, ledger *app.Ledger, startMonth int) error {
	current, err := ledger.Years.Current(ctx)
	if err != nil || current != nil {
		return err
	}
	now := time.Now().UTC()
	startYear := now.Year()
	if int(now.Month()) < startMonth {
		startYear--
	}
	_, err = ledger.Years.CreateCustomYear(ctx, startYear, startMonth, true)
	return err
}

func seedMappings(ctx context.Context, pool *pgxpool.Pool) error {
	return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		for _, m := range defaultMappings {
			tag, err := tx.Exec(ctx, `
				INSERT INTO account_mappings (module, key, account_id, created_at, updated_at)
				SELECT $1, $2, id, NOW(), NOW() FROM accounts WHERE code = $3
				ON CONFLICT (module, key) DO NOTHING`, m.module, m.key, m.code)
			if err != nil {
				return fmt.Errorf("mapping %s/%s: %w", m.module, m.key, err)
			}
			if tag.RowsAffected() == 0 {
				fmt.Printf("  skipped %s/%s\n", m.module, m.key)
			}
		}
		return nil
	})
}

func seedDemo(ctx context.Context, ledger *app.Ledger) error {
	binding := integration.NewBinding[demoInvoice](ledger.Journals, ledger.Resolver, integration.Funcs[demoInvoice]{
		Debit:    integration.Fixed[demoInvoice](integration.ByMapping("SALES", "invoice.receivable")),
		Credit:   integration.Fixed[demoInvoice](integration.ByMapping("SALES", "invoice.revenue")),
		AmountOf: func(inv demoInvoice) decimal.Decimal { return integration.LineTotal(inv.Lines) },
		Describe: func(inv demoInvoice) string { return "Invoice " + inv.Number },
		Date:     func(inv demoInvoice) time.Time { return inv.Date },
		Ref:      func(inv demoInvoice) journals.Reference { return journals.Reference{Domain: "invoice", ID: inv.Number} },
	}, integration.DefaultOptions(), nil)

	today := time.Now().UTC()
	invoices := []demoInvoice{
		{Number: "INV-DEMO-1", Date: today.AddDate(0, 0, -10), Lines: []integration.Line{
			{Qty: decimal.NewFromInt(3), UnitCost: decimal.RequireFromString("125.50")},
		}},
		{Number: "INV-DEMO-2", Date: today.AddDate(0, 0, -3), Lines: []integration.Line{
			{Qty: decimal.NewFromInt(1), UnitCost: decimal.NewFromInt(980)},
			{Qty: decimal.NewFromInt(4), UnitCost: decimal.RequireFromString("12.25")},
		}},
	}
	for _, inv := range invoices {
		existing, err := binding.Current(ctx, inv)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if _, err := binding.Created(ctx, inv); err != nil {
			return fmt.Errorf("invoice %s: %w", inv.Number, err)
		}
	}
	return nil
}
