package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/fiscalyears"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	core "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repositories bundles the storage behind the ledger services.
type Repositories struct {
	Accounts accounts.Repository
	Journals journals.Repository
	Years    fiscalyears.Repository
	Mappings mappings.Repository
}

// PostgresRepositories returns the pgx backed repositories.
func PostgresRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Accounts: accounts.NewRepository(pool),
		Journals: journals.NewRepository(pool),
		Years:    fiscalyears.NewRepository(pool),
		Mappings: mappings.NewRepository(pool),
	}
}

// MemoryRepositories returns repositories sharing one in-memory store.
func MemoryRepositories(store *memstore.Store) Repositories {
	return Repositories{
		Accounts: store.Accounts(),
		Journals: store.Journals(),
		Years:    store.Years(),
		Mappings: store.Mappings(),
	}
}

// Ledger holds the wired ledger services.
type Ledger struct {
	Accounts *accounts.Service
	Journals *journals.Service
	Years    *fiscalyears.Service
	Reports  *reports.Service
	Mappings mappings.Repository
	Resolver *integration.AccountResolver
}

// NewLedger wires the services. audit and cache may be nil.
func NewLedger(repos Repositories, audit core.AuditRecorder, cache *reports.Cache, cfg *Config, logger *slog.Logger) *Ledger {
	if cfg == nil {
		cfg = &Config{EntryPrefix: "JE", CashAccountCode: reports.DefaultCashAccountCode, EnableFinancialYear: true, AutoAssignFY: true, FYStartMonth: fiscalyears.DefaultStartMonth}
	}
	if logger == nil {
		logger = slog.Default()
	}
	years := fiscalyears.NewService(repos.Years, fiscalyears.Config{
		Enabled:    cfg.EnableFinancialYear,
		AutoAssign: cfg.AutoAssignFY,
		StartMonth: cfg.FYStartMonth,
	}, logger.With(slog.String("component", "fiscalyears")))
	chart := accounts.NewService(repos.Accounts, audit, logger.With(slog.String("component", "accounts")))
	ledger := journals.NewService(repos.Journals, audit, years, journals.Config{
		EntryPrefix: cfg.EntryPrefix,
		Tolerance:   cfg.BalanceTolerance,
	}, logger.With(slog.String("component", "journals")))
	rep := reports.NewService(ledger, chart, years, cache, reports.Config{CashAccountCode: cfg.CashAccountCode}, logger.With(slog.String("component", "reports")))
	ledger.OnPosted(rep.Invalidate)
	chart.OnChange(rep.Changed)
	years.OnChange(rep.Changed)
	return &Ledger{
		Accounts: chart,
		Journals: ledger,
		Years:    years,
		Reports:  rep,
		Mappings: repos.Mappings,
		Resolver: integration.NewAccountResolver(chart, repos.Mappings),
	}
}

// RouterParams returns router dependencies serving l. idempotency may be nil.
func (l *Ledger) RouterParams(logger *slog.Logger, cfg *Config, idempotency *core.IdempotencyStore) RouterParams {
	if logger == nil {
		logger = slog.Default()
	}
	reportsHandler := reports.NewHandler(logger, l.Reports)
	return RouterParams{
		Logger:          logger,
		Config:          cfg,
		AccountsHandler: accounts.NewHandler(logger, l.Accounts, l.Journals, reportsHandler.Chart),
		JournalsHandler: journals.NewHandler(logger, l.Journals, idempotency),
		YearsHandler:    fiscalyears.NewHandler(logger, l.Years),
		ReportsHandler:  reportsHandler,
		MappingsHandler: mappings.NewHandler(logger, l.Mappings),
	}
}
