// Package reports builds the financial statements from ledger balances.
package reports

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/fiscalyears"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// DefaultCashAccountCode is the cash book account when none is configured.
const DefaultCashAccountCode = "1100"

// Ledger is the read side of the ledger engine.
type Ledger interface {
	GetAccountBalance(ctx context.Context, accountID int64, asOf time.Time) (decimal.Decimal, error)
	GetAccountBalances(ctx context.Context, list []accounts.Account, asOf time.Time) (map[int64]decimal.Decimal, error)
	PeriodTotals(ctx context.Context, accountID int64, start, end time.Time) (balances.Totals, error)
	AccountActivity(ctx context.Context, accountID int64, start, end time.Time) ([]journals.ActivityLine, error)
	EntriesOn(ctx context.Context, date time.Time) ([]journals.JournalEntry, error)
	EntriesBetween(ctx context.Context, start, end time.Time, status journals.Status) ([]journals.JournalEntry, error)
}

// Chart reads the chart of accounts.
type Chart interface {
	List(ctx context.Context, filter accounts.ListFilter) ([]accounts.Account, error)
	Get(ctx context.Context, id int64) (accounts.Account, error)
	GetByCode(ctx context.Context, code string) (accounts.Account, error)
}

// Years resolves financial years.
type Years interface {
	Enabled() bool
	Get(ctx context.Context, id int64) (fiscalyears.FinancialYear, error)
	ForDate(ctx context.Context, date time.Time) (*fiscalyears.FinancialYear, error)
	Current(ctx context.Context) (*fiscalyears.FinancialYear, error)
}

// Config tunes report defaults.
type Config struct {
	CashAccountCode string
}

// Service generates reports, caching the statements in Redis.
type Service struct {
	ledger Ledger
	chart  Chart
	years  Years
	cache  *Cache
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	builds singleflight.Group
}

// NewService wires the report generator. years and cache may be nil.
func NewService(ledger Ledger, chart Chart, years Years, cache *Cache, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CashAccountCode == "" {
		cfg.CashAccountCode = DefaultCashAccountCode
	}
	return &Service{ledger: ledger, chart: chart, years: years, cache: cache, cfg: cfg, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Invalidate bumps the cache version. It is registered as a ledger post
// listener.
func (s *Service) Invalidate(ctx context.Context, entries []journals.JournalEntry) {
	s.bump(ctx, slog.Int("entries", len(entries)))
}

// Changed bumps the cache version after a chart or financial year change.
func (s *Service) Changed(ctx context.Context, entity string, id int64) {
	s.bump(ctx, slog.String("entity", entity), slog.Int64("id", id))
}

func (s *Service) bump(ctx context.Context, attrs ...any) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("report cache bump failed", append(attrs, slog.Any("error", err))...)
	}
}

func (s *Service) today() time.Time {
	return shared.DateOnly(s.now())
}

func (s *Service) yearFor(ctx context.Context, date time.Time) (*fiscalyears.FinancialYear, error) {
	if s.years == nil {
		return nil, nil
	}
	return s.years.ForDate(ctx, date)
}

func (s *Service) yearByID(ctx context.Context, id int64) (fiscalyears.FinancialYear, error) {
	if s.years == nil || !s.years.Enabled() {
		return fiscalyears.FinancialYear{}, shared.ErrFinancialYearDisabled
	}
	return s.years.Get(ctx, id)
}

// cached serves a report from the cache, collapsing concurrent builds of
// the same key into one.
func cached[T any](ctx context.Context, s *Service, parts []string, build func(context.Context) (T, error)) (T, error) {
	var zero T
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		s.logger.Warn("report cache unavailable", slog.Any("error", err))
		return build(ctx)
	}
	resultChan := s.builds.DoChan(key, func() (any, error) {
		var out T
		err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
			return build(ctx)
		})
		return out, err
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// balancesOf loads the balance of every account in list at asOf.
func (s *Service) balancesOf(ctx context.Context, list []accounts.Account, asOf time.Time) ([]AccountBalance, error) {
	bal, err := s.ledger.GetAccountBalances(ctx, list, asOf)
	if err != nil {
		return nil, err
	}
	out := make([]AccountBalance, 0, len(list))
	for _, acc := range list {
		out = append(out, AccountBalance{Account: acc, Balance: bal[acc.ID]})
	}
	return out, nil
}

func (s *Service) activeOfType(ctx context.Context, typeCode string) ([]accounts.Account, error) {
	return s.chart.List(ctx, accounts.ListFilter{ActiveOnly: true, TypeCode: typeCode})
}

// LedgerAccount identifies the account a ledger report is about.
type LedgerAccount struct {
	ID            int64                  `json:"id"`
	Code          string                 `json:"code"`
	Name          string                 `json:"name"`
	NormalBalance accounts.NormalBalance `json:"normal_balance"`
}

func ledgerAccount(a accounts.Account) LedgerAccount {
	return LedgerAccount{ID: a.ID, Code: a.Code, Name: a.Name, NormalBalance: a.NormalBalance()}
}

func checkRange(start, end time.Time) error {
	if end.Before(start) {
		return shared.Invalid("end_date", "must not be before start_date")
	}
	return nil
}
