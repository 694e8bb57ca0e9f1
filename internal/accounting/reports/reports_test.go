package reports_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/fiscalyears"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

var reportDay = time.Date(2024, time.March, 31, 9, 0, 0, 0, time.UTC)

func march(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type env struct {
	store   *memstore.Store
	chart   *accounts.Service
	ledger  *journals.Service
	reports *reports.Service
	ids     map[string]int64
}

func newEnv(t *testing.T, years reports.Years) *env {
	t.Helper()
	return newEnvOn(t, memstore.New(), years)
}

func newEnvOn(t *testing.T, store *memstore.Store, years reports.Years) *env {
	t.Helper()
	ctx := context.Background()
	chart := accounts.NewService(store.Accounts(), nil, nil)
	require.NoError(t, chart.SeedDefaults(ctx))

	ledger := journals.NewService(store.Journals(), nil, nil, journals.Config{}, nil)
	ledger.WithNow(func() time.Time { return reportDay })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := reports.NewService(ledger, chart, years, reports.NewCache(client, time.Minute), reports.Config{}, nil)
	svc.WithNow(func() time.Time { return reportDay })
	ledger.OnPosted(svc.Invalidate)
	chart.OnChange(svc.Changed)
	if fy, ok := years.(*fiscalyears.Service); ok {
		fy.OnChange(svc.Changed)
	}

	e := &env{store: store, chart: chart, ledger: ledger, reports: svc, ids: map[string]int64{}}
	list, err := chart.List(ctx, accounts.ListFilter{})
	require.NoError(t, err)
	for _, a := range list {
		e.ids[a.Code] = a.ID
	}
	return e
}

func (e *env) post(t *testing.T, debit, credit, amount string, on time.Time) journals.JournalEntry {
	t.Helper()
	entry, err := e.ledger.CreateTransaction(context.Background(), e.ids[debit], e.ids[credit], amt(amount), debit+" from "+credit,
		journals.EntryHeader{EntryDate: on}, true)
	require.NoError(t, err)
	return entry
}

// seedMarch records a sale, a salary payment and a capital injection.
func (e *env) seedMarch(t *testing.T) {
	e.post(t, "1100", "6100", "1000.00", march(5))
	e.post(t, "9100", "1100", "300.00", march(10))
	e.post(t, "1100", "5100", "500.00", march(12))
}

func TestTrialBalanceClosesAfterPostings(t *testing.T) {
	e := newEnv(t, nil)
	e.seedMarch(t)

	tb, err := e.reports.GenerateTrialBalance(context.Background(), march(31))
	require.NoError(t, err)
	assert.True(t, tb.IsBalanced)
	assert.True(t, tb.TotalDebit.Equal(amt("1500")))
	assert.True(t, tb.TotalCredit.Equal(amt("1500")))

	var codes []string
	for _, g := range tb.Groups {
		codes = append(codes, g.TypeCode)
	}
	assert.Equal(t, []string{accounts.TypeAsset, accounts.TypeEquity, accounts.TypeRevenue, accounts.TypeExpense}, codes)
	require.Len(t, tb.Groups[0].Rows, 1)
	assert.Equal(t, "1100", tb.Groups[0].Rows[0].Code)
	assert.True(t, tb.Groups[0].Rows[0].Debit.Equal(amt("1200")))
}

func TestBuildTrialBalanceMovesNegativeBalances(t *testing.T) {
	asset := accounts.AccountType{ID: 1, Code: accounts.TypeAsset, NormalBalance: accounts.NormalDebit, SortOrder: 1}
	liability := accounts.AccountType{ID: 2, Code: accounts.TypeLiability, NormalBalance: accounts.NormalCredit, SortOrder: 2}
	tb := reports.BuildTrialBalance(march(31), []reports.AccountBalance{
		{Account: accounts.Account{ID: 1, Code: "1100", AccountTypeID: 1, Type: asset}, Balance: amt("-40")},
		{Account: accounts.Account{ID: 2, Code: "3100", AccountTypeID: 2, Type: liability}, Balance: amt("-40")},
		{Account: accounts.Account{ID: 3, Code: "1200", AccountTypeID: 1, Type: asset}, Balance: decimal.Zero},
	})
	require.Len(t, tb.Groups, 2)
	require.Len(t, tb.Groups[0].Rows, 1)
	assert.True(t, tb.Groups[0].Rows[0].Credit.Equal(amt("40")))
	assert.True(t, tb.Groups[1].Rows[0].Debit.Equal(amt("40")))
	assert.True(t, tb.IsBalanced)
}

func TestBalanceSheetIncludesRetainedEarnings(t *testing.T) {
	e := newEnv(t, nil)
	e.seedMarch(t)

	bs, err := e.reports.GenerateBalanceSheet(context.Background(), march(31))
	require.NoError(t, err)
	assert.True(t, bs.Assets.Total.Equal(amt("1200")))
	assert.True(t, bs.Liabilities.Total.IsZero())
	assert.True(t, bs.Equity.Total.Equal(amt("500")))
	assert.True(t, bs.RetainedEarnings.Equal(amt("700")))
	assert.True(t, bs.TotalEquity.Equal(amt("1200")))
	assert.True(t, bs.IsBalanced)
}

func TestIncomeStatement(t *testing.T) {
	e := newEnv(t, nil)
	e.seedMarch(t)
	e.post(t, "9200", "1100", "50.00", time.Date(2024, time.February, 20, 0, 0, 0, 0, time.UTC))

	is, err := e.reports.GenerateIncomeStatement(context.Background(), march(1), march(31))
	require.NoError(t, err)
	assert.True(t, is.Revenue.Total.Equal(amt("1000")))
	assert.True(t, is.Expenses.Total.Equal(amt("300")))
	assert.True(t, is.NetIncome.Equal(amt("700")))
	assert.Nil(t, is.FinancialYear)

	ytd, err := e.reports.GenerateIncomeStatement(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), ytd.StartDate)
	assert.True(t, ytd.NetIncome.Equal(amt("650")))

	_, err = e.reports.GenerateIncomeStatement(context.Background(), march(31), march(1))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestGeneralLedgerClosesAtAccountBalance(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	e.seedMarch(t)

	gl, err := e.reports.GenerateGeneralLedger(ctx, e.ids["1100"], march(6), march(31))
	require.NoError(t, err)
	assert.True(t, gl.OpeningBalance.Equal(amt("1000")))
	require.Len(t, gl.Rows, 2)
	assert.True(t, gl.Rows[0].Credit.Equal(amt("300")))
	assert.True(t, gl.Rows[0].Balance.Equal(amt("700")))
	assert.True(t, gl.Rows[1].Balance.Equal(amt("1200")))

	for _, code := range []string{"1100", "5100", "6100", "9100"} {
		gl, err := e.reports.GenerateGeneralLedger(ctx, e.ids[code], march(1), march(31))
		require.NoError(t, err)
		bal, err := e.ledger.GetAccountBalance(ctx, e.ids[code], march(31))
		require.NoError(t, err)
		assert.Truef(t, gl.ClosingBalance.Equal(bal), "%s: ledger %s balance %s", code, gl.ClosingBalance, bal)
	}
}

func TestGeneralLedgerShowsOpeningBalanceInsideRange(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	cash, err := e.chart.Get(ctx, e.ids["1100"])
	require.NoError(t, err)
	opened := march(8)
	petty, err := e.chart.Create(ctx, accounts.AccountInput{
		AccountTypeID: cash.AccountTypeID, Code: "1150", Name: "Petty Cash", IsActive: true,
		OpeningBalance: amt("100"), OpeningBalanceDate: &opened,
	})
	require.NoError(t, err)
	e.ids["1150"] = petty.ID
	e.post(t, "9100", "1150", "30", march(20))

	gl, err := e.reports.GenerateGeneralLedger(ctx, petty.ID, march(1), march(31))
	require.NoError(t, err)
	assert.True(t, gl.OpeningBalance.IsZero())
	require.Len(t, gl.Rows, 2)
	assert.Equal(t, reports.OpeningBalanceLabel, gl.Rows[0].Description)
	assert.True(t, gl.ClosingBalance.Equal(amt("70")))

	book, err := e.reports.GenerateCashBook(ctx, march(1), march(31), reports.AccountRef{Code: "1150"})
	require.NoError(t, err)
	assert.True(t, book.ClosingBalance.Equal(amt("70")))
}

func TestCashBook(t *testing.T) {
	e := newEnv(t, nil)
	e.seedMarch(t)

	book, err := e.reports.GenerateCashBook(context.Background(), march(1), march(31), reports.AccountRef{})
	require.NoError(t, err)
	assert.Equal(t, "1100", book.CashAccount.Code)
	require.Len(t, book.Receipts, 2)
	require.Len(t, book.Payments, 1)
	assert.Equal(t, "6100", book.Receipts[0].ContraAccountCode)
	assert.Equal(t, "5100", book.Receipts[1].ContraAccountCode)
	assert.Equal(t, "9100", book.Payments[0].ContraAccountCode)
	assert.True(t, book.TotalReceipts.Equal(amt("1500")))
	assert.True(t, book.TotalPayments.Equal(amt("300")))
	assert.True(t, book.ClosingBalance.Equal(amt("1200")))
	assert.True(t, book.Payments[0].Balance.Equal(amt("700")))

	_, err = e.reports.GenerateCashBook(context.Background(), march(1), march(31), reports.AccountRef{Code: "0000"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDayBookAndJournalReport(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	e.seedMarch(t)
	_, err := e.ledger.CreateTransaction(ctx, e.ids["1100"], e.ids["6100"], amt("5"), "draft", journals.EntryHeader{EntryDate: march(5)}, false)
	require.NoError(t, err)

	book, err := e.reports.GenerateDayBook(ctx, march(5))
	require.NoError(t, err)
	assert.Equal(t, 1, book.TotalEntries)
	assert.True(t, book.TotalDebits.Equal(amt("1000")))
	assert.True(t, book.TotalCredits.Equal(amt("1000")))
	assert.True(t, book.IsBalanced)
	require.Len(t, book.Entries[0].Lines, 2)
	assert.Equal(t, "1100", book.Entries[0].Lines[0].AccountCode)

	posted, err := e.reports.GenerateJournalReport(ctx, march(1), march(31), journals.StatusPosted)
	require.NoError(t, err)
	assert.Len(t, posted.Entries, 3)
	all, err := e.reports.GenerateJournalReport(ctx, march(1), march(31), "")
	require.NoError(t, err)
	assert.Len(t, all.Entries, 4)
	assert.True(t, all.Entries[0].Date.Equal(march(5)))
}

func TestBuildDayBookOrdersCountersNumerically(t *testing.T) {
	book := reports.BuildDayBook(march(5), []journals.JournalEntry{
		{ID: 2, EntryNumber: "JE-20240305-10000", EntryDate: march(5)},
		{ID: 1, EntryNumber: "JE-20240305-9999", EntryDate: march(5)},
	})
	require.Len(t, book.Entries, 2)
	assert.Equal(t, "JE-20240305-9999", book.Entries[0].EntryNumber)
	assert.Equal(t, "JE-20240305-10000", book.Entries[1].EntryNumber)
}

func TestChartOfAccounts(t *testing.T) {
	e := newEnv(t, nil)
	e.seedMarch(t)
	rows, err := e.reports.GenerateChartOfAccounts(context.Background(), false)
	require.NoError(t, err)
	for _, row := range rows {
		if row.Code == "1100" {
			assert.Equal(t, "1000", row.ParentCode)
			assert.True(t, row.CurrentBalance.Equal(amt("1200")))
			return
		}
	}
	t.Fatal("cash account missing from chart")
}

func TestCacheInvalidatedOnPost(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	e.seedMarch(t)

	first, err := e.reports.GenerateTrialBalance(ctx, march(31))
	require.NoError(t, err)
	assert.True(t, first.TotalDebit.Equal(amt("1500")))

	silent := journals.NewService(e.store.Journals(), nil, nil, journals.Config{}, nil)
	_, err = silent.CreateTransaction(ctx, e.ids["1100"], e.ids["6100"], amt("100"), "unnotified", journals.EntryHeader{EntryDate: march(20)}, true)
	require.NoError(t, err)
	stale, err := e.reports.GenerateTrialBalance(ctx, march(31))
	require.NoError(t, err)
	assert.True(t, stale.TotalDebit.Equal(amt("1500")), "cached report served until the version bumps")

	e.post(t, "1100", "6100", "50", march(21))
	fresh, err := e.reports.GenerateTrialBalance(ctx, march(31))
	require.NoError(t, err)
	assert.True(t, fresh.TotalDebit.Equal(amt("1650")))
}

func debitOf(tb reports.TrialBalance, code string) decimal.Decimal {
	for _, g := range tb.Groups {
		for _, row := range g.Rows {
			if row.Code == code {
				return row.Debit
			}
		}
	}
	return decimal.Zero
}

func TestCacheInvalidatedOnAccountChange(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	cash, err := e.chart.GetByCode(ctx, "1100")
	require.NoError(t, err)
	petty, err := e.chart.Create(ctx, accounts.AccountInput{AccountTypeID: cash.AccountTypeID, Code: "1150", Name: "Petty cash", IsActive: true})
	require.NoError(t, err)
	e.ids["1150"] = petty.ID
	e.post(t, "1150", "6100", "100.00", march(5))

	before, err := e.reports.GenerateTrialBalance(ctx, march(31))
	require.NoError(t, err)
	assert.True(t, debitOf(before, "1150").Equal(amt("100")))

	opened := march(1)
	_, err = e.chart.Update(ctx, petty.ID, accounts.AccountInput{
		AccountTypeID:      cash.AccountTypeID,
		Code:               "1150",
		Name:               "Petty cash",
		OpeningBalance:     amt("500"),
		OpeningBalanceDate: &opened,
		IsActive:           true,
	})
	require.NoError(t, err)

	balance, err := e.ledger.GetAccountBalance(ctx, petty.ID, march(31))
	require.NoError(t, err)
	after, err := e.reports.GenerateTrialBalance(ctx, march(31))
	require.NoError(t, err)
	assert.True(t, balance.Equal(amt("600")))
	assert.True(t, debitOf(after, "1150").Equal(balance), "trial balance %s, account balance %s", debitOf(after, "1150"), balance)
}

func TestCacheInvalidatedOnFinancialYearChange(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	years := fiscalyears.NewService(store.Years(), fiscalyears.Config{Enabled: true}, nil)
	years.WithNow(func() time.Time { return reportDay })
	e := newEnvOn(t, store, years)
	e.post(t, "1100", "6100", "200.00", time.Date(2024, time.February, 10, 0, 0, 0, 0, time.UTC))
	e.post(t, "1100", "6100", "100.00", march(5))

	calendar, err := e.reports.GenerateBalanceSheet(ctx, march(31))
	require.NoError(t, err)
	assert.True(t, calendar.RetainedEarnings.Equal(amt("300")))

	_, err = years.CreateCustomYear(ctx, 2024, 3, false)
	require.NoError(t, err)
	fiscal, err := e.reports.GenerateBalanceSheet(ctx, march(31))
	require.NoError(t, err)
	assert.True(t, fiscal.RetainedEarnings.Equal(amt("100")), "retained earnings %s", fiscal.RetainedEarnings)
}

func TestYearVariants(t *testing.T) {
	ctx := context.Background()
	disabled := newEnv(t, nil)
	_, err := disabled.reports.TrialBalanceForYear(ctx, 1, nil)
	require.ErrorIs(t, err, shared.ErrFinancialYearDisabled)
	_, err = disabled.reports.IncomeStatementForYear(ctx, 1)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	store := memstore.New()
	years := fiscalyears.NewService(store.Years(), fiscalyears.Config{Enabled: true}, nil)
	years.WithNow(func() time.Time { return reportDay })
	e := newEnvOn(t, store, years)
	e.seedMarch(t)
	fy, err := years.CreateCalendarYear(ctx, 2024, true)
	require.NoError(t, err)

	outside := time.Date(2031, time.June, 1, 0, 0, 0, 0, time.UTC)
	tb, err := e.reports.TrialBalanceForYear(ctx, fy.ID, &outside)
	require.NoError(t, err)
	assert.Equal(t, fy.EndDate, tb.Date)
	require.NotNil(t, tb.FinancialYear)

	is, err := e.reports.GenerateIncomeStatement(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.NotNil(t, is.FinancialYear)
	assert.Equal(t, fy.ID, is.FinancialYear.ID)
	assert.Equal(t, fy.EndDate, is.EndDate)

	bs, err := e.reports.BalanceSheetForYear(ctx, fy.ID, nil)
	require.NoError(t, err)
	assert.True(t, bs.IsBalanced)
	assert.True(t, bs.RetainedEarnings.Equal(amt("700")))
}
