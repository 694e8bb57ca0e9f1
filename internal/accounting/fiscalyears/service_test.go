package fiscalyears_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/fiscalyears"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newService(cfg fiscalyears.Config) (*memstore.Store, *fiscalyears.Service) {
	store := memstore.New()
	svc := fiscalyears.NewService(store.Years(), cfg, nil)
	svc.WithNow(func() time.Time { return day(2024, time.June, 1) })
	return store, svc
}

func TestCustomYearDefaults(t *testing.T) {
	_, svc := newService(fiscalyears.Config{Enabled: true})
	fy, err := svc.CreateCustomYear(context.Background(), 2024, 0, false)
	require.NoError(t, err)
	assert.Equal(t, "FY 2024-2025", fy.Name)
	assert.Equal(t, "FY2024-25", fy.Code)
	assert.Equal(t, day(2024, time.April, 1), fy.StartDate)
	assert.Equal(t, day(2025, time.March, 31), fy.EndDate)
	assert.False(t, fy.IsActive)

	_, err = svc.CreateCustomYear(context.Background(), 2025, 13, false)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateRejectsOverlapAndInvertedRange(t *testing.T) {
	_, svc := newService(fiscalyears.Config{Enabled: true})
	ctx := context.Background()
	_, err := svc.CreateCalendarYear(ctx, 2024, false)
	require.NoError(t, err)

	_, err = svc.CreateCustomYear(ctx, 2024, 7, false)
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Create(ctx, day(2025, time.March, 1), day(2025, time.January, 1), "", "", false)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSingleActiveYear(t *testing.T) {
	_, svc := newService(fiscalyears.Config{Enabled: true})
	ctx := context.Background()
	first, err := svc.CreateCalendarYear(ctx, 2023, true)
	require.NoError(t, err)
	assert.True(t, first.IsActive)
	second, err := svc.CreateCalendarYear(ctx, 2024, false)
	require.NoError(t, err)

	_, err = svc.Activate(ctx, second.ID)
	require.NoError(t, err)

	years, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, years, 2)
	assert.Equal(t, second.ID, years[0].ID)
	active := 0
	for _, fy := range years {
		if fy.IsActive {
			active++
		}
	}
	assert.Equal(t, 1, active)

	current, err := svc.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, second.ID, current.ID)

	in, err := svc.IsDateInActive(ctx, day(2023, time.December, 31))
	require.NoError(t, err)
	assert.False(t, in)
}

func TestCurrentFallsBackToYearContainingToday(t *testing.T) {
	_, svc := newService(fiscalyears.Config{Enabled: true})
	ctx := context.Background()
	fy, err := svc.CreateCalendarYear(ctx, 2024, false)
	require.NoError(t, err)

	current, err := svc.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, fy.ID, current.ID)

	dates, err := svc.Dates(ctx, day(2024, time.August, 9))
	require.NoError(t, err)
	require.NotNil(t, dates)
	assert.Equal(t, day(2024, time.December, 31), dates.EndDate)

	none, err := svc.Dates(ctx, day(2030, time.January, 1))
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestCloseIsOneWay(t *testing.T) {
	_, svc := newService(fiscalyears.Config{Enabled: true})
	ctx := context.Background()
	fy, err := svc.CreateCalendarYear(ctx, 2023, true)
	require.NoError(t, err)

	closed, err := svc.Close(ctx, fy.ID)
	require.NoError(t, err)
	assert.True(t, closed)
	closed, err = svc.Close(ctx, fy.ID)
	require.NoError(t, err)
	assert.False(t, closed)

	reloaded, err := svc.Get(ctx, fy.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsClosed)
	assert.False(t, reloaded.IsActive)
	require.NotNil(t, reloaded.ClosedAt)

	_, err = svc.Activate(ctx, fy.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = svc.Close(ctx, 777)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDisabledManagement(t *testing.T) {
	_, svc := newService(fiscalyears.Config{})
	ctx := context.Background()
	_, err := svc.CreateCalendarYear(ctx, 2024, true)
	require.ErrorIs(t, err, shared.ErrFinancialYearDisabled)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = svc.List(ctx)
	require.ErrorIs(t, err, shared.ErrFinancialYearDisabled)

	fy, err := svc.ForDate(ctx, day(2024, time.May, 1))
	require.NoError(t, err)
	assert.Nil(t, fy)
	id, err := svc.EnsureDateOpen(ctx, day(2024, time.May, 1))
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestGuardBlocksPostingIntoClosedYear(t *testing.T) {
	store, years := newService(fiscalyears.Config{Enabled: true, AutoAssign: true})
	ctx := context.Background()
	closedYear, err := years.CreateCalendarYear(ctx, 2023, false)
	require.NoError(t, err)
	openYear, err := years.CreateCalendarYear(ctx, 2024, true)
	require.NoError(t, err)
	_, err = years.Close(ctx, closedYear.ID)
	require.NoError(t, err)

	chart := accounts.NewService(store.Accounts(), nil, nil)
	require.NoError(t, chart.SeedDefaults(ctx))
	cash, err := chart.GetByCode(ctx, "1100")
	require.NoError(t, err)
	sales, err := chart.GetByCode(ctx, "6100")
	require.NoError(t, err)

	ledger := journals.NewService(store.Journals(), nil, years, journals.Config{}, nil)
	_, err = ledger.CreateTransaction(ctx, cash.ID, sales.ID, decimal.NewFromInt(10), "late invoice",
		journals.EntryHeader{EntryDate: day(2023, time.December, 30)}, true)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	entry, err := ledger.CreateTransaction(ctx, cash.ID, sales.ID, decimal.NewFromInt(10), "invoice",
		journals.EntryHeader{EntryDate: day(2024, time.February, 2)}, true)
	require.NoError(t, err)
	require.NotNil(t, entry.FinancialYearID)
	assert.Equal(t, openYear.ID, *entry.FinancialYearID)

	outside, err := ledger.CreateTransaction(ctx, cash.ID, sales.ID, decimal.NewFromInt(1), "no year",
		journals.EntryHeader{EntryDate: day(2026, time.February, 2)}, false)
	require.NoError(t, err)
	assert.Nil(t, outside.FinancialYearID)
}

func TestContainsAndClamp(t *testing.T) {
	fy := fiscalyears.FinancialYear{StartDate: day(2024, time.April, 1), EndDate: day(2025, time.March, 31)}
	assert.True(t, fy.Contains(day(2025, time.March, 31)))
	assert.False(t, fy.Contains(day(2024, time.March, 31)))
	assert.Equal(t, fy.StartDate, fy.Clamp(day(2020, time.January, 1)))
	assert.Equal(t, fy.EndDate, fy.Clamp(day(2030, time.January, 1)))
}

func TestDraftCannotBePostedAfterYearCloses(t *testing.T) {
	store, years := newService(fiscalyears.Config{Enabled: true, AutoAssign: true})
	ctx := context.Background()
	fy, err := years.CreateCalendarYear(ctx, 2024, true)
	require.NoError(t, err)

	chart := accounts.NewService(store.Accounts(), nil, nil)
	require.NoError(t, chart.SeedDefaults(ctx))
	cash, err := chart.GetByCode(ctx, "1100")
	require.NoError(t, err)
	sales, err := chart.GetByCode(ctx, "6100")
	require.NoError(t, err)

	ledger := journals.NewService(store.Journals(), nil, years, journals.Config{}, nil)
	draft, err := ledger.CreateTransaction(ctx, cash.ID, sales.ID, decimal.NewFromInt(25), "pending invoice",
		journals.EntryHeader{EntryDate: day(2024, time.March, 3)}, false)
	require.NoError(t, err)

	closed, err := years.Close(ctx, fy.ID)
	require.NoError(t, err)
	require.True(t, closed)

	_, posted, err := ledger.PostEntry(ctx, draft.ID, 0)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	assert.False(t, posted)

	stored, err := ledger.GetEntry(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, journals.StatusDraft, stored.Status)
	balance, err := ledger.GetAccountBalance(ctx, cash.ID, day(2024, time.December, 31))
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}
