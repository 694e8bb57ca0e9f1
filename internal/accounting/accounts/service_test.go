package accounts_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func seeded(t *testing.T) (*memstore.Store, *accounts.Service) {
	t.Helper()
	store := memstore.New()
	svc := accounts.NewService(store.Accounts(), nil, nil)
	require.NoError(t, svc.SeedDefaults(context.Background()))
	return store, svc
}

func mustCode(t *testing.T, svc *accounts.Service, code string) accounts.Account {
	t.Helper()
	a, err := svc.GetByCode(context.Background(), code)
	require.NoError(t, err)
	return a
}

func TestSeedDefaultsIsRepeatable(t *testing.T) {
	_, svc := seeded(t)
	ctx := context.Background()
	require.NoError(t, svc.SeedDefaults(ctx))

	types, err := svc.ListTypes(ctx, false)
	require.NoError(t, err)
	require.Len(t, types, 5)
	assert.Equal(t, accounts.TypeAsset, types[0].Code)
	assert.Equal(t, accounts.TypeExpense, types[4].Code)

	list, err := svc.List(ctx, accounts.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, len(accounts.DefaultChart))

	cash := mustCode(t, svc, "1100")
	assert.True(t, cash.IsSystem)
	assert.Equal(t, accounts.NormalDebit, cash.NormalBalance())
	assert.Equal(t, accounts.NormalCredit, mustCode(t, svc, "6100").NormalBalance())
}

func TestSystemRecordsKeepProtectedFields(t *testing.T) {
	_, svc := seeded(t)
	ctx := context.Background()
	cash := mustCode(t, svc, "1100")

	_, err := svc.Update(ctx, cash.ID, accounts.AccountInput{
		AccountTypeID: cash.AccountTypeID, ParentID: cash.ParentID, Code: "1101", Name: cash.Name, IsActive: true,
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	renamed, err := svc.Update(ctx, cash.ID, accounts.AccountInput{
		AccountTypeID: cash.AccountTypeID, ParentID: cash.ParentID, Code: cash.Code, Name: "Cash at Bank",
		IsActive: true, SortOrder: 9,
	})
	require.NoError(t, err)
	assert.Equal(t, "Cash at Bank", renamed.Name)
	assert.Equal(t, 9, renamed.SortOrder)

	asset := cash.Type
	_, err = svc.UpdateType(ctx, asset.ID, accounts.AccountTypeInput{
		Code: asset.Code, Name: asset.Name, NormalBalance: accounts.NormalCredit, IsActive: true,
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)
	require.ErrorIs(t, svc.DeleteType(ctx, asset.ID), shared.ErrInvalidState)
	require.ErrorIs(t, svc.Delete(ctx, cash.ID), shared.ErrInvalidState)
}

func TestCustomTypeLifecycle(t *testing.T) {
	_, svc := seeded(t)
	ctx := context.Background()
	typ, err := svc.CreateType(ctx, accounts.AccountTypeInput{
		Code: " contra ", Name: "Contra Asset", NormalBalance: accounts.NormalCredit, IsActive: true, SortOrder: 6,
	})
	require.NoError(t, err)
	assert.Equal(t, "CONTRA", typ.Code)

	_, err = svc.CreateType(ctx, accounts.AccountTypeInput{Code: "CONTRA", Name: "Again", NormalBalance: accounts.NormalDebit})
	require.ErrorIs(t, err, shared.ErrValidation)

	a, err := svc.Create(ctx, accounts.AccountInput{AccountTypeID: typ.ID, Code: "2250", Name: "Allowance", IsActive: true})
	require.NoError(t, err)
	require.ErrorIs(t, svc.DeleteType(ctx, typ.ID), shared.ErrInvalidState)

	require.NoError(t, svc.Delete(ctx, a.ID))
	require.NoError(t, svc.DeleteType(ctx, typ.ID))
	_, err = svc.GetType(ctx, typ.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateAccountValidation(t *testing.T) {
	_, svc := seeded(t)
	ctx := context.Background()
	cash := mustCode(t, svc, "1100")

	_, err := svc.Create(ctx, accounts.AccountInput{AccountTypeID: cash.AccountTypeID, Code: "1100", Name: "Dup", IsActive: true})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, accounts.AccountInput{AccountTypeID: 999, Code: "1190", Name: "Orphan", IsActive: true})
	require.ErrorIs(t, err, shared.ErrValidation)

	missing := int64(999)
	_, err = svc.Create(ctx, accounts.AccountInput{AccountTypeID: cash.AccountTypeID, ParentID: &missing, Code: "1190", Name: "Orphan", IsActive: true})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, accounts.AccountInput{AccountTypeID: cash.AccountTypeID, Code: "", Name: "Blank"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestParentCycleIsRejected(t *testing.T) {
	_, svc := seeded(t)
	ctx := context.Background()
	cash := mustCode(t, svc, "1100")

	petty, err := svc.Create(ctx, accounts.AccountInput{AccountTypeID: cash.AccountTypeID, ParentID: &cash.ID, Code: "1110", Name: "Petty Cash", IsActive: true})
	require.NoError(t, err)
	drawer, err := svc.Create(ctx, accounts.AccountInput{AccountTypeID: cash.AccountTypeID, ParentID: &petty.ID, Code: "1111", Name: "Drawer", IsActive: true})
	require.NoError(t, err)

	path, err := svc.FullPath(ctx, drawer.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000 > 1100 > 1110 > 1111", path)

	_, err = svc.Update(ctx, petty.ID, accounts.AccountInput{AccountTypeID: cash.AccountTypeID, ParentID: &drawer.ID, Code: "1110", Name: "Petty Cash", IsActive: true})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Update(ctx, petty.ID, accounts.AccountInput{AccountTypeID: cash.AccountTypeID, ParentID: &petty.ID, Code: "1110", Name: "Petty Cash", IsActive: true})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteRules(t *testing.T) {
	store, svc := seeded(t)
	ctx := context.Background()
	cash := mustCode(t, svc, "1100")
	sales := mustCode(t, svc, "6100")

	parent, err := svc.Create(ctx, accounts.AccountInput{AccountTypeID: cash.AccountTypeID, Code: "1500", Name: "Deposits", IsActive: true})
	require.NoError(t, err)
	child, err := svc.Create(ctx, accounts.AccountInput{AccountTypeID: cash.AccountTypeID, ParentID: &parent.ID, Code: "1510", Name: "Rental Deposit", IsActive: true})
	require.NoError(t, err)
	require.ErrorIs(t, svc.Delete(ctx, parent.ID), shared.ErrInvalidState)

	ledger := journals.NewService(store.Journals(), nil, nil, journals.Config{}, nil)
	_, err = ledger.CreateTransaction(ctx, child.ID, sales.ID, decimal.NewFromInt(10), "deposit",
		journals.EntryHeader{EntryDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}, false)
	require.NoError(t, err)
	require.ErrorIs(t, svc.Delete(ctx, child.ID), shared.ErrInvalidState)

	spare, err := svc.Create(ctx, accounts.AccountInput{AccountTypeID: cash.AccountTypeID, Code: "1520", Name: "Spare", IsActive: true})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, spare.ID))
	_, err = svc.Get(ctx, spare.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestTreeOrdering(t *testing.T) {
	_, svc := seeded(t)
	nodes, err := svc.Tree(context.Background(), false)
	require.NoError(t, err)
	require.NotEmpty(t, nodes)

	var roots []string
	for _, n := range nodes {
		roots = append(roots, n.Code)
	}
	assert.Equal(t, []string{"1000", "3000", "5000", "6000", "8000", "2000", "4000", "7000", "9000"}, roots)
	require.Len(t, nodes[0].Children, 3)
	assert.Equal(t, "1100", nodes[0].Children[0].Code)
}

func TestBuildTreePromotesOrphans(t *testing.T) {
	parent := int64(99)
	roots := accounts.BuildTree([]accounts.Account{
		{ID: 2, Code: "B", SortOrder: 1},
		{ID: 1, Code: "A", SortOrder: 1},
		{ID: 3, Code: "C", ParentID: &parent},
	})
	require.Len(t, roots, 3)
	assert.Equal(t, "C", roots[0].Code)
	assert.Equal(t, "A", roots[1].Code)
}

func TestColumnsPlacesNegativeBalanceOnOppositeSide(t *testing.T) {
	d, c := accounts.NormalDebit.Columns(decimal.NewFromInt(-5))
	assert.True(t, d.IsZero())
	assert.True(t, c.Equal(decimal.NewFromInt(5)))

	d, c = accounts.NormalCredit.Columns(decimal.NewFromInt(7))
	assert.True(t, d.IsZero())
	assert.True(t, c.Equal(decimal.NewFromInt(7)))

	assert.True(t, accounts.NormalCredit.Net(decimal.NewFromInt(3), decimal.NewFromInt(10)).Equal(decimal.NewFromInt(7)))
}
