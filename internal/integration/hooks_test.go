package integration_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
)

var today = time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)

type invoice struct {
	ID     int
	Number string
	Date   time.Time
	Total  decimal.Decimal
	Debit  string
}

type env struct {
	ledger   *journals.Service
	accounts *accounts.Service
	resolver *integration.AccountResolver
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	store.WithNow(func() time.Time { return today })
	acctSvc := accounts.NewService(store.Accounts(), nil, nil)
	require.NoError(t, acctSvc.SeedDefaults(ctx))
	revenue, err := acctSvc.GetByCode(ctx, "6100")
	require.NoError(t, err)
	_, err = store.Mappings().Upsert(ctx, mappings.AccountMapping{Module: "sales", Key: "invoice.revenue", AccountID: revenue.ID})
	require.NoError(t, err)
	ledger := journals.NewService(store.Journals(), nil, nil, journals.Config{}, nil)
	ledger.WithNow(func() time.Time { return today })
	return &env{
		ledger:   ledger,
		accounts: acctSvc,
		resolver: integration.NewAccountResolver(acctSvc, store.Mappings()),
	}
}

func invoiceResolver() integration.Funcs[invoice] {
	return integration.Funcs[invoice]{
		Debit: func(inv invoice) integration.AccountRef {
			if inv.Debit != "" {
				return integration.ByCode(inv.Debit)
			}
			return integration.ByCode("1200")
		},
		Credit:   integration.Fixed[invoice](integration.ByMapping("SALES", "invoice.revenue")),
		AmountOf: func(inv invoice) decimal.Decimal { return inv.Total },
		Describe: func(inv invoice) string { return "Invoice " + inv.Number },
		Date:     func(inv invoice) time.Time { return inv.Date },
		Ref: func(inv invoice) journals.Reference {
			return journals.Reference{Domain: "sales.invoice", ID: inv.Number}
		},
	}
}

func (e *env) binding(ledger integration.Ledger, opts integration.Options) *integration.Binding[invoice] {
	if ledger == nil {
		ledger = e.ledger
	}
	return integration.NewBinding[invoice](ledger, e.resolver, invoiceResolver(), opts, nil)
}

func (e *env) balance(t *testing.T, code string) decimal.Decimal {
	t.Helper()
	acc, err := e.accounts.GetByCode(context.Background(), code)
	require.NoError(t, err)
	bal, err := e.ledger.GetAccountBalance(context.Background(), acc.ID, today)
	require.NoError(t, err)
	return bal
}

func sample(total string) invoice {
	return invoice{ID: 1, Number: "INV-1", Date: time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC), Total: decimal.RequireFromString(total)}
}

func TestCreatedPostsEntry(t *testing.T) {
	e := newEnv(t)
	b := e.binding(nil, integration.DefaultOptions())

	entry, err := b.Created(context.Background(), sample("250"))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, journals.StatusPosted, entry.Status)
	assert.Equal(t, "Invoice INV-1", entry.Description)
	assert.Equal(t, "sales.invoice", entry.Reference.Domain)
	assert.Equal(t, time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC), entry.EntryDate)
	assert.True(t, e.balance(t, "1200").Equal(decimal.NewFromInt(250)))
	assert.True(t, e.balance(t, "6100").Equal(decimal.NewFromInt(250)))
}

func TestCreatedSkipsNonPositiveAndUnresolved(t *testing.T) {
	e := newEnv(t)
	b := e.binding(nil, integration.DefaultOptions())
	ctx := context.Background()

	entry, err := b.Created(ctx, sample("0"))
	require.NoError(t, err)
	assert.Nil(t, entry)

	unknown := sample("10")
	unknown.Debit = "0000"
	entry, err = b.Created(ctx, unknown)
	require.NoError(t, err)
	assert.Nil(t, entry)

	unmapped := integration.NewBinding[invoice](e.ledger, e.resolver, integration.Funcs[invoice]{
		Debit:    integration.Fixed[invoice](integration.ByCode("1100")),
		Credit:   integration.Fixed[invoice](integration.ByMapping("SALES", "invoice.discount")),
		AmountOf: func(inv invoice) decimal.Decimal { return inv.Total },
	}, integration.DefaultOptions(), nil)
	entry, err = unmapped.Created(ctx, sample("10"))
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.True(t, e.balance(t, "1100").IsZero())
}

func TestDraftWhenAutoPostDisabled(t *testing.T) {
	e := newEnv(t)
	b := e.binding(nil, integration.Options{ReverseOnDelete: true})
	ctx := context.Background()

	entry, err := b.Created(ctx, sample("40"))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, journals.StatusDraft, entry.Status)
	assert.True(t, e.balance(t, "1200").IsZero())

	reversal, err := b.Deleted(ctx, sample("40"))
	require.NoError(t, err)
	assert.Nil(t, reversal)
	current, err := b.Current(ctx, sample("40"))
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, journals.StatusDraft, current.Status)
}

func TestUpdatedReversesAndRecreates(t *testing.T) {
	e := newEnv(t)
	b := e.binding(nil, integration.Options{AutoPost: true, UpdateOnChange: true})
	ctx := context.Background()

	first, err := b.Created(ctx, sample("250"))
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := b.Updated(ctx, sample("300"))
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, e.balance(t, "1200").Equal(decimal.NewFromInt(300)))

	history, err := b.History(ctx, sample("300"))
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, second.ID, history[0].ID)
	reversal := history[1]
	require.NotNil(t, reversal.ReversalOfID)
	assert.Equal(t, first.ID, *reversal.ReversalOfID)
	assert.Equal(t, "Updated: Invoice INV-1", reversal.Description)
	assert.Equal(t, journals.StatusReversed, history[2].Status)

	current, err := b.Current(ctx, sample("300"))
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, second.ID, current.ID)
}

func TestUpdatedIgnoredWithoutOption(t *testing.T) {
	e := newEnv(t)
	b := e.binding(nil, integration.DefaultOptions())
	ctx := context.Background()

	_, err := b.Created(ctx, sample("250"))
	require.NoError(t, err)
	entry, err := b.Updated(ctx, sample("300"))
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.True(t, e.balance(t, "1200").Equal(decimal.NewFromInt(250)))
}

func TestDeletedReversesOnce(t *testing.T) {
	e := newEnv(t)
	b := e.binding(nil, integration.Options{AutoPost: true, ReverseOnDelete: true})
	ctx := context.Background()

	_, err := b.Created(ctx, sample("125.50"))
	require.NoError(t, err)

	reversal, err := b.Deleted(ctx, sample("125.50"))
	require.NoError(t, err)
	require.NotNil(t, reversal)
	assert.Equal(t, "Reversed: Invoice INV-1", reversal.Description)
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), reversal.EntryDate)
	assert.True(t, e.balance(t, "1200").IsZero())

	again, err := b.Deleted(ctx, sample("125.50"))
	require.NoError(t, err)
	assert.Nil(t, again)

	current, err := b.Current(ctx, sample("125.50"))
	require.NoError(t, err)
	assert.Nil(t, current)
}

type flakyLedger struct {
	integration.Ledger
	failures int
	calls    int
}

func (l *flakyLedger) CreateTransaction(ctx context.Context, debit, credit int64, amount decimal.Decimal, description string, extra journals.EntryHeader, autoPost bool) (journals.JournalEntry, error) {
	l.calls++
	if l.calls <= l.failures {
		return journals.JournalEntry{}, &shared.ConcurrencyConflictError{Resource: "entry number", Err: errors.New("duplicate key")}
	}
	return l.Ledger.CreateTransaction(ctx, debit, credit, amount, description, extra, autoPost)
}

func TestCreatedRetriesConflicts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	flaky := &flakyLedger{Ledger: e.ledger, failures: 2}
	entry, err := e.binding(flaky, integration.DefaultOptions()).Created(ctx, sample("10"))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 3, flaky.calls)

	exhausted := &flakyLedger{Ledger: e.ledger, failures: 5}
	_, err = e.binding(exhausted, integration.DefaultOptions()).Created(ctx, sample("10"))
	require.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.Equal(t, 3, exhausted.calls)
}

func TestResolverForms(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	cash, err := e.accounts.GetByCode(ctx, "1100")
	require.NoError(t, err)

	id, ok, err := e.resolver.Resolve(ctx, integration.ByID(cash.ID))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, cash.ID, id)

	_, ok, err = e.resolver.Resolve(ctx, integration.AccountRef{})
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = e.resolver.Resolve(ctx, integration.ByID(999))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = e.resolver.Resolve(ctx, integration.ByMapping("sales", "invoice.revenue"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLineTotal(t *testing.T) {
	total := integration.LineTotal([]integration.Line{
		{Qty: decimal.NewFromInt(3), UnitCost: decimal.RequireFromString("1.335")},
		{Qty: decimal.RequireFromString("0.5"), UnitCost: decimal.NewFromInt(10)},
	})
	assert.Equal(t, "9.01", total.StringFixed(2))
}
