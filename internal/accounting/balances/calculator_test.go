package balances

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

type line struct {
	date   time.Time
	typ    string
	amount decimal.Decimal
}

type fakeStore struct {
	lines     []line
	snapshots map[time.Time]Snapshot
}

func newFakeStore() *fakeStore {
	return &fakeStore{snapshots: map[time.Time]Snapshot{}}
}

func (f *fakeStore) LatestSnapshot(_ context.Context, _ int64, asOf time.Time) (*Snapshot, error) {
	var best *Snapshot
	for d, s := range f.snapshots {
		if d.After(asOf) {
			continue
		}
		if best == nil || d.After(best.BalanceDate) {
			snap := s
			best = &snap
		}
	}
	return best, nil
}

func (f *fakeStore) PostedTotals(_ context.Context, _ int64, after *time.Time, through time.Time) (Totals, error) {
	var t Totals
	for _, l := range f.lines {
		if l.date.After(through) || (after != nil && !l.date.After(*after)) {
			continue
		}
		t = t.Line(l.typ, l.amount)
	}
	return t, nil
}

func (f *fakeStore) UpsertSnapshot(_ context.Context, snap Snapshot) error {
	f.snapshots[snap.BalanceDate] = snap
	return nil
}

func (f *fakeStore) SnapshotDatesAfter(_ context.Context, _ int64, date time.Time) ([]time.Time, error) {
	var out []time.Time
	for d := range f.snapshots {
		if d.After(date) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func day(d int) time.Time { return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC) }

func cashAccount() accounts.Account {
	return accounts.Account{ID: 1, Code: "1100", Type: accounts.AccountType{Code: accounts.TypeAsset, NormalBalance: accounts.NormalDebit}}
}

func TestCurrentAddsLinesAfterSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	calc := NewCalculator()
	acc := cashAccount()

	store.lines = append(store.lines, line{day(1), "DEBIT", decimal.RequireFromString("100")})
	_, err := calc.Refresh(ctx, store, acc, day(1))
	require.NoError(t, err)

	store.lines = append(store.lines, line{day(5), "CREDIT", decimal.RequireFromString("30")})

	current, err := calc.Current(ctx, store, acc, day(10))
	require.NoError(t, err)
	replay, err := calc.Replay(ctx, store, acc, day(10))
	require.NoError(t, err)
	require.True(t, current.Equal(decimal.RequireFromString("70")), current.String())
	require.True(t, current.Equal(replay))
}

func TestRefreshRecomputesLaterSnapshots(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	calc := NewCalculator()
	acc := cashAccount()

	store.lines = append(store.lines, line{day(10), "DEBIT", decimal.RequireFromString("50")})
	_, err := calc.Refresh(ctx, store, acc, day(10))
	require.NoError(t, err)

	store.lines = append(store.lines, line{day(2), "DEBIT", decimal.RequireFromString("25")})
	_, err = calc.Refresh(ctx, store, acc, day(2))
	require.NoError(t, err)

	require.True(t, store.snapshots[day(10)].NetBalance.Equal(decimal.RequireFromString("75")))
	require.True(t, store.snapshots[day(2)].NetBalance.Equal(decimal.RequireFromString("25")))
}

func TestClosingOpeningBalance(t *testing.T) {
	acc := cashAccount()
	acc.OpeningBalance = decimal.RequireFromString("500")
	require.True(t, Closing(acc, Totals{}, day(1)).IsZero(), "no opening date contributes nothing")

	opened := day(3)
	acc.OpeningBalanceDate = &opened
	require.True(t, Closing(acc, Totals{}, day(2)).IsZero())
	require.True(t, Closing(acc, Totals{}, day(3)).Equal(decimal.RequireFromString("500")))
}

func TestNetByPolarity(t *testing.T) {
	totals := Totals{}.Line("DEBIT", decimal.RequireFromString("40")).Line("CREDIT", decimal.RequireFromString("100"))
	require.True(t, Net(accounts.NormalCredit, totals).Equal(decimal.RequireFromString("60")))
	require.True(t, Net(accounts.NormalDebit, totals).Equal(decimal.RequireFromString("-60")))
}
