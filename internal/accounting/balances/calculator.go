package balances

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Reader exposes the queries the calculator needs. Effective lines are the
// lines of POSTED or REVERSED entries.
type Reader interface {
	// LatestSnapshot returns the newest snapshot dated on or before asOf, or
	// nil when none exists.
	LatestSnapshot(ctx context.Context, accountID int64, asOf time.Time) (*Snapshot, error)
	// PostedTotals sums effective lines dated in (after, through]. A nil
	// after means no lower bound.
	PostedTotals(ctx context.Context, accountID int64, after *time.Time, through time.Time) (Totals, error)
}

// Writer maintains snapshots. Implementations run inside the caller's
// transaction.
type Writer interface {
	Reader
	UpsertSnapshot(ctx context.Context, snap Snapshot) error
	// SnapshotDatesAfter locks and returns the snapshot dates strictly after
	// date in ascending order.
	SnapshotDatesAfter(ctx context.Context, accountID int64, date time.Time) ([]time.Time, error)
}

// Calculator derives balances from snapshots and lines.
type Calculator struct {
	now func() time.Time
}

// NewCalculator constructs a Calculator using the wall clock.
func NewCalculator() *Calculator {
	return &Calculator{now: time.Now}
}

// WithNow overrides the clock for testing.
func (c *Calculator) WithNow(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// Current returns the balance of acc at asOf, starting from the latest
// snapshot and adding effective lines dated after it.
func (c *Calculator) Current(ctx context.Context, r Reader, acc accounts.Account, asOf time.Time) (decimal.Decimal, error) {
	asOf = shared.DateOnly(asOf)
	snap, err := r.LatestSnapshot(ctx, acc.ID, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	if snap == nil {
		return c.Replay(ctx, r, acc, asOf)
	}
	delta, err := r.PostedTotals(ctx, acc.ID, &snap.BalanceDate, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	return Closing(acc, snap.Totals().Add(delta), asOf), nil
}

// Replay returns the balance of acc at asOf from lines alone.
func (c *Calculator) Replay(ctx context.Context, r Reader, acc accounts.Account, asOf time.Time) (decimal.Decimal, error) {
	asOf = shared.DateOnly(asOf)
	totals, err := r.PostedTotals(ctx, acc.ID, nil, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	return Closing(acc, totals, asOf), nil
}

// Refresh recomputes the snapshot of acc at date and every later snapshot
// of the same account.
func (c *Calculator) Refresh(ctx context.Context, w Writer, acc accounts.Account, date time.Time) (Snapshot, error) {
	date = shared.DateOnly(date)
	later, err := w.SnapshotDatesAfter(ctx, acc.ID, date)
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := c.write(ctx, w, acc, date)
	if err != nil {
		return Snapshot{}, err
	}
	for _, d := range later {
		if _, err := c.write(ctx, w, acc, d); err != nil {
			return Snapshot{}, err
		}
	}
	return snap, nil
}

func (c *Calculator) write(ctx context.Context, w Writer, acc accounts.Account, date time.Time) (Snapshot, error) {
	totals, err := w.PostedTotals(ctx, acc.ID, nil, date)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		AccountID:   acc.ID,
		BalanceDate: date,
		DebitTotal:  totals.Debit,
		CreditTotal: totals.Credit,
		NetBalance:  Closing(acc, totals, date),
		ComputedAt:  c.now().UTC(),
	}
	if err := w.UpsertSnapshot(ctx, snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
