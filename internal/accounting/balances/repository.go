package balances

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Querier is satisfied by pgx.Tx, pgx.Conn and pgxpool.Pool.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads and writes account_balances through q.
type Store struct {
	q Querier
}

// NewStore binds a Store to a pool or transaction.
func NewStore(q Querier) *Store {
	return &Store{q: q}
}

// LatestSnapshot implements Reader.
func (s *Store) LatestSnapshot(ctx context.Context, accountID int64, asOf time.Time) (*Snapshot, error) {
	var snap Snapshot
	err := s.q.QueryRow(ctx, `SELECT account_id, balance_date, debit_total, credit_total, net_balance, computed_at
FROM account_balances WHERE account_id=$1 AND balance_date <= $2 ORDER BY balance_date DESC LIMIT 1`, accountID, asOf).
		Scan(&snap.AccountID, &snap.BalanceDate, &snap.DebitTotal, &snap.CreditTotal, &snap.NetBalance, &snap.ComputedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("balances: latest snapshot: %w", err)
	}
	return &snap, nil
}

// PostedTotals implements Reader.
func (s *Store) PostedTotals(ctx context.Context, accountID int64, after *time.Time, through time.Time) (Totals, error) {
	var t Totals
	err := s.q.QueryRow(ctx, `SELECT
	COALESCE(SUM(l.amount) FILTER (WHERE l.type = 'DEBIT'), 0),
	COALESCE(SUM(l.amount) FILTER (WHERE l.type = 'CREDIT'), 0)
FROM journal_entry_lines l
JOIN journal_entries e ON e.id = l.journal_entry_id
WHERE l.account_id = $1
	AND e.status IN ('POSTED', 'REVERSED')
	AND e.entry_date <= $2
	AND ($3::date IS NULL OR e.entry_date > $3::date)`, accountID, through, after).Scan(&t.Debit, &t.Credit)
	if err != nil {
		return Totals{}, fmt.Errorf("balances: posted totals: %w", err)
	}
	return t, nil
}

// UpsertSnapshot implements Writer.
func (s *Store) UpsertSnapshot(ctx context.Context, snap Snapshot) error {
	_, err := s.q.Exec(ctx, `INSERT INTO account_balances (account_id, balance_date, debit_total, credit_total, net_balance, computed_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (account_id, balance_date) DO UPDATE SET
	debit_total = EXCLUDED.debit_total,
	credit_total = EXCLUDED.credit_total,
	net_balance = EXCLUDED.net_balance,
	computed_at = EXCLUDED.computed_at`,
		snap.AccountID, snap.BalanceDate, snap.DebitTotal, snap.CreditTotal, snap.NetBalance, snap.ComputedAt)
	if err != nil {
		return shared.TranslatePgError("account balance", err)
	}
	return nil
}

// SnapshotDatesAfter implements Writer.
func (s *Store) SnapshotDatesAfter(ctx context.Context, accountID int64, date time.Time) ([]time.Time, error) {
	rows, err := s.q.Query(ctx, `SELECT balance_date FROM account_balances
WHERE account_id=$1 AND balance_date > $2 ORDER BY balance_date FOR UPDATE`, accountID, date)
	if err != nil {
		return nil, shared.TranslatePgError("account balance", err)
	}
	defer rows.Close()
	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, shared.TranslatePgError("account balance", rows.Err())
}
