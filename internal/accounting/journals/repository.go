package journals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	core "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository encapsulates ledger reads and opens write transactions.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	Get(ctx context.Context, id int64) (JournalEntry, error)
	List(ctx context.Context, filter ListFilter) ([]JournalEntry, int, error)
	ByReference(ctx context.Context, ref Reference) ([]JournalEntry, error)
	// EntriesBetween returns entries with lines dated in [start, end] whose
	// status is one of statuses, ordered by CompareEntryNumbers.
	EntriesBetween(ctx context.Context, start, end time.Time, statuses []Status) ([]JournalEntry, error)
	// AccountActivity returns the effective lines of an account dated in
	// [start, end] ordered by entry date, entry id and line number.
	AccountActivity(ctx context.Context, accountID int64, start, end time.Time) ([]ActivityLine, error)
	// PeriodTotals sums effective lines of an account dated in [start, end].
	PeriodTotals(ctx context.Context, accountID int64, start, end time.Time) (balances.Totals, error)
}

// TxRepository exposes the operations available inside a transaction.
type TxRepository interface {
	balances.Writer

	GetAccount(ctx context.Context, id int64) (accounts.Account, error)
	ListAccounts(ctx context.Context) ([]accounts.Account, error)
	// GetAccountsForShare locks the accounts against concurrent change.
	GetAccountsForShare(ctx context.Context, ids []int64) (map[int64]accounts.Account, error)
	NextEntrySequence(ctx context.Context, key string) (int64, error)
	InsertEntry(ctx context.Context, e JournalEntry) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []LineInput) ([]JournalLine, error)
	GetEntryForUpdate(ctx context.Context, id int64) (JournalEntry, error)
	MarkPosted(ctx context.Context, id int64, postedBy *int64, at time.Time) error
	// LockYearForDate share-locks the financial year containing date and
	// reports whether it is closed. A date outside every year yields
	// (0, false, nil).
	LockYearForDate(ctx context.Context, date time.Time) (int64, bool, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

// WithTx executes fn within a repeatable-read transaction.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.db == nil {
		return errors.New("journals: repository not initialised")
	}
	return db.InTx(ctx, r.db, db.TxOptions{Resource: "journal entry"}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{Store: balances.NewStore(tx), tx: tx})
	})
}

const entryColumns = `e.id, e.entry_number, e.entry_date, e.financial_year_id, e.reference_domain, e.reference_id, e.description, e.notes,
e.status, e.created_by, e.posted_by, e.posted_at, e.reversal_of_id, e.created_at, e.updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.EntryNumber, &e.EntryDate, &e.FinancialYearID, &e.Reference.Domain, &e.Reference.ID, &e.Description, &e.Notes,
		&e.Status, &e.CreatedBy, &e.PostedBy, &e.PostedAt, &e.ReversalOfID, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func queryEntries(ctx context.Context, q querier, sql string, args ...any) ([]JournalEntry, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("journals: query entries: %w", err)
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// attachLines loads the lines of entries in one query.
func attachLines(ctx context.Context, q querier, entries []JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]int64, len(entries))
	index := make(map[int64]int, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		index[e.ID] = i
	}
	rows, err := q.Query(ctx, `SELECT l.id, l.journal_entry_id, l.account_id, a.code, a.name, l.type, l.amount, l.description, l.line_number
FROM journal_entry_lines l JOIN accounts a ON a.id = l.account_id
WHERE l.journal_entry_id = ANY($1) ORDER BY l.journal_entry_id, l.line_number`, ids)
	if err != nil {
		return fmt.Errorf("journals: load lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l JournalLine
		if err := rows.Scan(&l.ID, &l.JournalEntryID, &l.AccountID, &l.AccountCode, &l.AccountName, &l.Type, &l.Amount, &l.Description, &l.LineNumber); err != nil {
			return err
		}
		i := index[l.JournalEntryID]
		entries[i].Lines = append(entries[i].Lines, l)
	}
	return rows.Err()
}

func getEntry(ctx context.Context, q querier, id int64, lock bool) (JournalEntry, error) {
	sql := `SELECT ` + entryColumns + ` FROM journal_entries e WHERE e.id=$1`
	if lock {
		sql += ` FOR UPDATE`
	}
	e, err := scanEntry(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.NotFound("journal entry", id)
		}
		return JournalEntry{}, fmt.Errorf("journals: get entry: %w", err)
	}
	entries := []JournalEntry{e}
	if err := attachLines(ctx, q, entries); err != nil {
		return JournalEntry{}, err
	}
	return entries[0], nil
}

func (r *repository) Get(ctx context.Context, id int64) (JournalEntry, error) {
	return getEntry(ctx, r.db, id, false)
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]JournalEntry, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add(`e.status = $%d`, filter.Status)
	}
	if !filter.From.IsZero() {
		add(`e.entry_date >= $%d`, filter.From)
	}
	if !filter.To.IsZero() {
		add(`e.entry_date <= $%d`, filter.To)
	}
	if filter.AccountID > 0 {
		add(`EXISTS (SELECT 1 FROM journal_entry_lines l WHERE l.journal_entry_id = e.id AND l.account_id = $%d)`, filter.AccountID)
	}
	if filter.Reference != nil {
		add(`e.reference_domain = $%d`, filter.Reference.Domain)
		add(`e.reference_id = $%d`, filter.Reference.ID)
	}
	cond := ""
	if len(where) > 0 {
		cond = ` WHERE ` + strings.Join(where, ` AND `)
	}
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries e`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("journals: count entries: %w", err)
	}
	page := core.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	sql := fmt.Sprintf(`SELECT %s FROM journal_entries e%s ORDER BY e.entry_date DESC, e.id DESC LIMIT $%d OFFSET $%d`,
		entryColumns, cond, len(args)-1, len(args))
	entries, err := queryEntries(ctx, r.db, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	if err := attachLines(ctx, r.db, entries); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *repository) ByReference(ctx context.Context, ref Reference) ([]JournalEntry, error) {
	entries, err := queryEntries(ctx, r.db, `SELECT `+entryColumns+` FROM journal_entries e
WHERE e.reference_domain=$1 AND e.reference_id=$2 ORDER BY e.id`, ref.Domain, ref.ID)
	if err != nil {
		return nil, err
	}
	return entries, attachLines(ctx, r.db, entries)
}

func (r *repository) EntriesBetween(ctx context.Context, start, end time.Time, statuses []Status) ([]JournalEntry, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	entries, err := queryEntries(ctx, r.db, `SELECT `+entryColumns+` FROM journal_entries e
WHERE e.entry_date BETWEEN $1 AND $2 AND e.status = ANY($3) ORDER BY regexp_replace(e.entry_number, '-[0-9]+$', ''), length(e.entry_number), e.entry_number`, start, end, names)
	if err != nil {
		return nil, err
	}
	return entries, attachLines(ctx, r.db, entries)
}

func (r *repository) AccountActivity(ctx context.Context, accountID int64, start, end time.Time) ([]ActivityLine, error) {
	rows, err := r.db.Query(ctx, `SELECT e.id, e.entry_number, e.entry_date, e.reference_domain, e.reference_id, e.description,
	l.line_number, l.account_id, l.type, l.amount, l.description,
	(SELECT o.account_id FROM journal_entry_lines o
		WHERE o.journal_entry_id = l.journal_entry_id AND o.account_id <> l.account_id
		ORDER BY o.line_number LIMIT 1)
FROM journal_entry_lines l
JOIN journal_entries e ON e.id = l.journal_entry_id
WHERE l.account_id = $1 AND e.status IN ('POSTED', 'REVERSED') AND e.entry_date BETWEEN $2 AND $3
ORDER BY e.entry_date, e.id, l.line_number`, accountID, start, end)
	if err != nil {
		return nil, fmt.Errorf("journals: account activity: %w", err)
	}
	defer rows.Close()
	var out []ActivityLine
	for rows.Next() {
		var a ActivityLine
		if err := rows.Scan(&a.EntryID, &a.EntryNumber, &a.EntryDate, &a.Reference.Domain, &a.Reference.ID, &a.EntryDesc,
			&a.LineNumber, &a.AccountID, &a.Type, &a.Amount, &a.Description, &a.ContraAccountID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) PeriodTotals(ctx context.Context, accountID int64, start, end time.Time) (balances.Totals, error) {
	var t balances.Totals
	err := r.db.QueryRow(ctx, `SELECT
	COALESCE(SUM(l.amount) FILTER (WHERE l.type = 'DEBIT'), 0),
	COALESCE(SUM(l.amount) FILTER (WHERE l.type = 'CREDIT'), 0)
FROM journal_entry_lines l
JOIN journal_entries e ON e.id = l.journal_entry_id
WHERE l.account_id = $1 AND e.status IN ('POSTED', 'REVERSED') AND e.entry_date BETWEEN $2 AND $3`, accountID, start, end).
		Scan(&t.Debit, &t.Credit)
	if err != nil {
		return balances.Totals{}, fmt.Errorf("journals: period totals: %w", err)
	}
	return t, nil
}

type txRepository struct {
	*balances.Store
	tx pgx.Tx
}

func (r *txRepository) GetAccount(ctx context.Context, id int64) (accounts.Account, error) {
	a, err := accounts.ScanAccount(r.tx.QueryRow(ctx, `SELECT `+accounts.AccountColumns+` `+accounts.AccountFrom+` WHERE a.id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return accounts.Account{}, shared.NotFound("account", id)
		}
		return accounts.Account{}, fmt.Errorf("journals: get account: %w", err)
	}
	return a, nil
}

func (r *txRepository) ListAccounts(ctx context.Context) ([]accounts.Account, error) {
	return r.queryAccounts(ctx, `SELECT `+accounts.AccountColumns+` `+accounts.AccountFrom+` WHERE a.deleted_at IS NULL ORDER BY a.id`)
}

func (r *txRepository) GetAccountsForShare(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	list, err := r.queryAccounts(ctx, `SELECT `+accounts.AccountColumns+` `+accounts.AccountFrom+`
WHERE a.id = ANY($1) ORDER BY a.id FOR SHARE OF a`, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]accounts.Account, len(list))
	for _, a := range list {
		out[a.ID] = a
	}
	return out, nil
}

func (r *txRepository) queryAccounts(ctx context.Context, sql string, args ...any) ([]accounts.Account, error) {
	rows, err := r.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, shared.TranslatePgError("account", err)
	}
	defer rows.Close()
	var out []accounts.Account
	for rows.Next() {
		a, err := accounts.ScanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *txRepository) NextEntrySequence(ctx context.Context, key string) (int64, error) {
	var next int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_sequences (prefix, last_value) VALUES ($1, 1)
ON CONFLICT (prefix) DO UPDATE SET last_value = journal_sequences.last_value + 1
RETURNING last_value`, key).Scan(&next)
	if err != nil {
		return 0, shared.TranslatePgError("journal sequence", err)
	}
	return next, nil
}

func (r *txRepository) InsertEntry(ctx context.Context, e JournalEntry) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries AS e (entry_number, entry_date, financial_year_id, reference_domain, reference_id,
	description, notes, status, created_by, reversal_of_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING `+entryColumns,
		e.EntryNumber, e.EntryDate, e.FinancialYearID, e.Reference.Domain, e.Reference.ID, e.Description, e.Notes, e.Status, e.CreatedBy, e.ReversalOfID)
	inserted, err := scanEntry(row)
	if err != nil {
		return JournalEntry{}, shared.TranslatePgError("journal entry", err)
	}
	return inserted, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []LineInput) ([]JournalLine, error) {
	out := make([]JournalLine, 0, len(lines))
	for i, l := range lines {
		line := JournalLine{
			JournalEntryID: entryID,
			AccountID:      l.AccountID,
			Type:           l.Type,
			Amount:         l.Amount,
			Description:    l.Description,
			LineNumber:     i + 1,
		}
		err := r.tx.QueryRow(ctx, `INSERT INTO journal_entry_lines (journal_entry_id, account_id, type, amount, description, line_number)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, entryID, l.AccountID, l.Type, l.Amount, l.Description, line.LineNumber).Scan(&line.ID)
		if err != nil {
			return nil, fmt.Errorf("journals: insert line %d: %w", i+1, err)
		}
		out = append(out, line)
	}
	return out, nil
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, id int64) (JournalEntry, error) {
	return getEntry(ctx, r.tx, id, true)
}

func (r *txRepository) MarkPosted(ctx context.Context, id int64, postedBy *int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='POSTED', posted_by=$2, posted_at=$3, updated_at=NOW()
WHERE id=$1 AND status='DRAFT'`, id, postedBy, at)
	if err != nil {
		return shared.TranslatePgError("journal entry", err)
	}
	if cmd.RowsAffected() == 0 {
		return &shared.ConcurrencyConflictError{Resource: "journal entry"}
	}
	return nil
}

func (r *txRepository) LockYearForDate(ctx context.Context, date time.Time) (int64, bool, error) {
	var (
		id     int64
		closed bool
	)
	err := r.tx.QueryRow(ctx, `SELECT id, is_closed FROM financial_years WHERE $1 BETWEEN start_date AND end_date
ORDER BY start_date LIMIT 1 FOR SHARE`, date).Scan(&id, &closed)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, shared.TranslatePgError("financial year", err)
	}
	return id, closed, nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	if err != nil {
		return shared.TranslatePgError("journal entry", err)
	}
	if cmd.RowsAffected() == 0 {
		return shared.NotFound("journal entry", id)
	}
	return nil
}
