package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository persists account types and accounts.
type Repository interface {
	ListTypes(ctx context.Context, activeOnly bool) ([]AccountType, error)
	GetType(ctx context.Context, id int64) (AccountType, error)
	GetTypeByCode(ctx context.Context, code string) (AccountType, error)
	CreateType(ctx context.Context, t AccountType) (AccountType, error)
	UpdateType(ctx context.Context, t AccountType) (AccountType, error)
	DeleteType(ctx context.Context, id int64) error
	CountAccountsByType(ctx context.Context, typeID int64) (int, error)

	List(ctx context.Context, filter ListFilter) ([]Account, error)
	Get(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	Create(ctx context.Context, a Account) (Account, error)
	// Update stores a; resetSnapshots drops the cached balances of the account
	// in the same transaction.
	Update(ctx context.Context, a Account, resetSnapshots bool) (Account, error)
	SoftDelete(ctx context.Context, id int64, at time.Time) error
	CountChildren(ctx context.Context, id int64) (int, error)
	CountLines(ctx context.Context, id int64) (int, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const typeColumns = `id, code, name, description, normal_balance, is_system, is_active, sort_order, created_at, updated_at`

const accountColumns = `a.id, a.account_type_id, a.parent_id, a.code, a.name, a.description, a.opening_balance, a.opening_balance_date,
a.is_active, a.is_system, a.sort_order, a.deleted_at, a.created_at, a.updated_at,
t.id, t.code, t.name, t.description, t.normal_balance, t.is_system, t.is_active, t.sort_order, t.created_at, t.updated_at`

const accountFrom = `FROM accounts a JOIN account_types t ON t.id = a.account_type_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanType(row scanner) (AccountType, error) {
	var t AccountType
	err := row.Scan(&t.ID, &t.Code, &t.Name, &t.Description, &t.NormalBalance, &t.IsSystem, &t.IsActive, &t.SortOrder, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// ScanAccount reads a row selected with AccountColumns.
func ScanAccount(row scanner) (Account, error) {
	var a Account
	t := &a.Type
	err := row.Scan(&a.ID, &a.AccountTypeID, &a.ParentID, &a.Code, &a.Name, &a.Description, &a.OpeningBalance, &a.OpeningBalanceDate,
		&a.IsActive, &a.IsSystem, &a.SortOrder, &a.DeletedAt, &a.CreatedAt, &a.UpdatedAt,
		&t.ID, &t.Code, &t.Name, &t.Description, &t.NormalBalance, &t.IsSystem, &t.IsActive, &t.SortOrder, &t.CreatedAt, &t.UpdatedAt)
	return a, err
}

// AccountColumns and AccountFrom let other repositories load accounts with
// their type in one query.
const (
	AccountColumns = accountColumns
	AccountFrom    = accountFrom
)

func (r *repository) ListTypes(ctx context.Context, activeOnly bool) ([]AccountType, error) {
	query := `SELECT ` + typeColumns + ` FROM account_types`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY sort_order, code`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("accounts: list types: %w", err)
	}
	defer rows.Close()
	var types []AccountType
	for rows.Next() {
		t, err := scanType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (r *repository) GetType(ctx context.Context, id int64) (AccountType, error) {
	t, err := scanType(r.db.QueryRow(ctx, `SELECT `+typeColumns+` FROM account_types WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountType{}, shared.NotFound("account type", id)
		}
		return AccountType{}, err
	}
	return t, nil
}

func (r *repository) GetTypeByCode(ctx context.Context, code string) (AccountType, error) {
	t, err := scanType(r.db.QueryRow(ctx, `SELECT `+typeColumns+` FROM account_types WHERE code=$1`, strings.ToUpper(code)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountType{}, shared.NotFound("account type", code)
		}
		return AccountType{}, err
	}
	return t, nil
}

func (r *repository) CreateType(ctx context.Context, t AccountType) (AccountType, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO account_types (code, name, description, normal_balance, is_system, is_active, sort_order)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING `+typeColumns, t.Code, t.Name, t.Description, t.NormalBalance, t.IsSystem, t.IsActive, t.SortOrder)
	created, err := scanType(row)
	if err != nil {
		if shared.IsUniqueViolation(err, "account_types_code_key") {
			return AccountType{}, shared.Invalid("code", "%s already exists", t.Code)
		}
		return AccountType{}, err
	}
	return created, nil
}

func (r *repository) UpdateType(ctx context.Context, t AccountType) (AccountType, error) {
	row := r.db.QueryRow(ctx, `UPDATE account_types SET code=$2, name=$3, description=$4, normal_balance=$5, is_active=$6, sort_order=$7, updated_at=NOW()
WHERE id=$1 RETURNING `+typeColumns, t.ID, t.Code, t.Name, t.Description, t.NormalBalance, t.IsActive, t.SortOrder)
	updated, err := scanType(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountType{}, shared.NotFound("account type", t.ID)
		}
		if shared.IsUniqueViolation(err, "account_types_code_key") {
			return AccountType{}, shared.Invalid("code", "%s already exists", t.Code)
		}
		return AccountType{}, err
	}
	return updated, nil
}

func (r *repository) DeleteType(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM account_types WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.NotFound("account type", id)
	}
	return nil
}

func (r *repository) CountAccountsByType(ctx context.Context, typeID int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE account_type_id=$1 AND deleted_at IS NULL`, typeID).Scan(&n)
	return n, err
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Account, error) {
	var (
		where []string
		args  []any
	)
	where = append(where, `a.deleted_at IS NULL`)
	if filter.ActiveOnly {
		where = append(where, `a.is_active`)
	}
	if filter.TypeCode != "" {
		args = append(args, strings.ToUpper(filter.TypeCode))
		where = append(where, fmt.Sprintf(`t.code = $%d`, len(args)))
	}
	if filter.ParentID != nil {
		args = append(args, *filter.ParentID)
		where = append(where, fmt.Sprintf(`a.parent_id = $%d`, len(args)))
	}
	query := `SELECT ` + accountColumns + ` ` + accountFrom + ` WHERE ` + strings.Join(where, ` AND `) + ` ORDER BY t.sort_order, a.code`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("accounts: list: %w", err)
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := ScanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Account, error) {
	a, err := ScanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` `+accountFrom+` WHERE a.id=$1 AND a.deleted_at IS NULL`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.NotFound("account", id)
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) GetByCode(ctx context.Context, code string) (Account, error) {
	a, err := ScanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` `+accountFrom+` WHERE a.code=$1 AND a.deleted_at IS NULL`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.NotFound("account", code)
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) Create(ctx context.Context, a Account) (Account, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO accounts (account_type_id, parent_id, code, name, description, opening_balance, opening_balance_date, is_active, is_system, sort_order)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		a.AccountTypeID, a.ParentID, a.Code, a.Name, a.Description, a.OpeningBalance, a.OpeningBalanceDate, a.IsActive, a.IsSystem, a.SortOrder).Scan(&id)
	if err != nil {
		if shared.IsUniqueViolation(err, "accounts_code_key") {
			return Account{}, shared.Invalid("code", "%s already exists", a.Code)
		}
		return Account{}, fmt.Errorf("accounts: create: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *repository) Update(ctx context.Context, a Account, resetSnapshots bool) (Account, error) {
	opts := db.TxOptions{TxOptions: pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, Resource: "account"}
	err := db.InTx(ctx, r.db, opts, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `UPDATE accounts SET account_type_id=$2, parent_id=$3, code=$4, name=$5, description=$6, opening_balance=$7,
opening_balance_date=$8, is_active=$9, sort_order=$10, updated_at=NOW() WHERE id=$1 AND deleted_at IS NULL`,
			a.ID, a.AccountTypeID, a.ParentID, a.Code, a.Name, a.Description, a.OpeningBalance, a.OpeningBalanceDate, a.IsActive, a.SortOrder)
		if err != nil {
			if shared.IsUniqueViolation(err, "accounts_code_key") {
				return shared.Invalid("code", "%s already exists", a.Code)
			}
			return fmt.Errorf("accounts: update: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			return shared.NotFound("account", a.ID)
		}
		if resetSnapshots {
			if _, err := tx.Exec(ctx, `DELETE FROM account_balances WHERE account_id=$1`, a.ID); err != nil {
				return fmt.Errorf("accounts: reset snapshots: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return r.Get(ctx, a.ID)
}

func (r *repository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET deleted_at=$2, is_active=false, updated_at=NOW() WHERE id=$1 AND deleted_at IS NULL`, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.NotFound("account", id)
	}
	return nil
}

func (r *repository) CountChildren(ctx context.Context, id int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE parent_id=$1 AND deleted_at IS NULL`, id).Scan(&n)
	return n, err
}

func (r *repository) CountLines(ctx context.Context, id int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entry_lines WHERE account_id=$1`, id).Scan(&n)
	return n, err
}
