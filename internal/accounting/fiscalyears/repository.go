package fiscalyears

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository persists financial years.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (FinancialYear, error)
	// ForDate returns the year containing date or nil.
	ForDate(ctx context.Context, date time.Time) (*FinancialYear, error)
	// Active returns the active year or nil.
	Active(ctx context.Context) (*FinancialYear, error)
	List(ctx context.Context) ([]FinancialYear, error)
	CountOverlapping(ctx context.Context, start, end time.Time) (int, error)
	Insert(ctx context.Context, fy FinancialYear) (FinancialYear, error)
}

// TxRepository exposes the operations available inside a transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (FinancialYear, error)
	DeactivateOthers(ctx context.Context, id int64) error
	SetActive(ctx context.Context, id int64) error
	MarkClosed(ctx context.Context, id int64, at time.Time) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const columns = `id, code, name, start_date, end_date, is_active, is_closed, closed_at, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanYear(row scanner) (FinancialYear, error) {
	var fy FinancialYear
	err := row.Scan(&fy.ID, &fy.Code, &fy.Name, &fy.StartDate, &fy.EndDate, &fy.IsActive, &fy.IsClosed, &fy.ClosedAt, &fy.CreatedAt, &fy.UpdatedAt)
	return fy, err
}

func optional(fy FinancialYear, err error) (*FinancialYear, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &fy, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.InTx(ctx, r.db, db.TxOptions{Resource: "financial year"}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) Get(ctx context.Context, id int64) (FinancialYear, error) {
	fy, err := scanYear(r.db.QueryRow(ctx, `SELECT `+columns+` FROM financial_years WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FinancialYear{}, shared.NotFound("financial year", id)
		}
		return FinancialYear{}, err
	}
	return fy, nil
}

func (r *repository) ForDate(ctx context.Context, date time.Time) (*FinancialYear, error) {
	return optional(scanYear(r.db.QueryRow(ctx, `SELECT `+columns+` FROM financial_years
WHERE $1 BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1`, date)))
}

func (r *repository) Active(ctx context.Context) (*FinancialYear, error) {
	return optional(scanYear(r.db.QueryRow(ctx, `SELECT `+columns+` FROM financial_years WHERE is_active LIMIT 1`)))
}

func (r *repository) List(ctx context.Context) ([]FinancialYear, error) {
	rows, err := r.db.Query(ctx, `SELECT `+columns+` FROM financial_years ORDER BY start_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("fiscalyears: list: %w", err)
	}
	defer rows.Close()
	var out []FinancialYear
	for rows.Next() {
		fy, err := scanYear(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fy)
	}
	return out, rows.Err()
}

func (r *repository) CountOverlapping(ctx context.Context, start, end time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM financial_years WHERE start_date <= $2 AND end_date >= $1`, start, end).Scan(&n)
	return n, err
}

func (r *repository) Insert(ctx context.Context, fy FinancialYear) (FinancialYear, error) {
	created, err := scanYear(r.db.QueryRow(ctx, `INSERT INTO financial_years (code, name, start_date, end_date, is_active, is_closed)
VALUES ($1,$2,$3,$4,false,false) RETURNING `+columns, fy.Code, fy.Name, fy.StartDate, fy.EndDate))
	if err != nil {
		if shared.IsUniqueViolation(err, "financial_years_code_key") {
			return FinancialYear{}, shared.Invalid("code", "%s already exists", fy.Code)
		}
		return FinancialYear{}, fmt.Errorf("fiscalyears: insert: %w", err)
	}
	return created, nil
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (FinancialYear, error) {
	fy, err := scanYear(r.tx.QueryRow(ctx, `SELECT `+columns+` FROM financial_years WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FinancialYear{}, shared.NotFound("financial year", id)
		}
		return FinancialYear{}, err
	}
	return fy, nil
}

func (r *txRepository) DeactivateOthers(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE financial_years SET is_active=false, updated_at=NOW() WHERE is_active AND id <> $1`, id)
	return err
}

func (r *txRepository) SetActive(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE financial_years SET is_active=true, updated_at=NOW() WHERE id=$1`, id)
	return err
}

func (r *txRepository) MarkClosed(ctx context.Context, id int64, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE financial_years SET is_closed=true, is_active=false, closed_at=$2, updated_at=NOW() WHERE id=$1`, id, at)
	return err
}
