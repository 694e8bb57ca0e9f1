package mappings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Repository stores account mappings.
type Repository interface {
	Get(ctx context.Context, module, key string) (AccountMapping, error)
	Upsert(ctx context.Context, m AccountMapping) (AccountMapping, error)
	List(ctx context.Context, module string) ([]AccountMapping, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the PostgreSQL backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// Get resolves an account mapping for the specified key.
func (r *repository) Get(ctx context.Context, module, key string) (AccountMapping, error) {
	if module == "" || key == "" {
		return AccountMapping{}, shared.Invalid("mapping", "module and key required")
	}
	normalized := NormalizeModule(module)
	var mapping AccountMapping
	err := r.db.QueryRow(ctx, `SELECT module, key, account_id, created_at, updated_at FROM account_mappings WHERE module=$1 AND key=$2`, normalized, key).
		Scan(&mapping.Module, &mapping.Key, &mapping.AccountID, &mapping.CreatedAt, &mapping.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountMapping{}, shared.NotFound("account mapping", normalized+"/"+key)
		}
		return AccountMapping{}, err
	}
	return mapping, nil
}

// Upsert creates or repoints a mapping.
func (r *repository) Upsert(ctx context.Context, m AccountMapping) (AccountMapping, error) {
	if err := m.Validate(); err != nil {
		return AccountMapping{}, err
	}
	m.Module = NormalizeModule(m.Module)
	err := r.db.QueryRow(ctx, `INSERT INTO account_mappings (module, key, account_id) VALUES ($1,$2,$3)
ON CONFLICT (module, key) DO UPDATE SET account_id = EXCLUDED.account_id, updated_at = NOW()
RETURNING created_at, updated_at`, m.Module, m.Key, m.AccountID).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return AccountMapping{}, fmt.Errorf("mappings: upsert: %w", err)
	}
	return m, nil
}

// List returns mappings of module, or all mappings when module is empty.
func (r *repository) List(ctx context.Context, module string) ([]AccountMapping, error) {
	rows, err := r.db.Query(ctx, `SELECT module, key, account_id, created_at, updated_at FROM account_mappings
WHERE $1 = '' OR module = $1 ORDER BY module, key`, NormalizeModule(module))
	if err != nil {
		return nil, fmt.Errorf("mappings: list: %w", err)
	}
	defer rows.Close()
	var out []AccountMapping
	for rows.Next() {
		var m AccountMapping
		if err := rows.Scan(&m.Module, &m.Key, &m.AccountID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
