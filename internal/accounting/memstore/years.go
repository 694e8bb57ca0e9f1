package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/fiscalyears"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Years implements fiscalyears.Repository.
type Years struct {
	s *Store
}

var _ fiscalyears.Repository = (*Years)(nil)

func (r *Years) WithTx(ctx context.Context, fn func(context.Context, fiscalyears.TxRepository) error) error {
	return r.s.tx(func(st *state) error {
		return fn(ctx, &yearTx{st: st, now: r.s.now})
	})
}

func (r *Years) Get(_ context.Context, id int64) (fiscalyears.FinancialYear, error) {
	var (
		fy fiscalyears.FinancialYear
		ok bool
	)
	r.s.read(func(st *state) { fy, ok = st.years[id] })
	if !ok {
		return fiscalyears.FinancialYear{}, shared.NotFound("financial year", id)
	}
	return fy, nil
}

func (r *Years) ForDate(_ context.Context, date time.Time) (*fiscalyears.FinancialYear, error) {
	var best *fiscalyears.FinancialYear
	r.s.read(func(st *state) {
		for _, fy := range st.years {
			if !fy.Contains(date) {
				continue
			}
			if best == nil || fy.StartDate.Before(best.StartDate) {
				match := fy
				best = &match
			}
		}
	})
	return best, nil
}

func (r *Years) Active(_ context.Context) (*fiscalyears.FinancialYear, error) {
	var active *fiscalyears.FinancialYear
	r.s.read(func(st *state) {
		for _, fy := range st.years {
			if fy.IsActive {
				match := fy
				active = &match
				return
			}
		}
	})
	return active, nil
}

func (r *Years) List(_ context.Context) ([]fiscalyears.FinancialYear, error) {
	var out []fiscalyears.FinancialYear
	r.s.read(func(st *state) {
		for _, fy := range st.years {
			out = append(out, fy)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

func (r *Years) CountOverlapping(_ context.Context, start, end time.Time) (int, error) {
	var n int
	r.s.read(func(st *state) {
		for _, fy := range st.years {
			if !fy.StartDate.After(end) && !fy.EndDate.Before(start) {
				n++
			}
		}
	})
	return n, nil
}

func (r *Years) Insert(_ context.Context, fy fiscalyears.FinancialYear) (fiscalyears.FinancialYear, error) {
	err := r.s.tx(func(st *state) error {
		for _, existing := range st.years {
			if existing.Code == fy.Code {
				return shared.Invalid("code", "%s already exists", fy.Code)
			}
		}
		now := r.s.now().UTC()
		fy.ID = st.id()
		fy.IsActive, fy.IsClosed = false, false
		fy.CreatedAt, fy.UpdatedAt = now, now
		st.years[fy.ID] = fy
		return nil
	})
	return fy, err
}

type yearTx struct {
	st  *state
	now func() time.Time
}

func (t *yearTx) GetForUpdate(_ context.Context, id int64) (fiscalyears.FinancialYear, error) {
	fy, ok := t.st.years[id]
	if !ok {
		return fiscalyears.FinancialYear{}, shared.NotFound("financial year", id)
	}
	return fy, nil
}

func (t *yearTx) DeactivateOthers(_ context.Context, id int64) error {
	for k, fy := range t.st.years {
		if k != id && fy.IsActive {
			fy.IsActive = false
			fy.UpdatedAt = t.now().UTC()
			t.st.years[k] = fy
		}
	}
	return nil
}

func (t *yearTx) SetActive(_ context.Context, id int64) error {
	for k, fy := range t.st.years {
		if k != id && fy.IsActive {
			return &shared.ConcurrencyConflictError{Resource: "financial year"}
		}
	}
	fy := t.st.years[id]
	fy.IsActive = true
	fy.UpdatedAt = t.now().UTC()
	t.st.years[id] = fy
	return nil
}

func (t *yearTx) MarkClosed(_ context.Context, id int64, at time.Time) error {
	fy := t.st.years[id]
	fy.IsClosed = true
	fy.IsActive = false
	fy.ClosedAt = &at
	fy.UpdatedAt = t.now().UTC()
	t.st.years[id] = fy
	return nil
}
