package memstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Accounts implements accounts.Repository.
type Accounts struct {
	s *Store
}

var _ accounts.Repository = (*Accounts)(nil)

func (st *state) account(id int64) (accounts.Account, bool) {
	a, ok := st.accounts[id]
	if !ok {
		return accounts.Account{}, false
	}
	a.Type = st.types[a.AccountTypeID]
	return a, true
}

func (st *state) liveAccount(id int64) (accounts.Account, error) {
	a, ok := st.account(id)
	if !ok || a.DeletedAt != nil {
		return accounts.Account{}, shared.NotFound("account", id)
	}
	return a, nil
}

func (st *state) codeTaken(code string, except int64) bool {
	for _, a := range st.accounts {
		if a.ID != except && a.Code == code {
			return true
		}
	}
	return false
}

func sortTypes(list []accounts.AccountType) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].SortOrder != list[j].SortOrder {
			return list[i].SortOrder < list[j].SortOrder
		}
		return list[i].Code < list[j].Code
	})
}

func (r *Accounts) ListTypes(_ context.Context, activeOnly bool) ([]accounts.AccountType, error) {
	var out []accounts.AccountType
	r.s.read(func(st *state) {
		for _, t := range st.types {
			if activeOnly && !t.IsActive {
				continue
			}
			out = append(out, t)
		}
	})
	sortTypes(out)
	return out, nil
}

func (r *Accounts) GetType(_ context.Context, id int64) (accounts.AccountType, error) {
	var (
		t  accounts.AccountType
		ok bool
	)
	r.s.read(func(st *state) { t, ok = st.types[id] })
	if !ok {
		return accounts.AccountType{}, shared.NotFound("account type", id)
	}
	return t, nil
}

func (r *Accounts) GetTypeByCode(_ context.Context, code string) (accounts.AccountType, error) {
	var (
		t  accounts.AccountType
		ok bool
	)
	code = strings.ToUpper(code)
	r.s.read(func(st *state) {
		for _, candidate := range st.types {
			if candidate.Code == code {
				t, ok = candidate, true
				return
			}
		}
	})
	if !ok {
		return accounts.AccountType{}, shared.NotFound("account type", code)
	}
	return t, nil
}

func (r *Accounts) CreateType(_ context.Context, t accounts.AccountType) (accounts.AccountType, error) {
	err := r.s.tx(func(st *state) error {
		for _, existing := range st.types {
			if existing.Code == t.Code {
				return shared.Invalid("code", "%s already exists", t.Code)
			}
		}
		now := r.s.now().UTC()
		t.ID = st.id()
		t.CreatedAt, t.UpdatedAt = now, now
		st.types[t.ID] = t
		return nil
	})
	return t, err
}

func (r *Accounts) UpdateType(_ context.Context, t accounts.AccountType) (accounts.AccountType, error) {
	err := r.s.tx(func(st *state) error {
		current, ok := st.types[t.ID]
		if !ok {
			return shared.NotFound("account type", t.ID)
		}
		for _, existing := range st.types {
			if existing.ID != t.ID && existing.Code == t.Code {
				return shared.Invalid("code", "%s already exists", t.Code)
			}
		}
		t.IsSystem = current.IsSystem
		t.CreatedAt = current.CreatedAt
		t.UpdatedAt = r.s.now().UTC()
		st.types[t.ID] = t
		return nil
	})
	return t, err
}

func (r *Accounts) DeleteType(_ context.Context, id int64) error {
	return r.s.tx(func(st *state) error {
		if _, ok := st.types[id]; !ok {
			return shared.NotFound("account type", id)
		}
		delete(st.types, id)
		return nil
	})
}

func (r *Accounts) CountAccountsByType(_ context.Context, typeID int64) (int, error) {
	var n int
	r.s.read(func(st *state) {
		for _, a := range st.accounts {
			if a.AccountTypeID == typeID && a.DeletedAt == nil {
				n++
			}
		}
	})
	return n, nil
}

func (r *Accounts) List(_ context.Context, filter accounts.ListFilter) ([]accounts.Account, error) {
	var out []accounts.Account
	r.s.read(func(st *state) {
		for id := range st.accounts {
			a, _ := st.account(id)
			switch {
			case a.DeletedAt != nil:
				continue
			case filter.ActiveOnly && !a.IsActive:
				continue
			case filter.TypeCode != "" && a.Type.Code != strings.ToUpper(filter.TypeCode):
				continue
			case filter.ParentID != nil && (a.ParentID == nil || *a.ParentID != *filter.ParentID):
				continue
			}
			out = append(out, a)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type.SortOrder != out[j].Type.SortOrder {
			return out[i].Type.SortOrder < out[j].Type.SortOrder
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (r *Accounts) Get(_ context.Context, id int64) (accounts.Account, error) {
	var (
		a   accounts.Account
		err error
	)
	r.s.read(func(st *state) { a, err = st.liveAccount(id) })
	return a, err
}

func (r *Accounts) GetByCode(_ context.Context, code string) (accounts.Account, error) {
	var (
		a  accounts.Account
		ok bool
	)
	r.s.read(func(st *state) {
		for id, candidate := range st.accounts {
			if candidate.Code == code && candidate.DeletedAt == nil {
				a, ok = st.account(id)
				return
			}
		}
	})
	if !ok {
		return accounts.Account{}, shared.NotFound("account", code)
	}
	return a, nil
}

func (r *Accounts) Create(_ context.Context, a accounts.Account) (accounts.Account, error) {
	err := r.s.tx(func(st *state) error {
		if st.codeTaken(a.Code, 0) {
			return shared.Invalid("code", "%s already exists", a.Code)
		}
		if _, ok := st.types[a.AccountTypeID]; !ok {
			return shared.Invalid("account_type_id", "references a missing record")
		}
		now := r.s.now().UTC()
		a.ID = st.id()
		a.CreatedAt, a.UpdatedAt = now, now
		a.Type = accounts.AccountType{}
		st.accounts[a.ID] = a
		a, _ = st.account(a.ID)
		return nil
	})
	return a, err
}

func (r *Accounts) Update(_ context.Context, a accounts.Account, resetSnapshots bool) (accounts.Account, error) {
	err := r.s.tx(func(st *state) error {
		current, err := st.liveAccount(a.ID)
		if err != nil {
			return err
		}
		if st.codeTaken(a.Code, a.ID) {
			return shared.Invalid("code", "%s already exists", a.Code)
		}
		a.IsSystem = current.IsSystem
		a.CreatedAt = current.CreatedAt
		a.UpdatedAt = r.s.now().UTC()
		a.Type = accounts.AccountType{}
		st.accounts[a.ID] = a
		if resetSnapshots {
			delete(st.snapshots, a.ID)
		}
		a, _ = st.account(a.ID)
		return nil
	})
	return a, err
}

func (r *Accounts) SoftDelete(_ context.Context, id int64, at time.Time) error {
	return r.s.tx(func(st *state) error {
		a, ok := st.accounts[id]
		if !ok || a.DeletedAt != nil {
			return shared.NotFound("account", id)
		}
		a.DeletedAt = &at
		a.IsActive = false
		st.accounts[id] = a
		return nil
	})
}

func (r *Accounts) CountChildren(_ context.Context, id int64) (int, error) {
	var n int
	r.s.read(func(st *state) {
		for _, a := range st.accounts {
			if a.ParentID != nil && *a.ParentID == id && a.DeletedAt == nil {
				n++
			}
		}
	})
	return n, nil
}

func (r *Accounts) CountLines(_ context.Context, id int64) (int, error) {
	var n int
	r.s.read(func(st *state) {
		for _, e := range st.entries {
			for _, l := range e.Lines {
				if l.AccountID == id {
					n++
				}
			}
		}
	})
	return n, nil
}
