package memstore

import (
	"context"
	"sort"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Mappings implements mappings.Repository.
type Mappings struct {
	s *Store
}

var _ mappings.Repository = (*Mappings)(nil)

func mappingKey(module, key string) string {
	return mappings.NormalizeModule(module) + "/" + key
}

func (r *Mappings) Get(_ context.Context, module, key string) (mappings.AccountMapping, error) {
	if module == "" || key == "" {
		return mappings.AccountMapping{}, shared.Invalid("mapping", "module and key required")
	}
	var (
		m  mappings.AccountMapping
		ok bool
	)
	r.s.read(func(st *state) { m, ok = st.mappings[mappingKey(module, key)] })
	if !ok {
		return mappings.AccountMapping{}, shared.NotFound("account mapping", mappingKey(module, key))
	}
	return m, nil
}

func (r *Mappings) Upsert(_ context.Context, m mappings.AccountMapping) (mappings.AccountMapping, error) {
	if err := m.Validate(); err != nil {
		return mappings.AccountMapping{}, err
	}
	m.Module = mappings.NormalizeModule(m.Module)
	err := r.s.tx(func(st *state) error {
		now := r.s.now().UTC()
		k := mappingKey(m.Module, m.Key)
		if existing, ok := st.mappings[k]; ok {
			m.CreatedAt = existing.CreatedAt
		} else {
			m.CreatedAt = now
		}
		m.UpdatedAt = now
		st.mappings[k] = m
		return nil
	})
	return m, err
}

func (r *Mappings) List(_ context.Context, module string) ([]mappings.AccountMapping, error) {
	module = mappings.NormalizeModule(module)
	var out []mappings.AccountMapping
	r.s.read(func(st *state) {
		for _, m := range st.mappings {
			if module == "" || m.Module == module {
				out = append(out, m)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}
