// Package memstore implements the ledger repositories in memory. A single
// mutex serialises transactions; a failed transaction restores the state it
// started from.
package memstore

import (
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/fiscalyears"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
)

// Store holds the shared state behind every repository view.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

type state struct {
	nextID    int64
	types     map[int64]accounts.AccountType
	accounts  map[int64]accounts.Account
	entries   map[int64]journals.JournalEntry
	snapshots map[int64]map[time.Time]balances.Snapshot
	sequences map[string]int64
	years     map[int64]fiscalyears.FinancialYear
	mappings  map[string]mappings.AccountMapping
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		state: &state{
			types:     map[int64]accounts.AccountType{},
			accounts:  map[int64]accounts.Account{},
			entries:   map[int64]journals.JournalEntry{},
			snapshots: map[int64]map[time.Time]balances.Snapshot{},
			sequences: map[string]int64{},
			years:     map[int64]fiscalyears.FinancialYear{},
			mappings:  map[string]mappings.AccountMapping{},
		},
		now: time.Now,
	}
}

// WithNow overrides the clock used for timestamps.
func (s *Store) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Accounts returns the accounts.Repository view.
func (s *Store) Accounts() *Accounts { return &Accounts{s: s} }

// Journals returns the journals.Repository view.
func (s *Store) Journals() *Journals { return &Journals{s: s} }

// Years returns the fiscalyears.Repository view.
func (s *Store) Years() *Years { return &Years{s: s} }

// Mappings returns the mappings.Repository view.
func (s *Store) Mappings() *Mappings { return &Mappings{s: s} }

func (s *Store) read(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

// tx runs fn against a copy of the state and keeps it only on success.
func (s *Store) tx(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.state.clone()
	if err := fn(work); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (st *state) id() int64 {
	st.nextID++
	return st.nextID
}

func (st *state) clone() *state {
	c := &state{
		nextID:    st.nextID,
		types:     make(map[int64]accounts.AccountType, len(st.types)),
		accounts:  make(map[int64]accounts.Account, len(st.accounts)),
		entries:   make(map[int64]journals.JournalEntry, len(st.entries)),
		snapshots: make(map[int64]map[time.Time]balances.Snapshot, len(st.snapshots)),
		sequences: make(map[string]int64, len(st.sequences)),
		years:     make(map[int64]fiscalyears.FinancialYear, len(st.years)),
		mappings:  make(map[string]mappings.AccountMapping, len(st.mappings)),
	}
	for k, v := range st.types {
		c.types[k] = v
	}
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	for k, v := range st.entries {
		v.Lines = append([]journals.JournalLine(nil), v.Lines...)
		c.entries[k] = v
	}
	for k, v := range st.snapshots {
		m := make(map[time.Time]balances.Snapshot, len(v))
		for d, snap := range v {
			m[d] = snap
		}
		c.snapshots[k] = m
	}
	for k, v := range st.sequences {
		c.sequences[k] = v
	}
	for k, v := range st.years {
		c.years[k] = v
	}
	for k, v := range st.mappings {
		c.mappings[k] = v
	}
	return c
}
