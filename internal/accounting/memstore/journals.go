package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/fiscalyears"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	core "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Journals implements journals.Repository.
type Journals struct {
	s *Store
}

var _ journals.Repository = (*Journals)(nil)

// WithTx runs fn with exclusive access to the store.
func (r *Journals) WithTx(ctx context.Context, fn func(context.Context, journals.TxRepository) error) error {
	return r.s.tx(func(st *state) error {
		return fn(ctx, &journalTx{st: st, now: r.s.now})
	})
}

func (st *state) entry(id int64) (journals.JournalEntry, bool) {
	e, ok := st.entries[id]
	if !ok {
		return journals.JournalEntry{}, false
	}
	lines := make([]journals.JournalLine, len(e.Lines))
	for i, l := range e.Lines {
		if a, ok := st.accounts[l.AccountID]; ok {
			l.AccountCode, l.AccountName = a.Code, a.Name
		}
		lines[i] = l
	}
	e.Lines = lines
	return e, true
}

func (st *state) collect(keep func(journals.JournalEntry) bool) []journals.JournalEntry {
	var out []journals.JournalEntry
	for id := range st.entries {
		e, _ := st.entry(id)
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (st *state) totals(accountID int64, after *time.Time, start, end time.Time) balances.Totals {
	var t balances.Totals
	for _, e := range st.entries {
		if !e.Status.Effective() || e.EntryDate.Before(start) || e.EntryDate.After(end) {
			continue
		}
		if after != nil && !e.EntryDate.After(*after) {
			continue
		}
		for _, l := range e.Lines {
			if l.AccountID == accountID {
				t = t.Line(string(l.Type), l.Amount)
			}
		}
	}
	return t
}

func (r *Journals) Get(_ context.Context, id int64) (journals.JournalEntry, error) {
	var (
		e  journals.JournalEntry
		ok bool
	)
	r.s.read(func(st *state) { e, ok = st.entry(id) })
	if !ok {
		return journals.JournalEntry{}, shared.NotFound("journal entry", id)
	}
	return e, nil
}

func (r *Journals) List(_ context.Context, filter journals.ListFilter) ([]journals.JournalEntry, int, error) {
	var all []journals.JournalEntry
	r.s.read(func(st *state) {
		all = st.collect(func(e journals.JournalEntry) bool {
			switch {
			case filter.Status != "" && e.Status != filter.Status:
				return false
			case !filter.From.IsZero() && e.EntryDate.Before(filter.From):
				return false
			case !filter.To.IsZero() && e.EntryDate.After(filter.To):
				return false
			case filter.Reference != nil && e.Reference != *filter.Reference:
				return false
			}
			if filter.AccountID > 0 {
				for _, l := range e.Lines {
					if l.AccountID == filter.AccountID {
						return true
					}
				}
				return false
			}
			return true
		})
	})
	sort.Slice(all, func(i, j int) bool {
		if !all[i].EntryDate.Equal(all[j].EntryDate) {
			return all[i].EntryDate.After(all[j].EntryDate)
		}
		return all[i].ID > all[j].ID
	})
	page := core.NewPagination(filter.Page, filter.PerPage, len(all))
	start := page.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + page.PerPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (r *Journals) ByReference(_ context.Context, ref journals.Reference) ([]journals.JournalEntry, error) {
	var out []journals.JournalEntry
	r.s.read(func(st *state) {
		out = st.collect(func(e journals.JournalEntry) bool { return e.Reference == ref })
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Journals) EntriesBetween(_ context.Context, start, end time.Time, statuses []journals.Status) ([]journals.JournalEntry, error) {
	wanted := make(map[journals.Status]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}
	var out []journals.JournalEntry
	r.s.read(func(st *state) {
		out = st.collect(func(e journals.JournalEntry) bool {
			return wanted[e.Status] && !e.EntryDate.Before(start) && !e.EntryDate.After(end)
		})
	})
	sort.Slice(out, func(i, j int) bool { return journals.CompareEntryNumbers(out[i].EntryNumber, out[j].EntryNumber) < 0 })
	return out, nil
}

func (r *Journals) AccountActivity(_ context.Context, accountID int64, start, end time.Time) ([]journals.ActivityLine, error) {
	var out []journals.ActivityLine
	r.s.read(func(st *state) {
		for _, e := range st.entries {
			if !e.Status.Effective() || e.EntryDate.Before(start) || e.EntryDate.After(end) {
				continue
			}
			var contra *int64
			for _, o := range e.Lines {
				if o.AccountID != accountID {
					id := o.AccountID
					contra = &id
					break
				}
			}
			for _, l := range e.Lines {
				if l.AccountID != accountID {
					continue
				}
				out = append(out, journals.ActivityLine{
					EntryID:         e.ID,
					EntryNumber:     e.EntryNumber,
					EntryDate:       e.EntryDate,
					Reference:       e.Reference,
					EntryDesc:       e.Description,
					LineNumber:      l.LineNumber,
					AccountID:       l.AccountID,
					Type:            l.Type,
					Amount:          l.Amount,
					Description:     l.Description,
					ContraAccountID: contra,
				})
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.EntryDate.Equal(b.EntryDate) {
			return a.EntryDate.Before(b.EntryDate)
		}
		if a.EntryID != b.EntryID {
			return a.EntryID < b.EntryID
		}
		return a.LineNumber < b.LineNumber
	})
	return out, nil
}

func (r *Journals) PeriodTotals(_ context.Context, accountID int64, start, end time.Time) (balances.Totals, error) {
	var t balances.Totals
	r.s.read(func(st *state) { t = st.totals(accountID, nil, start, end) })
	return t, nil
}

// journalTx implements journals.TxRepository on a working copy.
type journalTx struct {
	st  *state
	now func() time.Time
}

var _ journals.TxRepository = (*journalTx)(nil)

func (t *journalTx) LatestSnapshot(_ context.Context, accountID int64, asOf time.Time) (*balances.Snapshot, error) {
	var best *balances.Snapshot
	for d, snap := range t.st.snapshots[accountID] {
		if d.After(asOf) {
			continue
		}
		if best == nil || d.After(best.BalanceDate) {
			s := snap
			best = &s
		}
	}
	return best, nil
}

func (t *journalTx) PostedTotals(_ context.Context, accountID int64, after *time.Time, through time.Time) (balances.Totals, error) {
	return t.st.totals(accountID, after, time.Time{}, through), nil
}

func (t *journalTx) UpsertSnapshot(_ context.Context, snap balances.Snapshot) error {
	m, ok := t.st.snapshots[snap.AccountID]
	if !ok {
		m = map[time.Time]balances.Snapshot{}
		t.st.snapshots[snap.AccountID] = m
	}
	m[snap.BalanceDate] = snap
	return nil
}

func (t *journalTx) SnapshotDatesAfter(_ context.Context, accountID int64, date time.Time) ([]time.Time, error) {
	var out []time.Time
	for d := range t.st.snapshots[accountID] {
		if d.After(date) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (t *journalTx) GetAccount(_ context.Context, id int64) (accounts.Account, error) {
	a, ok := t.st.account(id)
	if !ok {
		return accounts.Account{}, shared.NotFound("account", id)
	}
	return a, nil
}

func (t *journalTx) ListAccounts(_ context.Context) ([]accounts.Account, error) {
	out := make([]accounts.Account, 0, len(t.st.accounts))
	for id := range t.st.accounts {
		a, _ := t.st.account(id)
		if a.DeletedAt == nil {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *journalTx) GetAccountsForShare(_ context.Context, ids []int64) (map[int64]accounts.Account, error) {
	out := make(map[int64]accounts.Account, len(ids))
	for _, id := range ids {
		if a, ok := t.st.account(id); ok {
			out[id] = a
		}
	}
	return out, nil
}

func (t *journalTx) NextEntrySequence(_ context.Context, key string) (int64, error) {
	t.st.sequences[key]++
	return t.st.sequences[key], nil
}

func (t *journalTx) InsertEntry(_ context.Context, e journals.JournalEntry) (journals.JournalEntry, error) {
	for _, existing := range t.st.entries {
		if existing.EntryNumber == e.EntryNumber {
			return journals.JournalEntry{}, &shared.ConcurrencyConflictError{Resource: "journal entry"}
		}
	}
	now := t.now().UTC()
	e.ID = t.st.id()
	e.CreatedAt, e.UpdatedAt = now, now
	e.Lines = nil
	t.st.entries[e.ID] = e
	return e, nil
}

func (t *journalTx) InsertLines(_ context.Context, entryID int64, lines []journals.LineInput) ([]journals.JournalLine, error) {
	e, ok := t.st.entries[entryID]
	if !ok {
		return nil, shared.NotFound("journal entry", entryID)
	}
	out := make([]journals.JournalLine, 0, len(lines))
	for i, l := range lines {
		out = append(out, journals.JournalLine{
			ID:             t.st.id(),
			JournalEntryID: entryID,
			AccountID:      l.AccountID,
			Type:           l.Type,
			Amount:         l.Amount,
			Description:    l.Description,
			LineNumber:     i + 1,
		})
	}
	e.Lines = append([]journals.JournalLine(nil), out...)
	t.st.entries[entryID] = e
	return out, nil
}

func (t *journalTx) GetEntryForUpdate(_ context.Context, id int64) (journals.JournalEntry, error) {
	e, ok := t.st.entry(id)
	if !ok {
		return journals.JournalEntry{}, shared.NotFound("journal entry", id)
	}
	return e, nil
}

func (t *journalTx) MarkPosted(_ context.Context, id int64, postedBy *int64, at time.Time) error {
	e, ok := t.st.entries[id]
	if !ok {
		return shared.NotFound("journal entry", id)
	}
	if e.Status != journals.StatusDraft {
		return &shared.ConcurrencyConflictError{Resource: "journal entry"}
	}
	e.Status = journals.StatusPosted
	e.PostedBy = postedBy
	e.PostedAt = &at
	e.UpdatedAt = t.now().UTC()
	t.st.entries[id] = e
	return nil
}

func (t *journalTx) LockYearForDate(_ context.Context, date time.Time) (int64, bool, error) {
	var best *fiscalyears.FinancialYear
	for _, fy := range t.st.years {
		if fy.Contains(date) && (best == nil || fy.StartDate.Before(best.StartDate)) {
			match := fy
			best = &match
		}
	}
	if best == nil {
		return 0, false, nil
	}
	return best.ID, best.IsClosed, nil
}

func (t *journalTx) UpdateStatus(_ context.Context, id int64, status journals.Status) error {
	e, ok := t.st.entries[id]
	if !ok {
		return shared.NotFound("journal entry", id)
	}
	e.Status = status
	e.UpdatedAt = t.now().UTC()
	t.st.entries[id] = e
	return nil
}
