package journals

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	core "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// YearGuard rejects dates inside closed financial years and returns the
// year to stamp on new entries, if any.
type YearGuard interface {
	Enabled() bool
	EnsureDateOpen(ctx context.Context, date time.Time) (*int64, error)
}

// PostListener is notified after a transaction that posted entries commits.
type PostListener func(ctx context.Context, entries []JournalEntry)

// Config tunes the engine.
type Config struct {
	EntryPrefix string
	// Tolerance is the largest accepted |debit - credit|. Zero requires an
	// exact balance.
	Tolerance decimal.Decimal
}

// Service is the ledger engine.
type Service struct {
	repo      Repository
	audit     core.AuditRecorder
	guard     YearGuard
	calc      *balances.Calculator
	cfg       Config
	logger    *slog.Logger
	listeners []PostListener
	now       func() time.Time
}

// NewService constructs the ledger engine. audit and guard may be nil.
func NewService(repo Repository, audit core.AuditRecorder, guard YearGuard, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.EntryPrefix = normalizePrefix(cfg.EntryPrefix)
	if cfg.Tolerance.IsNegative() {
		cfg.Tolerance = decimal.Zero
	}
	return &Service{
		repo:   repo,
		audit:  audit,
		guard:  guard,
		calc:   balances.NewCalculator(),
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
		s.calc.WithNow(now)
	}
}

// OnPosted registers a listener for committed postings.
func (s *Service) OnPosted(fn PostListener) {
	if fn != nil {
		s.listeners = append(s.listeners, fn)
	}
}

// Tolerance returns the configured balance tolerance.
func (s *Service) Tolerance() decimal.Decimal {
	return s.cfg.Tolerance
}

// CreateJournalEntry validates and stores a new entry, posting it when
// autoPost is set.
func (s *Service) CreateJournalEntry(ctx context.Context, header EntryHeader, lines []LineInput, autoPost bool) (JournalEntry, error) {
	if err := ValidateEntry(header, lines, s.cfg.Tolerance); err != nil {
		return JournalEntry{}, err
	}
	header.EntryDate = shared.DateOnly(header.EntryDate)
	yearID, err := s.ensureOpen(ctx, header.EntryDate)
	if err != nil {
		return JournalEntry{}, err
	}
	actor := core.ActorPtr(ctx)
	var entry JournalEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := s.insert(ctx, tx, header, lines, yearID, nil, actor)
		if err != nil {
			return err
		}
		if autoPost {
			created, err = s.post(ctx, tx, created, actor)
			if err != nil {
				return err
			}
		}
		entry = created
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, "journal.create", entry.ID, map[string]any{
		"number":   entry.EntryNumber,
		"status":   string(entry.Status),
		"debit":    entry.TotalDebits().StringFixed(2),
		"credit":   entry.TotalCredits().StringFixed(2),
		"ref":      entry.Reference.Domain,
		"ref_id":   entry.Reference.ID,
		"autopost": autoPost,
	})
	if entry.Status == StatusPosted {
		s.notify(ctx, entry)
	}
	return entry, nil
}

// CreateTransaction records a two-line entry moving amount from the credit
// account to the debit account.
func (s *Service) CreateTransaction(ctx context.Context, debitAccountID, creditAccountID int64, amount decimal.Decimal, description string, extra EntryHeader, autoPost bool) (JournalEntry, error) {
	if debitAccountID == creditAccountID {
		return JournalEntry{}, shared.Invalid("credit_account_id", "must differ from the debit account")
	}
	header := extra
	if strings.TrimSpace(description) != "" {
		header.Description = description
	}
	if header.EntryDate.IsZero() {
		header.EntryDate = s.now()
	}
	lines := []LineInput{
		{AccountID: debitAccountID, Type: Debit, Amount: amount, Description: header.Description},
		{AccountID: creditAccountID, Type: Credit, Amount: amount, Description: header.Description},
	}
	return s.CreateJournalEntry(ctx, header, lines, autoPost)
}

// PostEntry posts a draft entry. It returns false without changes when the
// entry is already posted.
func (s *Service) PostEntry(ctx context.Context, entryID int64, actorID int64) (JournalEntry, bool, error) {
	var actor *int64
	if actorID > 0 {
		actor = &actorID
	} else {
		actor = core.ActorPtr(ctx)
	}
	draft, err := s.repo.Get(ctx, entryID)
	if err != nil {
		return JournalEntry{}, false, err
	}
	if draft.Status == StatusDraft {
		if _, err := s.ensureOpen(ctx, draft.EntryDate); err != nil {
			return JournalEntry{}, false, err
		}
	}
	var (
		entry  JournalEntry
		posted bool
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		switch current.Status {
		case StatusPosted:
			entry = current
			return nil
		case StatusReversed:
			return &shared.InvalidStateError{Entity: "journal entry", ID: entryID, Status: string(current.Status), Action: "post"}
		}
		entry, err = s.post(ctx, tx, current, actor)
		posted = err == nil
		return err
	})
	if err != nil {
		return JournalEntry{}, false, err
	}
	if posted {
		s.record(ctx, "journal.post", entry.ID, map[string]any{"number": entry.EntryNumber})
		s.notify(ctx, entry)
	}
	return entry, posted, nil
}

// ReverseEntry posts a mirror of a posted entry dated today and marks the
// original REVERSED.
func (s *Service) ReverseEntry(ctx context.Context, entryID int64, reason string) (JournalEntry, error) {
	today := shared.DateOnly(s.now())
	yearID, err := s.ensureOpen(ctx, today)
	if err != nil {
		return JournalEntry{}, err
	}
	actor := core.ActorPtr(ctx)
	var reversal JournalEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if !original.CanBeReversed() {
			return &shared.InvalidStateError{Entity: "journal entry", ID: entryID, Status: string(original.Status), Action: "reverse"}
		}
		description := strings.TrimSpace(reason)
		if description == "" {
			description = "Reversal of " + original.EntryNumber
		}
		header := EntryHeader{
			EntryDate:   today,
			Reference:   original.Reference,
			Description: description,
			Notes:       "Reversal of entry: " + original.EntryNumber,
		}
		mirror, err := s.insert(ctx, tx, header, reversedLines(original.Lines), yearID, &original.ID, actor)
		if err != nil {
			return err
		}
		mirror, err = s.post(ctx, tx, mirror, actor)
		if err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, original.ID, StatusReversed); err != nil {
			return err
		}
		reversal = mirror
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, "journal.reverse", entryID, map[string]any{
		"reversal_id":     reversal.ID,
		"reversal_number": reversal.EntryNumber,
		"reason":          reason,
	})
	s.notify(ctx, reversal)
	return reversal, nil
}

// GetAccountBalance returns the balance of an account at asOf.
func (s *Service) GetAccountBalance(ctx context.Context, accountID int64, asOf time.Time) (decimal.Decimal, error) {
	return s.balance(ctx, accountID, asOf, s.calc.Current)
}

// ReplayBalance computes the balance from lines alone, ignoring snapshots.
func (s *Service) ReplayBalance(ctx context.Context, accountID int64, asOf time.Time) (decimal.Decimal, error) {
	return s.balance(ctx, accountID, asOf, s.calc.Replay)
}

type balanceFunc func(context.Context, balances.Reader, accounts.Account, time.Time) (decimal.Decimal, error)

func (s *Service) balance(ctx context.Context, accountID int64, asOf time.Time, fn balanceFunc) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		acc, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		bal, err = fn(ctx, tx, acc, asOf)
		return err
	})
	return bal, err
}

// GetAccountBalances returns the balances of list at asOf read in one
// transaction.
func (s *Service) GetAccountBalances(ctx context.Context, list []accounts.Account, asOf time.Time) (map[int64]decimal.Decimal, error) {
	out := make(map[int64]decimal.Decimal, len(list))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, acc := range list {
			bal, err := s.calc.Current(ctx, tx, acc, asOf)
			if err != nil {
				return fmt.Errorf("journals: balance of %s: %w", acc.Code, err)
			}
			out[acc.ID] = bal
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetEntry loads an entry with its lines.
func (s *Service) GetEntry(ctx context.Context, id int64) (JournalEntry, error) {
	return s.repo.Get(ctx, id)
}

// ListEntries returns a page of entries.
func (s *Service) ListEntries(ctx context.Context, filter ListFilter) ([]JournalEntry, core.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, core.Pagination{}, shared.Invalid("status", "unknown status %s", filter.Status)
	}
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, core.Pagination{}, err
	}
	return entries, core.NewPagination(filter.Page, filter.PerPage, total), nil
}

// EntriesForReference returns every entry recorded for ref in id order.
func (s *Service) EntriesForReference(ctx context.Context, ref Reference) ([]JournalEntry, error) {
	if ref.IsZero() {
		return nil, shared.Invalid("reference", "is required")
	}
	return s.repo.ByReference(ctx, ref)
}

// PeriodTotals sums the effective lines of an account in [start, end].
func (s *Service) PeriodTotals(ctx context.Context, accountID int64, start, end time.Time) (balances.Totals, error) {
	return s.repo.PeriodTotals(ctx, accountID, shared.DateOnly(start), shared.DateOnly(end))
}

// AccountActivity returns the effective lines of an account in [start, end].
func (s *Service) AccountActivity(ctx context.Context, accountID int64, start, end time.Time) ([]ActivityLine, error) {
	return s.repo.AccountActivity(ctx, accountID, shared.DateOnly(start), shared.DateOnly(end))
}

// EntriesOn returns the effective entries dated exactly date.
func (s *Service) EntriesOn(ctx context.Context, date time.Time) ([]JournalEntry, error) {
	d := shared.DateOnly(date)
	return s.repo.EntriesBetween(ctx, d, d, []Status{StatusPosted, StatusReversed})
}

// EntriesBetween returns entries in [start, end]; an empty status selects
// all statuses.
func (s *Service) EntriesBetween(ctx context.Context, start, end time.Time, status Status) ([]JournalEntry, error) {
	statuses := []Status{StatusDraft, StatusPosted, StatusReversed}
	if status != "" {
		if !status.Valid() {
			return nil, shared.Invalid("status", "unknown status %s", status)
		}
		statuses = []Status{status}
	}
	return s.repo.EntriesBetween(ctx, shared.DateOnly(start), shared.DateOnly(end), statuses)
}

// RebuildSnapshots recomputes the snapshot of every account at asOf and
// returns the number of accounts refreshed.
func (s *Service) RebuildSnapshots(ctx context.Context, asOf time.Time) (int, error) {
	asOf = shared.DateOnly(asOf)
	var n int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		list, err := tx.ListAccounts(ctx)
		if err != nil {
			return err
		}
		for _, acc := range list {
			if _, err := s.calc.Refresh(ctx, tx, acc, asOf); err != nil {
				return fmt.Errorf("journals: rebuild %s: %w", acc.Code, err)
			}
		}
		n = len(list)
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("balance snapshots rebuilt", slog.Int("accounts", n), slog.String("as_of", asOf.Format(shared.DateLayout)))
	return n, nil
}

func (s *Service) insert(ctx context.Context, tx TxRepository, header EntryHeader, lines []LineInput, yearID, reversalOf, actor *int64) (JournalEntry, error) {
	ids := lineAccounts(lines)
	accs, err := tx.GetAccountsForShare(ctx, ids)
	if err != nil {
		return JournalEntry{}, err
	}
	for i, l := range lines {
		acc, ok := accs[l.AccountID]
		if !ok {
			return JournalEntry{}, shared.Invalid(fmt.Sprintf("lines[%d].account_id", i), "account %d does not exist", l.AccountID)
		}
		if !acc.Usable() {
			return JournalEntry{}, shared.Invalid(fmt.Sprintf("lines[%d].account_id", i), "account %s is inactive", acc.Code)
		}
	}
	created := shared.DateOnly(s.now())
	seq, err := tx.NextEntrySequence(ctx, SequenceKey(s.cfg.EntryPrefix, created))
	if err != nil {
		return JournalEntry{}, err
	}
	entry, err := tx.InsertEntry(ctx, JournalEntry{
		EntryNumber:     FormatEntryNumber(s.cfg.EntryPrefix, created, seq),
		EntryDate:       header.EntryDate,
		FinancialYearID: yearID,
		Reference:       header.Reference,
		Description:     strings.TrimSpace(header.Description),
		Notes:           header.Notes,
		Status:          StatusDraft,
		CreatedBy:       actor,
		ReversalOfID:    reversalOf,
	})
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines, err = tx.InsertLines(ctx, entry.ID, lines)
	if err != nil {
		return JournalEntry{}, err
	}
	for i := range entry.Lines {
		acc := accs[entry.Lines[i].AccountID]
		entry.Lines[i].AccountCode = acc.Code
		entry.Lines[i].AccountName = acc.Name
	}
	return entry, nil
}

// post marks entry POSTED and refreshes the snapshots of every account it
// touches in ascending account order.
func (s *Service) post(ctx context.Context, tx TxRepository, entry JournalEntry, actor *int64) (JournalEntry, error) {
	if err := checkBalanced(entry, s.cfg.Tolerance); err != nil {
		return JournalEntry{}, err
	}
	if s.guard != nil && s.guard.Enabled() {
		yearID, closed, err := tx.LockYearForDate(ctx, entry.EntryDate)
		if err != nil {
			return JournalEntry{}, err
		}
		if closed {
			return JournalEntry{}, &shared.InvalidStateError{Entity: "financial year", ID: yearID, Status: "CLOSED", Action: "post into"}
		}
	}
	at := s.now().UTC()
	if err := tx.MarkPosted(ctx, entry.ID, actor, at); err != nil {
		return JournalEntry{}, err
	}
	for _, id := range entry.AccountIDs() {
		acc, err := tx.GetAccount(ctx, id)
		if err != nil {
			return JournalEntry{}, err
		}
		if _, err := s.calc.Refresh(ctx, tx, acc, entry.EntryDate); err != nil {
			return JournalEntry{}, err
		}
	}
	entry.Status = StatusPosted
	entry.PostedBy = actor
	entry.PostedAt = &at
	return entry, nil
}

func (s *Service) ensureOpen(ctx context.Context, date time.Time) (*int64, error) {
	if s.guard == nil {
		return nil, nil
	}
	return s.guard.EnsureDateOpen(ctx, date)
}

func (s *Service) notify(ctx context.Context, entries ...JournalEntry) {
	for _, fn := range s.listeners {
		fn(ctx, entries)
	}
}

func (s *Service) record(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, core.AuditLog{
		ActorID:  core.ActorPtr(ctx),
		Action:   action,
		Entity:   "journal_entry",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Int64("entry_id", id), slog.Any("error", err))
	}
}
