package integration

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// conflictAttempts bounds retries of a binding operation that lost a race.
const conflictAttempts = 3

// Ledger exposes the journal operations bindings require.
type Ledger interface {
	CreateTransaction(ctx context.Context, debitAccountID, creditAccountID int64, amount decimal.Decimal, description string, extra journals.EntryHeader, autoPost bool) (journals.JournalEntry, error)
	EntriesForReference(ctx context.Context, ref journals.Reference) ([]journals.JournalEntry, error)
	ReverseEntry(ctx context.Context, entryID int64, reason string) (journals.JournalEntry, error)
}

// Resolver extracts posting details from a business document.
type Resolver[E any] interface {
	DebitAccount(doc E) AccountRef
	CreditAccount(doc E) AccountRef
	Amount(doc E) decimal.Decimal
	Description(doc E) string
	EntryDate(doc E) time.Time
	Reference(doc E) journals.Reference
}

// Options controls which document events reach the ledger.
type Options struct {
	AutoPost        bool
	UpdateOnChange  bool
	ReverseOnDelete bool
}

// DefaultOptions posts on create and ignores updates and deletes.
func DefaultOptions() Options {
	return Options{AutoPost: true}
}

// Binding wires lifecycle events of documents of type E into the general ledger.
type Binding[E any] struct {
	ledger   Ledger
	accounts *AccountResolver
	resolver Resolver[E]
	opts     Options
	logger   *slog.Logger
}

// NewBinding constructs a binding for one document type.
func NewBinding[E any](ledger Ledger, accounts *AccountResolver, resolver Resolver[E], opts Options, logger *slog.Logger) *Binding[E] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Binding[E]{ledger: ledger, accounts: accounts, resolver: resolver, opts: opts, logger: logger}
}

// Created records the entry for a new document. It returns nil without error
// when the amount is not positive or either account cannot be resolved.
func (b *Binding[E]) Created(ctx context.Context, doc E) (*journals.JournalEntry, error) {
	if b == nil || b.ledger == nil || b.resolver == nil {
		return nil, nil
	}
	amount := b.resolver.Amount(doc)
	if !amount.IsPositive() {
		return nil, nil
	}
	debit, ok, err := b.accounts.Resolve(ctx, b.resolver.DebitAccount(doc))
	if err != nil || !ok {
		return nil, err
	}
	credit, ok, err := b.accounts.Resolve(ctx, b.resolver.CreditAccount(doc))
	if err != nil || !ok {
		return nil, err
	}
	header := journals.EntryHeader{
		EntryDate: b.resolver.EntryDate(doc),
		Reference: b.resolver.Reference(doc),
	}
	description := b.description(doc)
	logger := b.logger.With(slog.String("correlation_id", uuid.NewString()), slog.String("ref", header.Reference.Domain), slog.String("ref_id", header.Reference.ID))

	var entry journals.JournalEntry
	err = shared.RetryOnConflict(ctx, conflictAttempts, func(ctx context.Context) error {
		var err error
		entry, err = b.ledger.CreateTransaction(ctx, debit, credit, amount, description, header, b.opts.AutoPost)
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			logger.Warn("integration create conflict, retrying", slog.Any("error", err))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info("integration entry created", slog.String("number", entry.EntryNumber), slog.String("status", string(entry.Status)))
	return &entry, nil
}

// Updated reverses the current posted entry of a changed document and records
// a fresh one. It is a no-op unless UpdateOnChange is set.
func (b *Binding[E]) Updated(ctx context.Context, doc E) (*journals.JournalEntry, error) {
	if b == nil || !b.opts.UpdateOnChange {
		return nil, nil
	}
	if _, err := b.reverseCurrent(ctx, doc, "Updated: "); err != nil {
		return nil, err
	}
	return b.Created(ctx, doc)
}

// Deleted reverses the current posted entry of a removed document. It is a
// no-op unless ReverseOnDelete is set.
func (b *Binding[E]) Deleted(ctx context.Context, doc E) (*journals.JournalEntry, error) {
	if b == nil || !b.opts.ReverseOnDelete {
		return nil, nil
	}
	return b.reverseCurrent(ctx, doc, "Reversed: ")
}

// Current returns the latest entry recorded for the document that is neither
// reversed nor itself a reversal.
func (b *Binding[E]) Current(ctx context.Context, doc E) (*journals.JournalEntry, error) {
	ref := b.resolver.Reference(doc)
	if ref.IsZero() {
		return nil, nil
	}
	entries, err := b.ledger.EntriesForReference(ctx, ref)
	if err != nil {
		return nil, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Status == journals.StatusReversed || e.ReversalOfID != nil {
			continue
		}
		return &e, nil
	}
	return nil, nil
}

// History returns every entry recorded for the document, newest first.
func (b *Binding[E]) History(ctx context.Context, doc E) ([]journals.JournalEntry, error) {
	ref := b.resolver.Reference(doc)
	if ref.IsZero() {
		return nil, nil
	}
	entries, err := b.ledger.EntriesForReference(ctx, ref)
	if err != nil {
		return nil, err
	}
	out := make([]journals.JournalEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

func (b *Binding[E]) reverseCurrent(ctx context.Context, doc E, prefix string) (*journals.JournalEntry, error) {
	var reversal *journals.JournalEntry
	err := shared.RetryOnConflict(ctx, conflictAttempts, func(ctx context.Context) error {
		current, err := b.Current(ctx, doc)
		if err != nil {
			return err
		}
		if current == nil || current.Status != journals.StatusPosted {
			reversal = nil
			return nil
		}
		mirror, err := b.ledger.ReverseEntry(ctx, current.ID, prefix+b.description(doc))
		if err != nil {
			return err
		}
		b.logger.Info("integration entry reversed",
			slog.Int64("entry_id", current.ID),
			slog.String("reversal", mirror.EntryNumber))
		reversal = &mirror
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

func (b *Binding[E]) description(doc E) string {
	if d := strings.TrimSpace(b.resolver.Description(doc)); d != "" {
		return d
	}
	ref := b.resolver.Reference(doc)
	if ref.IsZero() {
		return "Integration entry"
	}
	return ref.Domain + " #" + ref.ID
}
