package integration

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// AccountRef names a ledger account by id, by code, or by mapping key. The
// first populated form wins.
type AccountRef struct {
	ID     int64
	Code   string
	Module string
	Key    string
}

// ByID references an account by primary key.
func ByID(id int64) AccountRef { return AccountRef{ID: id} }

// ByCode references an account by chart code.
func ByCode(code string) AccountRef { return AccountRef{Code: code} }

// ByMapping references the account mapped to (module, key).
func ByMapping(module, key string) AccountRef { return AccountRef{Module: module, Key: key} }

// IsZero reports whether no form is set.
func (r AccountRef) IsZero() bool {
	return r.ID <= 0 && strings.TrimSpace(r.Code) == "" && (r.Module == "" || r.Key == "")
}

// AccountLookup finds accounts by id or code.
type AccountLookup interface {
	Get(ctx context.Context, id int64) (accounts.Account, error)
	GetByCode(ctx context.Context, code string) (accounts.Account, error)
}

// MappingLookup resolves integration keys.
type MappingLookup interface {
	Get(ctx context.Context, module, key string) (mappings.AccountMapping, error)
}

// AccountResolver turns references into account ids.
type AccountResolver struct {
	accounts AccountLookup
	mappings MappingLookup
}

// NewAccountResolver constructs a resolver. mappings may be nil.
func NewAccountResolver(accounts AccountLookup, mappings MappingLookup) *AccountResolver {
	return &AccountResolver{accounts: accounts, mappings: mappings}
}

// Resolve returns the account id for ref. ok is false when nothing matches.
func (r *AccountResolver) Resolve(ctx context.Context, ref AccountRef) (int64, bool, error) {
	if r == nil || ref.IsZero() {
		return 0, false, nil
	}
	var (
		acc accounts.Account
		err error
	)
	switch {
	case ref.ID > 0:
		acc, err = r.accounts.Get(ctx, ref.ID)
	case strings.TrimSpace(ref.Code) != "":
		acc, err = r.accounts.GetByCode(ctx, strings.TrimSpace(ref.Code))
	default:
		if r.mappings == nil {
			return 0, false, nil
		}
		m, mErr := r.mappings.Get(ctx, ref.Module, ref.Key)
		if mErr != nil {
			return 0, false, missing(mErr)
		}
		return m.AccountID, true, nil
	}
	if err != nil {
		return 0, false, missing(err)
	}
	return acc.ID, true, nil
}

func missing(err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	return err
}

// Funcs adapts plain functions and fixed accounts into a Resolver. Unset
// functions fall back to zero values. A zero date posts on the ledger's today.
type Funcs[E any] struct {
	Debit    func(E) AccountRef
	Credit   func(E) AccountRef
	AmountOf func(E) decimal.Decimal
	Describe func(E) string
	Date     func(E) time.Time
	Ref      func(E) journals.Reference
}

var _ Resolver[struct{}] = Funcs[struct{}]{}

func (f Funcs[E]) DebitAccount(doc E) AccountRef {
	if f.Debit == nil {
		return AccountRef{}
	}
	return f.Debit(doc)
}

func (f Funcs[E]) CreditAccount(doc E) AccountRef {
	if f.Credit == nil {
		return AccountRef{}
	}
	return f.Credit(doc)
}

func (f Funcs[E]) Amount(doc E) decimal.Decimal {
	if f.AmountOf == nil {
		return decimal.Zero
	}
	return f.AmountOf(doc).Round(2)
}

func (f Funcs[E]) Description(doc E) string {
	if f.Describe == nil {
		return ""
	}
	return f.Describe(doc)
}

func (f Funcs[E]) EntryDate(doc E) time.Time {
	if f.Date == nil {
		return time.Time{}
	}
	return f.Date(doc)
}

func (f Funcs[E]) Reference(doc E) journals.Reference {
	if f.Ref == nil {
		return journals.Reference{}
	}
	return f.Ref(doc)
}

// Fixed returns a function yielding the same reference for every document.
func Fixed[E any](ref AccountRef) func(E) AccountRef {
	return func(E) AccountRef { return ref }
}

// Line is a priced quantity on a business document.
type Line struct {
	Qty      decimal.Decimal
	UnitCost decimal.Decimal
}

// LineTotal sums quantity times unit cost, rounded to cents.
func LineTotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Qty.Mul(l.UnitCost))
	}
	return total.Round(2)
}
