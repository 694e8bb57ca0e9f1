package journals

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Status enumerates journal lifecycle values.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPosted   Status = "POSTED"
	StatusReversed Status = "REVERSED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPosted, StatusReversed:
		return true
	}
	return false
}

// Effective reports whether lines of an entry in status s count toward
// balances. A reversed entry keeps its effect; its mirror offsets it.
func (s Status) Effective() bool {
	return s == StatusPosted || s == StatusReversed
}

// LineType marks a line as debit or credit.
type LineType string

const (
	Debit  LineType = "DEBIT"
	Credit LineType = "CREDIT"
)

// Valid reports whether t is DEBIT or CREDIT.
func (t LineType) Valid() bool {
	return t == Debit || t == Credit
}

// Opposite swaps debit and credit.
func (t LineType) Opposite() LineType {
	if t == Debit {
		return Credit
	}
	return Debit
}

// Reference points at the business document behind an entry. The ledger
// never interprets it.
type Reference struct {
	Domain string `json:"domain,omitempty"`
	ID     string `json:"id,omitempty"`
}

// IsZero reports whether the reference is unset.
func (r Reference) IsZero() bool {
	return r.Domain == "" && r.ID == ""
}

// JournalEntry is a dated set of balanced lines.
type JournalEntry struct {
	ID              int64         `json:"id"`
	EntryNumber     string        `json:"entry_number"`
	EntryDate       time.Time     `json:"entry_date"`
	FinancialYearID *int64        `json:"financial_year_id,omitempty"`
	Reference       Reference     `json:"reference"`
	Description     string        `json:"description"`
	Notes           string        `json:"notes,omitempty"`
	Status          Status        `json:"status"`
	CreatedBy       *int64        `json:"created_by,omitempty"`
	PostedBy        *int64        `json:"posted_by,omitempty"`
	PostedAt        *time.Time    `json:"posted_at,omitempty"`
	ReversalOfID    *int64        `json:"reversal_of_id,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Lines           []JournalLine `json:"lines"`
}

// JournalLine stores one debit or credit amount for an account.
type JournalLine struct {
	ID             int64           `json:"id"`
	JournalEntryID int64           `json:"journal_entry_id"`
	AccountID      int64           `json:"account_id"`
	AccountCode    string          `json:"account_code,omitempty"`
	AccountName    string          `json:"account_name,omitempty"`
	Type           LineType        `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description,omitempty"`
	LineNumber     int             `json:"line_number"`
}

// TotalDebits sums the debit lines.
func (e JournalEntry) TotalDebits() decimal.Decimal {
	return sumLines(e.Lines, Debit)
}

// TotalCredits sums the credit lines.
func (e JournalEntry) TotalCredits() decimal.Decimal {
	return sumLines(e.Lines, Credit)
}

// IsBalanced reports whether debits and credits agree within tolerance.
func (e JournalEntry) IsBalanced(tolerance decimal.Decimal) bool {
	return shared.WithinTolerance(e.TotalDebits(), e.TotalCredits(), tolerance)
}

// CanBePosted reports whether the entry is a draft.
func (e JournalEntry) CanBePosted() bool {
	return e.Status == StatusDraft
}

// CanBeReversed reports whether the entry is posted.
func (e JournalEntry) CanBeReversed() bool {
	return e.Status == StatusPosted
}

// AccountIDs returns the distinct accounts referenced by the lines in
// ascending order.
func (e JournalEntry) AccountIDs() []int64 {
	return distinctAccounts(e.Lines)
}

func sumLines(lines []JournalLine, t LineType) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		if l.Type == t {
			total = total.Add(l.Amount)
		}
	}
	return total
}

// EntryHeader carries the header fields of a new entry.
type EntryHeader struct {
	EntryDate   time.Time
	Reference   Reference
	Description string
	Notes       string
}

// LineInput describes one line of a new entry.
type LineInput struct {
	AccountID   int64
	Type        LineType
	Amount      decimal.Decimal
	Description string
}

// ActivityLine is an effective line joined with its entry header.
type ActivityLine struct {
	EntryID         int64           `json:"entry_id"`
	EntryNumber     string          `json:"entry_number"`
	EntryDate       time.Time       `json:"entry_date"`
	Reference       Reference       `json:"reference"`
	EntryDesc       string          `json:"entry_description"`
	LineNumber      int             `json:"line_number"`
	AccountID       int64           `json:"account_id"`
	Type            LineType        `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description,omitempty"`
	ContraAccountID *int64          `json:"contra_account_id,omitempty"`
}

// ListFilter narrows entry listings.
type ListFilter struct {
	Status    Status
	From      time.Time
	To        time.Time
	AccountID int64
	Reference *Reference
	Page      int
	PerPage   int
}
