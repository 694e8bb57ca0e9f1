package journals

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// ValidateEntry checks the structure of a new entry and that its lines
// balance within tolerance.
func ValidateEntry(header EntryHeader, lines []LineInput, tolerance decimal.Decimal) error {
	if header.EntryDate.IsZero() {
		return shared.Invalid("entry_date", "is required")
	}
	if strings.TrimSpace(header.Description) == "" {
		return shared.Invalid("description", "is required")
	}
	if len(lines) < 2 {
		return shared.Invalid("lines", "must contain at least two lines")
	}
	debit, credit := decimal.Zero, decimal.Zero
	for i, l := range lines {
		field := fmt.Sprintf("lines[%d]", i)
		if l.AccountID <= 0 {
			return shared.Invalid(field+".account_id", "is required")
		}
		if !l.Type.Valid() {
			return shared.Invalid(field+".type", "must be DEBIT or CREDIT")
		}
		if !l.Amount.IsPositive() {
			return shared.Invalid(field+".amount", "must be greater than zero")
		}
		if !l.Amount.Equal(l.Amount.Round(2)) {
			return shared.Invalid(field+".amount", "must have at most 2 decimal places")
		}
		if l.Type == Debit {
			debit = debit.Add(l.Amount)
		} else {
			credit = credit.Add(l.Amount)
		}
	}
	if !shared.WithinTolerance(debit, credit, tolerance) {
		return &shared.UnbalancedEntryError{Debit: debit, Credit: credit}
	}
	return nil
}

// checkBalanced re-verifies persisted lines before posting.
func checkBalanced(e JournalEntry, tolerance decimal.Decimal) error {
	if len(e.Lines) < 2 {
		return shared.Invalid("lines", "entry %s has fewer than two lines", e.EntryNumber)
	}
	if !e.IsBalanced(tolerance) {
		return &shared.UnbalancedEntryError{Debit: e.TotalDebits(), Credit: e.TotalCredits()}
	}
	return nil
}

func distinctAccounts(lines []JournalLine) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.AccountID]; ok {
			continue
		}
		seen[l.AccountID] = struct{}{}
		ids = append(ids, l.AccountID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func lineAccounts(lines []LineInput) []int64 {
	out := make([]JournalLine, len(lines))
	for i, l := range lines {
		out[i].AccountID = l.AccountID
	}
	return distinctAccounts(out)
}

// reversedLines mirrors lines with debit and credit swapped.
func reversedLines(lines []JournalLine) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, l := range lines {
		out = append(out, LineInput{
			AccountID:   l.AccountID,
			Type:        l.Type.Opposite(),
			Amount:      l.Amount,
			Description: l.Description,
		})
	}
	return out
}
