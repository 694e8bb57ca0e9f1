package reports

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// EntryLine is a journal line as printed in the day book.
type EntryLine struct {
	AccountID   int64             `json:"account_id"`
	AccountCode string            `json:"account_code"`
	AccountName string            `json:"account_name"`
	Type        journals.LineType `json:"type"`
	Amount      decimal.Decimal   `json:"amount"`
	Description string            `json:"description,omitempty"`
}

// EntrySummary is a journal entry expanded with its lines and totals.
type EntrySummary struct {
	ID           int64              `json:"id"`
	EntryNumber  string             `json:"entry_number"`
	Date         time.Time          `json:"date"`
	Description  string             `json:"description"`
	Notes        string             `json:"notes,omitempty"`
	Reference    journals.Reference `json:"reference"`
	Status       journals.Status    `json:"status"`
	CreatedBy    *int64             `json:"created_by,omitempty"`
	PostedBy     *int64             `json:"posted_by,omitempty"`
	PostedAt     *time.Time         `json:"posted_at,omitempty"`
	Lines        []EntryLine        `json:"lines"`
	TotalDebits  decimal.Decimal    `json:"total_debits"`
	TotalCredits decimal.Decimal    `json:"total_credits"`
}

// Summarize expands an entry for reporting.
func Summarize(e journals.JournalEntry) EntrySummary {
	sum := EntrySummary{
		ID:           e.ID,
		EntryNumber:  e.EntryNumber,
		Date:         e.EntryDate,
		Description:  e.Description,
		Notes:        e.Notes,
		Reference:    e.Reference,
		Status:       e.Status,
		CreatedBy:    e.CreatedBy,
		PostedBy:     e.PostedBy,
		PostedAt:     e.PostedAt,
		Lines:        make([]EntryLine, 0, len(e.Lines)),
		TotalDebits:  e.TotalDebits(),
		TotalCredits: e.TotalCredits(),
	}
	for _, l := range e.Lines {
		sum.Lines = append(sum.Lines, EntryLine{
			AccountID:   l.AccountID,
			AccountCode: l.AccountCode,
			AccountName: l.AccountName,
			Type:        l.Type,
			Amount:      l.Amount,
			Description: l.Description,
		})
	}
	return sum
}

// DayBook lists the effective entries of a single day.
type DayBook struct {
	Date         time.Time       `json:"date"`
	Entries      []EntrySummary  `json:"transactions"`
	TotalDebits  decimal.Decimal `json:"total_debits"`
	TotalCredits decimal.Decimal `json:"total_credits"`
	IsBalanced   bool            `json:"is_balanced"`
	TotalEntries int             `json:"total_entries"`
}

// BuildDayBook orders entries by number and sums them.
func BuildDayBook(date time.Time, entries []journals.JournalEntry) DayBook {
	sort.Slice(entries, func(i, j int) bool {
		return journals.CompareEntryNumbers(entries[i].EntryNumber, entries[j].EntryNumber) < 0
	})
	book := DayBook{Date: date, Entries: make([]EntrySummary, 0, len(entries))}
	for _, e := range entries {
		sum := Summarize(e)
		book.Entries = append(book.Entries, sum)
		book.TotalDebits = book.TotalDebits.Add(sum.TotalDebits)
		book.TotalCredits = book.TotalCredits.Add(sum.TotalCredits)
	}
	book.TotalEntries = len(book.Entries)
	book.IsBalanced = shared.BelowCent(book.TotalDebits, book.TotalCredits)
	return book
}

// GenerateDayBook builds the day book of date. A zero date means today.
func (s *Service) GenerateDayBook(ctx context.Context, date time.Time) (DayBook, error) {
	if date.IsZero() {
		date = s.today()
	}
	date = shared.DateOnly(date)
	entries, err := s.ledger.EntriesOn(ctx, date)
	if err != nil {
		return DayBook{}, err
	}
	return BuildDayBook(date, entries), nil
}

// JournalReport lists entries over a period.
type JournalReport struct {
	StartDate    time.Time       `json:"start_date"`
	EndDate      time.Time       `json:"end_date"`
	Status       journals.Status `json:"status,omitempty"`
	Entries      []EntrySummary  `json:"entries"`
	TotalDebits  decimal.Decimal `json:"total_debits"`
	TotalCredits decimal.Decimal `json:"total_credits"`
}

// GenerateJournalReport lists entries in [start, end] ordered by date and
// number. An empty status selects every status.
func (s *Service) GenerateJournalReport(ctx context.Context, start, end time.Time, status journals.Status) (JournalReport, error) {
	start, end, err := s.period(start, end)
	if err != nil {
		return JournalReport{}, err
	}
	entries, err := s.ledger.EntriesBetween(ctx, start, end, status)
	if err != nil {
		return JournalReport{}, err
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].EntryDate.Equal(entries[j].EntryDate) {
			return entries[i].EntryDate.Before(entries[j].EntryDate)
		}
		return journals.CompareEntryNumbers(entries[i].EntryNumber, entries[j].EntryNumber) < 0
	})
	report := JournalReport{StartDate: start, EndDate: end, Status: status, Entries: make([]EntrySummary, 0, len(entries))}
	for _, e := range entries {
		sum := Summarize(e)
		report.Entries = append(report.Entries, sum)
		report.TotalDebits = report.TotalDebits.Add(sum.TotalDebits)
		report.TotalCredits = report.TotalCredits.Add(sum.TotalCredits)
	}
	return report, nil
}
