package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// OpeningBalanceLabel describes the synthetic row for an opening balance
// dated inside the report range.
const OpeningBalanceLabel = "Opening balance"

// GeneralLedgerRow is one line of account activity with its running balance.
type GeneralLedgerRow struct {
	Date        time.Time          `json:"date"`
	EntryID     int64              `json:"entry_id,omitempty"`
	EntryNumber string             `json:"entry_number,omitempty"`
	Description string             `json:"description"`
	Reference   journals.Reference `json:"reference"`
	Debit       decimal.Decimal    `json:"debit"`
	Credit      decimal.Decimal    `json:"credit"`
	Balance     decimal.Decimal    `json:"balance"`
}

// GeneralLedger replays the activity of one account over a period.
type GeneralLedger struct {
	Account        LedgerAccount      `json:"account"`
	StartDate      time.Time          `json:"start_date"`
	EndDate        time.Time          `json:"end_date"`
	OpeningBalance decimal.Decimal    `json:"opening_balance"`
	Rows           []GeneralLedgerRow `json:"transactions"`
	TotalDebit     decimal.Decimal    `json:"total_debits"`
	TotalCredit    decimal.Decimal    `json:"total_credits"`
	ClosingBalance decimal.Decimal    `json:"closing_balance"`
}

// openingWithin reports whether the opening balance of acc takes effect
// inside (start, end].
func openingWithin(acc accounts.Account, start, end time.Time) bool {
	d := acc.OpeningBalanceDate
	return d != nil && !acc.OpeningBalance.IsZero() && !d.Before(start) && !d.After(end)
}

// BuildGeneralLedger replays lines in order from opening, the balance on the
// day before start. The running balance is signed by the account polarity.
func BuildGeneralLedger(acc accounts.Account, start, end time.Time, opening decimal.Decimal, lines []journals.ActivityLine) GeneralLedger {
	gl := GeneralLedger{
		Account:        ledgerAccount(acc),
		StartDate:      start,
		EndDate:        end,
		OpeningBalance: opening,
		Rows:           make([]GeneralLedgerRow, 0, len(lines)),
	}
	nb := acc.NormalBalance()
	balance := opening
	pendingOpening := openingWithin(acc, start, end)
	add := func(row GeneralLedgerRow) {
		balance = balance.Add(nb.Net(row.Debit, row.Credit))
		row.Balance = balance
		gl.TotalDebit = gl.TotalDebit.Add(row.Debit)
		gl.TotalCredit = gl.TotalCredit.Add(row.Credit)
		gl.Rows = append(gl.Rows, row)
	}
	flushOpening := func(before time.Time) {
		if !pendingOpening || acc.OpeningBalanceDate.After(before) {
			return
		}
		pendingOpening = false
		debit, credit := nb.Columns(acc.OpeningBalance)
		add(GeneralLedgerRow{Date: *acc.OpeningBalanceDate, Description: OpeningBalanceLabel, Debit: debit, Credit: credit})
	}
	for _, l := range lines {
		flushOpening(l.EntryDate)
		row := GeneralLedgerRow{
			Date:        l.EntryDate,
			EntryID:     l.EntryID,
			EntryNumber: l.EntryNumber,
			Description: lineDescription(l),
			Reference:   l.Reference,
		}
		if l.Type == journals.Debit {
			row.Debit = l.Amount
		} else {
			row.Credit = l.Amount
		}
		add(row)
	}
	flushOpening(end)
	gl.ClosingBalance = balance
	return gl
}

func lineDescription(l journals.ActivityLine) string {
	if l.Description != "" {
		return l.Description
	}
	return l.EntryDesc
}

// GenerateGeneralLedger builds the ledger of one account for [start, end].
// Missing dates default to January 1st and today.
func (s *Service) GenerateGeneralLedger(ctx context.Context, accountID int64, start, end time.Time) (GeneralLedger, error) {
	acc, err := s.chart.Get(ctx, accountID)
	if err != nil {
		return GeneralLedger{}, err
	}
	start, end, err = s.period(start, end)
	if err != nil {
		return GeneralLedger{}, err
	}
	opening, err := s.ledger.GetAccountBalance(ctx, acc.ID, start.AddDate(0, 0, -1))
	if err != nil {
		return GeneralLedger{}, err
	}
	lines, err := s.ledger.AccountActivity(ctx, acc.ID, start, end)
	if err != nil {
		return GeneralLedger{}, err
	}
	return BuildGeneralLedger(acc, start, end, opening, lines), nil
}

func (s *Service) period(start, end time.Time) (time.Time, time.Time, error) {
	if end.IsZero() {
		end = s.today()
	}
	if start.IsZero() {
		start = shared.StartOfYear(end)
	}
	start, end = shared.DateOnly(start), shared.DateOnly(end)
	return start, end, checkRange(start, end)
}
