package reports

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// AccountRef selects an account by id or code. The zero value selects the
// configured cash account.
type AccountRef struct {
	ID   int64
	Code string
}

// CashBookRow is one receipt or payment of the cash account.
type CashBookRow struct {
	Date              time.Time          `json:"date"`
	EntryID           int64              `json:"entry_id"`
	EntryNumber       string             `json:"entry_number"`
	Description       string             `json:"description"`
	ContraAccountCode string             `json:"contra_account_code,omitempty"`
	ContraAccountName string             `json:"contra_account_name,omitempty"`
	Reference         journals.Reference `json:"reference"`
	Amount            decimal.Decimal    `json:"amount"`
	Balance           decimal.Decimal    `json:"balance"`
}

// CashBook splits the activity of a cash account into receipts and payments.
type CashBook struct {
	CashAccount    LedgerAccount   `json:"cash_account"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Receipts       []CashBookRow   `json:"receipts"`
	Payments       []CashBookRow   `json:"payments"`
	TotalReceipts  decimal.Decimal `json:"total_receipts"`
	TotalPayments  decimal.Decimal `json:"total_payments"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
}

// GenerateCashBook builds the cash book of ref for [start, end].
func (s *Service) GenerateCashBook(ctx context.Context, start, end time.Time, ref AccountRef) (CashBook, error) {
	cash, err := s.resolve(ctx, ref)
	if err != nil {
		return CashBook{}, err
	}
	start, end, err = s.period(start, end)
	if err != nil {
		return CashBook{}, err
	}
	opening, err := s.ledger.GetAccountBalance(ctx, cash.ID, start.AddDate(0, 0, -1))
	if err != nil {
		return CashBook{}, err
	}
	lines, err := s.ledger.AccountActivity(ctx, cash.ID, start, end)
	if err != nil {
		return CashBook{}, err
	}

	book := CashBook{
		CashAccount:    ledgerAccount(cash),
		StartDate:      start,
		EndDate:        end,
		OpeningBalance: opening,
		Receipts:       []CashBookRow{},
		Payments:       []CashBookRow{},
	}
	nb := cash.NormalBalance()
	balance := opening
	pendingOpening := openingWithin(cash, start, end)
	contras := map[int64]accounts.Account{}
	for _, l := range lines {
		if pendingOpening && !cash.OpeningBalanceDate.After(l.EntryDate) {
			balance = balance.Add(cash.OpeningBalance)
			pendingOpening = false
		}
		row := CashBookRow{
			Date:        l.EntryDate,
			EntryID:     l.EntryID,
			EntryNumber: l.EntryNumber,
			Description: lineDescription(l),
			Reference:   l.Reference,
			Amount:      l.Amount,
		}
		if l.ContraAccountID != nil {
			contra, ok := contras[*l.ContraAccountID]
			if !ok {
				contra, err = s.chart.Get(ctx, *l.ContraAccountID)
				if err != nil && !errors.Is(err, shared.ErrNotFound) {
					return CashBook{}, err
				}
				contras[*l.ContraAccountID] = contra
			}
			row.ContraAccountCode, row.ContraAccountName = contra.Code, contra.Name
		}
		balance = balance.Add(nb.Signed(string(l.Type), l.Amount))
		row.Balance = balance
		if l.Type == journals.Debit {
			book.Receipts = append(book.Receipts, row)
			book.TotalReceipts = book.TotalReceipts.Add(l.Amount)
		} else {
			book.Payments = append(book.Payments, row)
			book.TotalPayments = book.TotalPayments.Add(l.Amount)
		}
	}
	if pendingOpening {
		balance = balance.Add(cash.OpeningBalance)
	}
	book.ClosingBalance = balance
	return book, nil
}

func (s *Service) resolve(ctx context.Context, ref AccountRef) (accounts.Account, error) {
	if ref.ID > 0 {
		return s.chart.Get(ctx, ref.ID)
	}
	code := strings.TrimSpace(ref.Code)
	if code == "" {
		code = s.cfg.CashAccountCode
	}
	acc, err := s.chart.GetByCode(ctx, code)
	if errors.Is(err, shared.ErrNotFound) {
		return accounts.Account{}, shared.Invalid("cash_account", "account %s not found", code)
	}
	return acc, err
}
