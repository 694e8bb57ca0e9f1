package reports

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/fiscalyears"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// PeriodBalance pairs an account with its line totals over a period.
type PeriodBalance struct {
	Account accounts.Account
	Totals  balances.Totals
}

// IncomeStatementAccount represents a revenue or expense account summary.
type IncomeStatementAccount struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
}

// IncomeStatementSection groups accounts by nature.
type IncomeStatementSection struct {
	Label    string                   `json:"label"`
	Accounts []IncomeStatementAccount `json:"accounts"`
	Total    decimal.Decimal          `json:"total"`
}

// IncomeStatement contains the structured output for the report.
type IncomeStatement struct {
	StartDate     time.Time                  `json:"start_date"`
	EndDate       time.Time                  `json:"end_date"`
	FinancialYear *fiscalyears.FinancialYear `json:"financial_year,omitempty"`
	Revenue       IncomeStatementSection     `json:"revenues"`
	Expenses      IncomeStatementSection     `json:"expenses"`
	NetIncome     decimal.Decimal            `json:"net_income"`
}

// BuildIncomeStatement nets period totals by polarity into revenue and
// expense sections. Accounts with no movement are left out.
func BuildIncomeStatement(start, end time.Time, rows []PeriodBalance) IncomeStatement {
	revenue := IncomeStatementSection{Label: "Revenue", Accounts: []IncomeStatementAccount{}}
	expense := IncomeStatementSection{Label: "Expenses", Accounts: []IncomeStatementAccount{}}

	for _, r := range rows {
		amount := balances.Net(r.Account.NormalBalance(), r.Totals)
		if amount.IsZero() {
			continue
		}
		row := IncomeStatementAccount{AccountID: r.Account.ID, Code: r.Account.Code, Name: r.Account.Name, Amount: amount}
		switch r.Account.Type.Code {
		case accounts.TypeRevenue:
			revenue.Accounts = append(revenue.Accounts, row)
			revenue.Total = revenue.Total.Add(amount)
		case accounts.TypeExpense:
			expense.Accounts = append(expense.Accounts, row)
			expense.Total = expense.Total.Add(amount)
		}
	}

	sort.Slice(revenue.Accounts, func(i, j int) bool { return revenue.Accounts[i].Code < revenue.Accounts[j].Code })
	sort.Slice(expense.Accounts, func(i, j int) bool { return expense.Accounts[i].Code < expense.Accounts[j].Code })

	return IncomeStatement{
		StartDate: start,
		EndDate:   end,
		Revenue:   revenue,
		Expenses:  expense,
		NetIncome: revenue.Total.Sub(expense.Total),
	}
}

// GenerateIncomeStatement builds the income statement for [start, end].
// With both dates zero the current financial year is used when one exists;
// otherwise missing dates default to January 1st and today.
func (s *Service) GenerateIncomeStatement(ctx context.Context, start, end time.Time) (IncomeStatement, error) {
	var fy *fiscalyears.FinancialYear
	if start.IsZero() && end.IsZero() && s.years != nil {
		current, err := s.years.Current(ctx)
		if err != nil {
			return IncomeStatement{}, err
		}
		if current != nil {
			fy = current
			start, end = current.StartDate, current.EndDate
		}
	}
	if end.IsZero() {
		end = s.today()
	}
	if start.IsZero() {
		start = shared.StartOfYear(end)
	}
	start, end = shared.DateOnly(start), shared.DateOnly(end)
	if err := checkRange(start, end); err != nil {
		return IncomeStatement{}, err
	}
	return cached(ctx, s, keyDate("is", start, end), func(ctx context.Context) (IncomeStatement, error) {
		is, err := s.incomeStatement(ctx, start, end)
		if err != nil {
			return IncomeStatement{}, err
		}
		is.FinancialYear = fy
		if is.FinancialYear == nil {
			if is.FinancialYear, err = s.yearFor(ctx, start); err != nil {
				return IncomeStatement{}, err
			}
		}
		return is, nil
	})
}

// IncomeStatementForYear builds the income statement over a whole
// financial year.
func (s *Service) IncomeStatementForYear(ctx context.Context, yearID int64) (IncomeStatement, error) {
	fy, err := s.yearByID(ctx, yearID)
	if err != nil {
		return IncomeStatement{}, err
	}
	is, err := s.GenerateIncomeStatement(ctx, fy.StartDate, fy.EndDate)
	if err != nil {
		return IncomeStatement{}, err
	}
	is.FinancialYear = &fy
	return is, nil
}

func (s *Service) incomeStatement(ctx context.Context, start, end time.Time) (IncomeStatement, error) {
	var rows []PeriodBalance
	for _, typeCode := range []string{accounts.TypeRevenue, accounts.TypeExpense} {
		list, err := s.activeOfType(ctx, typeCode)
		if err != nil {
			return IncomeStatement{}, err
		}
		for _, acc := range list {
			totals, err := s.ledger.PeriodTotals(ctx, acc.ID, start, end)
			if err != nil {
				return IncomeStatement{}, err
			}
			rows = append(rows, PeriodBalance{Account: acc, Totals: totals})
		}
	}
	return BuildIncomeStatement(start, end, rows), nil
}
