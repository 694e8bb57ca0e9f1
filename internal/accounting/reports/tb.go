package reports

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/fiscalyears"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// AccountBalance pairs an account with its balance at the report date.
type AccountBalance struct {
	Account accounts.Account
	Balance decimal.Decimal
}

// TrialBalanceRow represents an account inside a trial balance group.
type TrialBalanceRow struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"account_code"`
	Name      string          `json:"account_name"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

// TrialBalanceGroup aggregates the rows of one account type.
type TrialBalanceGroup struct {
	TypeCode string            `json:"type_code"`
	TypeName string            `json:"type_name"`
	Rows     []TrialBalanceRow `json:"accounts"`
	Debit    decimal.Decimal   `json:"debit"`
	Credit   decimal.Decimal   `json:"credit"`

	sortOrder int
}

// TrialBalance lists every account with a balance in its debit or credit
// column.
type TrialBalance struct {
	Date          time.Time                  `json:"date"`
	FinancialYear *fiscalyears.FinancialYear `json:"financial_year,omitempty"`
	Groups        []TrialBalanceGroup        `json:"groups"`
	TotalDebit    decimal.Decimal            `json:"total_debits"`
	TotalCredit   decimal.Decimal            `json:"total_credits"`
	IsBalanced    bool                       `json:"is_balanced"`
}

// BuildTrialBalance places balances into columns by polarity and groups them
// by account type. Zero balances are left out.
func BuildTrialBalance(date time.Time, rows []AccountBalance) TrialBalance {
	groups := make(map[int64]*TrialBalanceGroup)
	for _, r := range rows {
		debit, credit := r.Account.NormalBalance().Columns(r.Balance)
		if debit.IsZero() && credit.IsZero() {
			continue
		}
		grp, ok := groups[r.Account.AccountTypeID]
		if !ok {
			grp = &TrialBalanceGroup{
				TypeCode:  r.Account.Type.Code,
				TypeName:  r.Account.Type.Name,
				sortOrder: r.Account.Type.SortOrder,
			}
			groups[r.Account.AccountTypeID] = grp
		}
		grp.Rows = append(grp.Rows, TrialBalanceRow{
			AccountID: r.Account.ID,
			Code:      r.Account.Code,
			Name:      r.Account.Name,
			Debit:     debit,
			Credit:    credit,
		})
		grp.Debit = grp.Debit.Add(debit)
		grp.Credit = grp.Credit.Add(credit)
	}

	result := TrialBalance{Date: date, Groups: make([]TrialBalanceGroup, 0, len(groups))}
	for _, grp := range groups {
		sort.Slice(grp.Rows, func(i, j int) bool { return grp.Rows[i].Code < grp.Rows[j].Code })
		result.Groups = append(result.Groups, *grp)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
	}
	sort.Slice(result.Groups, func(i, j int) bool {
		if result.Groups[i].sortOrder != result.Groups[j].sortOrder {
			return result.Groups[i].sortOrder < result.Groups[j].sortOrder
		}
		return result.Groups[i].TypeCode < result.Groups[j].TypeCode
	})
	result.IsBalanced = shared.BelowCent(result.TotalDebit, result.TotalCredit)
	return result
}

// GenerateTrialBalance builds the trial balance of active accounts at date.
// A zero date means today.
func (s *Service) GenerateTrialBalance(ctx context.Context, date time.Time) (TrialBalance, error) {
	if date.IsZero() {
		date = s.today()
	}
	date = shared.DateOnly(date)
	return cached(ctx, s, keyDate("tb", date), func(ctx context.Context) (TrialBalance, error) {
		list, err := s.chart.List(ctx, accounts.ListFilter{ActiveOnly: true})
		if err != nil {
			return TrialBalance{}, err
		}
		rows, err := s.balancesOf(ctx, list, date)
		if err != nil {
			return TrialBalance{}, err
		}
		tb := BuildTrialBalance(date, rows)
		if tb.FinancialYear, err = s.yearFor(ctx, date); err != nil {
			return TrialBalance{}, err
		}
		return tb, nil
	})
}

// TrialBalanceForYear builds the trial balance inside a financial year. The
// date defaults to the year end and is clamped to the year.
func (s *Service) TrialBalanceForYear(ctx context.Context, yearID int64, date *time.Time) (TrialBalance, error) {
	fy, err := s.yearByID(ctx, yearID)
	if err != nil {
		return TrialBalance{}, err
	}
	tb, err := s.GenerateTrialBalance(ctx, yearDate(fy, date))
	if err != nil {
		return TrialBalance{}, err
	}
	tb.FinancialYear = &fy
	return tb, nil
}

func yearDate(fy fiscalyears.FinancialYear, date *time.Time) time.Time {
	if date == nil || date.IsZero() {
		return fy.EndDate
	}
	return fy.Clamp(shared.DateOnly(*date))
}
