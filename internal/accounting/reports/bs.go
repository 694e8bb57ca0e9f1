package reports

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/fiscalyears"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// BalanceSheetAccount summarises an account for assets, liabilities, or equity.
type BalanceSheetAccount struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
}

// BalanceSheetSection contains the accounts and totals for a classification.
type BalanceSheetSection struct {
	Label    string                `json:"label"`
	Accounts []BalanceSheetAccount `json:"accounts"`
	Total    decimal.Decimal       `json:"total"`
}

// BalanceSheet is the statement of financial position at a date. Balances
// keep their sign so contra accounts reduce their section.
type BalanceSheet struct {
	Date                      time.Time                  `json:"date"`
	FinancialYear             *fiscalyears.FinancialYear `json:"financial_year,omitempty"`
	Assets                    BalanceSheetSection        `json:"assets"`
	Liabilities               BalanceSheetSection        `json:"liabilities"`
	Equity                    BalanceSheetSection        `json:"equity"`
	RetainedEarnings          decimal.Decimal            `json:"retained_earnings"`
	TotalEquity               decimal.Decimal            `json:"total_equity"`
	TotalLiabilitiesAndEquity decimal.Decimal            `json:"total_liabilities_and_equity"`
	IsBalanced                bool                       `json:"is_balanced"`
}

// BuildSection lists the accounts that carry a balance or an opening
// balance, ordered by code.
func BuildSection(label string, rows []AccountBalance) BalanceSheetSection {
	section := BalanceSheetSection{Label: label, Accounts: []BalanceSheetAccount{}}
	for _, r := range rows {
		if r.Balance.IsZero() && r.Account.OpeningBalance.IsZero() {
			continue
		}
		section.Accounts = append(section.Accounts, BalanceSheetAccount{
			AccountID: r.Account.ID,
			Code:      r.Account.Code,
			Name:      r.Account.Name,
			Balance:   r.Balance,
		})
		section.Total = section.Total.Add(r.Balance)
	}
	sort.Slice(section.Accounts, func(i, j int) bool { return section.Accounts[i].Code < section.Accounts[j].Code })
	return section
}

// BuildBalanceSheet totals the sections and checks the accounting equation.
func BuildBalanceSheet(date time.Time, assets, liabilities, equity BalanceSheetSection, retained decimal.Decimal) BalanceSheet {
	totalEquity := equity.Total.Add(retained)
	bs := BalanceSheet{
		Date:                      date,
		Assets:                    assets,
		Liabilities:               liabilities,
		Equity:                    equity,
		RetainedEarnings:          retained,
		TotalEquity:               totalEquity,
		TotalLiabilitiesAndEquity: liabilities.Total.Add(totalEquity),
	}
	bs.IsBalanced = shared.BelowCent(bs.Assets.Total, bs.TotalLiabilitiesAndEquity)
	return bs
}

// GenerateBalanceSheet builds the balance sheet at date. Retained earnings
// are the net income since the start of the financial year containing date,
// or since January 1st when no year applies.
func (s *Service) GenerateBalanceSheet(ctx context.Context, date time.Time) (BalanceSheet, error) {
	if date.IsZero() {
		date = s.today()
	}
	date = shared.DateOnly(date)
	return cached(ctx, s, keyDate("bs", date), func(ctx context.Context) (BalanceSheet, error) {
		fy, err := s.yearFor(ctx, date)
		if err != nil {
			return BalanceSheet{}, err
		}
		var (
			assets, liabilities, equity BalanceSheetSection
			retained                    decimal.Decimal
		)
		g, ctx := errgroup.WithContext(ctx)
		section := func(label, typeCode string, dest *BalanceSheetSection) {
			g.Go(func() error {
				list, err := s.activeOfType(ctx, typeCode)
				if err != nil {
					return err
				}
				rows, err := s.balancesOf(ctx, list, date)
				if err != nil {
					return err
				}
				*dest = BuildSection(label, rows)
				return nil
			})
		}
		section("Assets", accounts.TypeAsset, &assets)
		section("Liabilities", accounts.TypeLiability, &liabilities)
		section("Equity", accounts.TypeEquity, &equity)
		g.Go(func() error {
			start := shared.StartOfYear(date)
			if fy != nil {
				start = fy.StartDate
			}
			is, err := s.incomeStatement(ctx, start, date)
			if err != nil {
				return err
			}
			retained = is.NetIncome
			return nil
		})
		if err := g.Wait(); err != nil {
			return BalanceSheet{}, err
		}
		bs := BuildBalanceSheet(date, assets, liabilities, equity, retained)
		bs.FinancialYear = fy
		return bs, nil
	})
}

// BalanceSheetForYear builds the balance sheet inside a financial year. The
// date defaults to the year end and is clamped to the year.
func (s *Service) BalanceSheetForYear(ctx context.Context, yearID int64, date *time.Time) (BalanceSheet, error) {
	fy, err := s.yearByID(ctx, yearID)
	if err != nil {
		return BalanceSheet{}, err
	}
	bs, err := s.GenerateBalanceSheet(ctx, yearDate(fy, date))
	if err != nil {
		return BalanceSheet{}, err
	}
	bs.FinancialYear = &fy
	return bs, nil
}
