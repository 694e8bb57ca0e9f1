package reports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// ChartRow is an account of the chart with its current balance.
type ChartRow struct {
	ID             int64           `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	AccountType    string          `json:"account_type"`
	ParentCode     string          `json:"parent_code,omitempty"`
	IsActive       bool            `json:"is_active"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
}

// GenerateChartOfAccounts lists the chart in type and code order with
// balances as of today.
func (s *Service) GenerateChartOfAccounts(ctx context.Context, includeInactive bool) ([]ChartRow, error) {
	list, err := s.chart.List(ctx, accounts.ListFilter{ActiveOnly: !includeInactive})
	if err != nil {
		return nil, err
	}
	all := list
	if !includeInactive {
		if all, err = s.chart.List(ctx, accounts.ListFilter{}); err != nil {
			return nil, err
		}
	}
	codes := make(map[int64]string, len(all))
	for _, a := range all {
		codes[a.ID] = a.Code
	}
	bal, err := s.ledger.GetAccountBalances(ctx, list, s.today())
	if err != nil {
		return nil, err
	}
	rows := make([]ChartRow, 0, len(list))
	for _, a := range list {
		row := ChartRow{
			ID:             a.ID,
			Code:           a.Code,
			Name:           a.Name,
			AccountType:    a.Type.Name,
			IsActive:       a.IsActive,
			CurrentBalance: bal[a.ID],
		}
		if a.ParentID != nil {
			row.ParentCode = codes[*a.ParentID]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
