// Package balances computes account balances from posted journal lines and
// maintains the per-account snapshot cache.
package balances

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// Snapshot caches the cumulative totals of an account through BalanceDate.
type Snapshot struct {
	AccountID   int64           `json:"account_id"`
	BalanceDate time.Time       `json:"balance_date"`
	DebitTotal  decimal.Decimal `json:"debit_total"`
	CreditTotal decimal.Decimal `json:"credit_total"`
	NetBalance  decimal.Decimal `json:"net_balance"`
	ComputedAt  time.Time       `json:"computed_at"`
}

// Totals returns the cumulative debit and credit sums of the snapshot.
func (s Snapshot) Totals() Totals {
	return Totals{Debit: s.DebitTotal, Credit: s.CreditTotal}
}

// Totals sums the debit and credit lines of an account.
type Totals struct {
	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`
}

// Add returns the element-wise sum.
func (t Totals) Add(o Totals) Totals {
	return Totals{Debit: t.Debit.Add(o.Debit), Credit: t.Credit.Add(o.Credit)}
}

// Line adds one line of the given type.
func (t Totals) Line(lineType string, amount decimal.Decimal) Totals {
	if lineType == string(accounts.NormalCredit) {
		return Totals{Debit: t.Debit, Credit: t.Credit.Add(amount)}
	}
	return Totals{Debit: t.Debit.Add(amount), Credit: t.Credit}
}

// Net folds totals into a balance signed by the account polarity.
func Net(nb accounts.NormalBalance, t Totals) decimal.Decimal {
	return nb.Net(t.Debit, t.Credit)
}

// Closing returns the balance of acc at asOf given its cumulative totals,
// including the opening balance once its date has passed.
func Closing(acc accounts.Account, t Totals, asOf time.Time) decimal.Decimal {
	bal := Net(acc.NormalBalance(), t)
	if acc.OpeningApplies(asOf) {
		bal = bal.Add(acc.OpeningBalance)
	}
	return bal
}
