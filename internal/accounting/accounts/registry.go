package accounts

import "github.com/shopspring/decimal"

// DefaultTypes lists the five standard classifications in report order.
func DefaultTypes() []AccountType {
	return []AccountType{
		{Code: TypeAsset, Name: "Assets", Description: "Resources owned by the business", NormalBalance: NormalDebit, IsSystem: true, IsActive: true, SortOrder: 1},
		{Code: TypeLiability, Name: "Liabilities", Description: "Obligations owed to others", NormalBalance: NormalCredit, IsSystem: true, IsActive: true, SortOrder: 2},
		{Code: TypeEquity, Name: "Equity", Description: "Owner's interest in the business", NormalBalance: NormalCredit, IsSystem: true, IsActive: true, SortOrder: 3},
		{Code: TypeRevenue, Name: "Revenue", Description: "Income earned from operations", NormalBalance: NormalCredit, IsSystem: true, IsActive: true, SortOrder: 4},
		{Code: TypeExpense, Name: "Expenses", Description: "Costs incurred in operations", NormalBalance: NormalDebit, IsSystem: true, IsActive: true, SortOrder: 5},
	}
}

// Net folds debit and credit totals into a balance signed by polarity.
func (n NormalBalance) Net(debit, credit decimal.Decimal) decimal.Decimal {
	if n == NormalCredit {
		return credit.Sub(debit)
	}
	return debit.Sub(credit)
}

// Columns places a balance into the trial balance debit or credit column.
// A negative balance moves to the side opposite the normal balance.
func (n NormalBalance) Columns(balance decimal.Decimal) (debit, credit decimal.Decimal) {
	zero := decimal.Zero
	switch {
	case balance.IsZero():
		return zero, zero
	case n == NormalCredit && balance.IsPositive():
		return zero, balance
	case n == NormalCredit:
		return balance.Neg(), zero
	case balance.IsPositive():
		return balance, zero
	default:
		return zero, balance.Neg()
	}
}

// Signed converts a line into its effect on an account of polarity n.
func (n NormalBalance) Signed(lineType string, amount decimal.Decimal) decimal.Decimal {
	if (lineType == string(NormalDebit)) == (n == NormalDebit) {
		return amount
	}
	return amount.Neg()
}
