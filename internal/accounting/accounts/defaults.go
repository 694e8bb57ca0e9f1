package accounts

// ChartEntry describes one account of the default chart.
type ChartEntry struct {
	Code        string
	Name        string
	Description string
	TypeCode    string
	ParentCode  string
	SortOrder   int
}

// DefaultChart is the standard small-business chart of accounts. Parents are
// listed before their children.
var DefaultChart = []ChartEntry{
	{Code: "1000", Name: "Current Assets", Description: "Assets that can be converted to cash within one year", TypeCode: TypeAsset, SortOrder: 1},
	{Code: "2000", Name: "Fixed Assets", Description: "Long-term assets", TypeCode: TypeAsset, SortOrder: 2},
	{Code: "1100", Name: "Cash and Cash Equivalents", Description: "Cash on hand and in bank accounts", TypeCode: TypeAsset, ParentCode: "1000", SortOrder: 1},
	{Code: "1200", Name: "Accounts Receivable", Description: "Amounts owed by customers", TypeCode: TypeAsset, ParentCode: "1000", SortOrder: 2},
	{Code: "1300", Name: "Inventory", Description: "Goods held for sale", TypeCode: TypeAsset, ParentCode: "1000", SortOrder: 3},
	{Code: "2100", Name: "Property, Plant & Equipment", Description: "Tangible fixed assets", TypeCode: TypeAsset, ParentCode: "2000", SortOrder: 1},
	{Code: "2200", Name: "Accumulated Depreciation", Description: "Accumulated depreciation on fixed assets", TypeCode: TypeAsset, ParentCode: "2000", SortOrder: 2},

	{Code: "3000", Name: "Current Liabilities", Description: "Liabilities due within one year", TypeCode: TypeLiability, SortOrder: 1},
	{Code: "4000", Name: "Long-term Liabilities", Description: "Liabilities due after one year", TypeCode: TypeLiability, SortOrder: 2},
	{Code: "3100", Name: "Accounts Payable", Description: "Amounts owed to suppliers", TypeCode: TypeLiability, ParentCode: "3000", SortOrder: 1},
	{Code: "3200", Name: "Accrued Expenses", Description: "Expenses incurred but not yet paid", TypeCode: TypeLiability, ParentCode: "3000", SortOrder: 2},
	{Code: "4100", Name: "Long-term Debt", Description: "Long-term loans and borrowings", TypeCode: TypeLiability, ParentCode: "4000", SortOrder: 1},

	{Code: "5000", Name: "Owner's Equity", Description: "Owner's investment in the business", TypeCode: TypeEquity, SortOrder: 1},
	{Code: "5100", Name: "Capital", Description: "Owner's capital contribution", TypeCode: TypeEquity, ParentCode: "5000", SortOrder: 1},
	{Code: "5200", Name: "Retained Earnings", Description: "Accumulated profits retained in the business", TypeCode: TypeEquity, ParentCode: "5000", SortOrder: 2},

	{Code: "6000", Name: "Sales Revenue", Description: "Revenue from sales of goods or services", TypeCode: TypeRevenue, SortOrder: 1},
	{Code: "7000", Name: "Other Income", Description: "Other sources of income", TypeCode: TypeRevenue, SortOrder: 2},
	{Code: "6100", Name: "Product Sales", Description: "Revenue from product sales", TypeCode: TypeRevenue, ParentCode: "6000", SortOrder: 1},
	{Code: "6200", Name: "Service Revenue", Description: "Revenue from services", TypeCode: TypeRevenue, ParentCode: "6000", SortOrder: 2},

	{Code: "8000", Name: "Cost of Goods Sold", Description: "Direct costs of producing goods or services", TypeCode: TypeExpense, SortOrder: 1},
	{Code: "9000", Name: "Operating Expenses", Description: "Expenses related to business operations", TypeCode: TypeExpense, SortOrder: 2},
	{Code: "8100", Name: "Direct Materials", Description: "Cost of materials used in production", TypeCode: TypeExpense, ParentCode: "8000", SortOrder: 1},
	{Code: "8200", Name: "Direct Labor", Description: "Cost of labor directly involved in production", TypeCode: TypeExpense, ParentCode: "8000", SortOrder: 2},
	{Code: "9100", Name: "Salaries and Wages", Description: "Employee salaries and wages", TypeCode: TypeExpense, ParentCode: "9000", SortOrder: 1},
	{Code: "9200", Name: "Rent Expense", Description: "Rent for office or facilities", TypeCode: TypeExpense, ParentCode: "9000", SortOrder: 2},
	{Code: "9300", Name: "Utilities", Description: "Electricity, water, internet, etc.", TypeCode: TypeExpense, ParentCode: "9000", SortOrder: 3},
	{Code: "9400", Name: "Marketing and Advertising", Description: "Marketing and advertising expenses", TypeCode: TypeExpense, ParentCode: "9000", SortOrder: 4},
}
