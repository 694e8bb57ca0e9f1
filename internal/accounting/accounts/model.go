package accounts

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// NormalBalance is the side on which an account type increases.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "DEBIT"
	NormalCredit NormalBalance = "CREDIT"
)

// Valid reports whether n is DEBIT or CREDIT.
func (n NormalBalance) Valid() bool {
	return n == NormalDebit || n == NormalCredit
}

// Account type codes seeded by default.
const (
	TypeAsset     = "ASSET"
	TypeLiability = "LIABILITY"
	TypeEquity    = "EQUITY"
	TypeRevenue   = "REVENUE"
	TypeExpense   = "EXPENSE"
)

// AccountType classifies accounts and fixes their sign convention.
type AccountType struct {
	ID            int64         `json:"id"`
	Code          string        `json:"code"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	NormalBalance NormalBalance `json:"normal_balance"`
	IsSystem      bool          `json:"is_system"`
	IsActive      bool          `json:"is_active"`
	SortOrder     int           `json:"sort_order"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Account models a chart of accounts node.
type Account struct {
	ID                 int64           `json:"id"`
	AccountTypeID      int64           `json:"account_type_id"`
	Type               AccountType     `json:"account_type"`
	ParentID           *int64          `json:"parent_id,omitempty"`
	Code               string          `json:"code"`
	Name               string          `json:"name"`
	Description        string          `json:"description,omitempty"`
	OpeningBalance     decimal.Decimal `json:"opening_balance"`
	OpeningBalanceDate *time.Time      `json:"opening_balance_date,omitempty"`
	IsActive           bool            `json:"is_active"`
	IsSystem           bool            `json:"is_system"`
	SortOrder          int             `json:"sort_order"`
	DeletedAt          *time.Time      `json:"-"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// NormalBalance returns the polarity inherited from the account type.
func (a Account) NormalBalance() NormalBalance {
	return a.Type.NormalBalance
}

// Usable reports whether journal lines may reference the account.
func (a Account) Usable() bool {
	return a.IsActive && a.DeletedAt == nil
}

// OpeningApplies reports whether the opening balance counts at asOf.
func (a Account) OpeningApplies(asOf time.Time) bool {
	return a.OpeningBalanceDate != nil && !a.OpeningBalanceDate.After(asOf)
}

// ListFilter narrows account listings.
type ListFilter struct {
	ActiveOnly bool
	TypeCode   string
	ParentID   *int64
}

// AccountTypeInput carries fields for creating or updating an account type.
type AccountTypeInput struct {
	Code          string
	Name          string
	Description   string
	NormalBalance NormalBalance
	IsActive      bool
	SortOrder     int
}

// Validate ensures the account type input is well formed.
func (in AccountTypeInput) Validate() error {
	if strings.TrimSpace(in.Code) == "" {
		return shared.Invalid("code", "is required")
	}
	if len(in.Code) > 20 {
		return shared.Invalid("code", "must be at most 20 characters")
	}
	if strings.TrimSpace(in.Name) == "" {
		return shared.Invalid("name", "is required")
	}
	if !in.NormalBalance.Valid() {
		return shared.Invalid("normal_balance", "must be DEBIT or CREDIT")
	}
	return nil
}

// AccountInput carries fields for creating or updating an account.
type AccountInput struct {
	AccountTypeID      int64
	ParentID           *int64
	Code               string
	Name               string
	Description        string
	OpeningBalance     decimal.Decimal
	OpeningBalanceDate *time.Time
	IsActive           bool
	IsSystem           bool
	SortOrder          int
}

// Validate ensures the account input is well formed.
func (in AccountInput) Validate() error {
	if in.AccountTypeID == 0 {
		return shared.Invalid("account_type_id", "is required")
	}
	if strings.TrimSpace(in.Code) == "" {
		return shared.Invalid("code", "is required")
	}
	if len(in.Code) > 20 {
		return shared.Invalid("code", "must be at most 20 characters")
	}
	if strings.TrimSpace(in.Name) == "" {
		return shared.Invalid("name", "is required")
	}
	if !in.OpeningBalance.Equal(in.OpeningBalance.Round(2)) {
		return shared.Invalid("opening_balance", "must have at most 2 decimal places")
	}
	if !in.OpeningBalance.IsZero() && in.OpeningBalanceDate == nil {
		return shared.Invalid("opening_balance_date", "is required with an opening balance")
	}
	return nil
}
