package journals

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type lineRequest struct {
	AccountID   int64           `json:"account_id" validate:"required,gt=0"`
	Type        string          `json:"type" validate:"required,oneof=DEBIT CREDIT"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"max=255"`
}

type referenceRequest struct {
	Domain string `json:"domain" validate:"max=100"`
	ID     string `json:"id" validate:"max=100"`
}

type entryRequest struct {
	EntryDate   string           `json:"entry_date" validate:"required,datetime=2006-01-02"`
	Description string           `json:"description" validate:"required,max=500"`
	Notes       string           `json:"notes"`
	Reference   referenceRequest `json:"reference"`
	AutoPost    bool             `json:"auto_post"`
	Lines       []lineRequest    `json:"lines" validate:"required,min=2,dive"`
}

func (req entryRequest) header() (EntryHeader, error) {
	date, err := parseDate("entry_date", req.EntryDate)
	if err != nil {
		return EntryHeader{}, err
	}
	return EntryHeader{
		EntryDate:   date,
		Reference:   Reference{Domain: req.Reference.Domain, ID: req.Reference.ID},
		Description: req.Description,
		Notes:       req.Notes,
	}, nil
}

func (req entryRequest) lines() []LineInput {
	out := make([]LineInput, len(req.Lines))
	for i, l := range req.Lines {
		out[i] = LineInput{AccountID: l.AccountID, Type: LineType(l.Type), Amount: l.Amount, Description: l.Description}
	}
	return out
}

type transactionRequest struct {
	DebitAccountID  int64            `json:"debit_account_id" validate:"required,gt=0"`
	CreditAccountID int64            `json:"credit_account_id" validate:"required,gt=0,nefield=DebitAccountID"`
	Amount          decimal.Decimal  `json:"amount"`
	Description     string           `json:"description" validate:"required,max=500"`
	EntryDate       string           `json:"entry_date" validate:"omitempty,datetime=2006-01-02"`
	Notes           string           `json:"notes"`
	Reference       referenceRequest `json:"reference"`
	AutoPost        *bool            `json:"auto_post"`
}

type reverseRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func parseDate(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(shared.DateLayout, raw)
	if err != nil {
		return time.Time{}, shared.Invalid(field, "must be formatted as %s", shared.DateLayout)
	}
	return t, nil
}
