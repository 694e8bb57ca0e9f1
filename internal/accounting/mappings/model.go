package mappings

import (
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// AccountMapping links an integration key to a ledger account.
type AccountMapping struct {
	Module    string    `json:"module"`
	Key       string    `json:"key"`
	AccountID int64     `json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeModule upper-cases a module name.
func NormalizeModule(module string) string {
	return strings.ToUpper(strings.TrimSpace(module))
}

// Validate ensures module, key and account are present.
func (m AccountMapping) Validate() error {
	if NormalizeModule(m.Module) == "" {
		return shared.Invalid("module", "is required")
	}
	if strings.TrimSpace(m.Key) == "" {
		return shared.Invalid("key", "is required")
	}
	if m.AccountID <= 0 {
		return shared.Invalid("account_id", "is required")
	}
	return nil
}
