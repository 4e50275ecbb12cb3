package accounts

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// CreateAccountInput describes a new chart of accounts node.
type CreateAccountInput struct {
	Code                string
	Name                string
	Type                accounting.AccountType
	Category            accounting.AccountCategory
	ParentCode          string
	DisallowManualEntry bool
	OpeningBalance      decimal.Decimal
	Description         string
}

// Validate ensures the input meets minimum criteria.
func (in CreateAccountInput) Validate() error {
	if strings.TrimSpace(in.Code) == "" {
		return accounting.Invalid("accounts: code required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return accounting.Invalid("accounts: name required")
	}
	if !in.Type.Valid() {
		return accounting.Invalid("accounts: invalid account type")
	}
	return nil
}

// UpdateAccountInput patches mutable account attributes. Nil fields are left untouched.
type UpdateAccountInput struct {
	Code             string
	Name             *string
	Category         *accounting.AccountCategory
	IsActive         *bool
	AllowManualEntry *bool
	Description      *string
}

func (in UpdateAccountInput) apply(acc *accounting.Account) {
	if in.Name != nil {
		acc.Name = strings.TrimSpace(*in.Name)
	}
	if in.Category != nil {
		acc.Category = *in.Category
	}
	if in.IsActive != nil {
		acc.IsActive = *in.IsActive
	}
	if in.AllowManualEntry != nil {
		acc.AllowManualEntry = *in.AllowManualEntry
	}
	if in.Description != nil {
		acc.Description = *in.Description
	}
}

// DefaultCashPrefixes identifies cash on hand and bank deposit accounts.
var DefaultCashPrefixes = []string{"1001", "1002"}
