package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// ChartNode describes one account to seed. Parent refers to an earlier node.
type ChartNode struct {
	Code     string
	Name     string
	Type     accounting.AccountType
	Category accounting.AccountCategory
	Parent   string
}

// DefaultChart is a small chart of accounts used by tests and the demo mode.
var DefaultChart = []ChartNode{
	{Code: "1000", Name: "Assets", Type: accounting.AccountTypeAsset},
	{Code: "1001", Name: "Cash on Hand", Type: accounting.AccountTypeAsset, Category: accounting.CategoryCurrentAsset, Parent: "1000"},
	{Code: "1002", Name: "Bank", Type: accounting.AccountTypeAsset, Category: accounting.CategoryCurrentAsset, Parent: "1000"},
	{Code: "1100", Name: "Accounts Receivable", Type: accounting.AccountTypeAsset, Category: accounting.CategoryCurrentAsset, Parent: "1000"},
	{Code: "1500", Name: "Equipment", Type: accounting.AccountTypeAsset, Category: accounting.CategoryFixedAsset, Parent: "1000"},
	{Code: "2000", Name: "Liabilities", Type: accounting.AccountTypeLiability},
	{Code: "2100", Name: "Accounts Payable", Type: accounting.AccountTypeLiability, Category: accounting.CategoryCurrentLiability, Parent: "2000"},
	{Code: "2500", Name: "Bank Loan", Type: accounting.AccountTypeLiability, Category: accounting.CategoryLongTermLiability, Parent: "2000"},
	{Code: "3000", Name: "Equity", Type: accounting.AccountTypeEquity},
	{Code: "3100", Name: "Paid-in Capital", Type: accounting.AccountTypeEquity, Parent: "3000"},
	{Code: "4000", Name: "Revenue", Type: accounting.AccountTypeRevenue},
	{Code: "4100", Name: "Sales", Type: accounting.AccountTypeRevenue, Category: accounting.CategoryOperatingRevenue, Parent: "4000"},
	{Code: "5000", Name: "Cost of Sales", Type: accounting.AccountTypeCost},
	{Code: "5100", Name: "Cost of Goods Sold", Type: accounting.AccountTypeCost, Parent: "5000"},
	{Code: "6000", Name: "Expenses", Type: accounting.AccountTypeExpense},
	{Code: "6100", Name: "Rent", Type: accounting.AccountTypeExpense, Category: accounting.CategoryOperatingExpense, Parent: "6000"},
}

// Seed inserts nodes in order, marking every referenced parent as non-leaf.
func (s *Store) Seed(ctx context.Context, nodes []ChartNode) error {
	return s.run(ctx, func(tx *Tx) error {
		now := time.Now().UTC()
		for _, n := range nodes {
			acc := accounting.Account{
				Code:             n.Code,
				Name:             n.Name,
				Type:             n.Type,
				Category:         n.Category,
				Level:            1,
				IsLeaf:           true,
				IsActive:         true,
				AllowManualEntry: true,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if n.Parent != "" {
				parent, err := tx.GetAccountByCode(ctx, n.Parent)
				if err != nil {
					return fmt.Errorf("memstore: seed %s: %w", n.Code, err)
				}
				parent.IsLeaf = false
				if err := tx.UpdateAccount(ctx, parent); err != nil {
					return err
				}
				acc.ParentID = &parent.ID
				acc.Level = parent.Level + 1
			}
			if _, err := tx.InsertAccount(ctx, acc); err != nil {
				return fmt.Errorf("memstore: seed %s: %w", n.Code, err)
			}
		}
		return nil
	})
}
