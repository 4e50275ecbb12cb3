package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// BalanceSheetPayload is the structured balance sheet.
type BalanceSheetPayload struct {
	AsOf                      time.Time       `json:"as_of"`
	CurrentAssets             Section         `json:"current_assets"`
	FixedAssets               Section         `json:"fixed_assets"`
	OtherAssets               Section         `json:"other_assets"`
	TotalAssets               decimal.Decimal `json:"total_assets"`
	CurrentLiabilities        Section         `json:"current_liabilities"`
	LongTermLiabilities       Section         `json:"long_term_liabilities"`
	OtherLiabilities          Section         `json:"other_liabilities"`
	TotalLiabilities          decimal.Decimal `json:"total_liabilities"`
	Equity                    Section         `json:"equity"`
	TotalEquity               decimal.Decimal `json:"total_equity"`
	TotalLiabilitiesAndEquity decimal.Decimal `json:"total_liabilities_and_equity"`
	IsBalanced                bool            `json:"is_balanced"`
	Difference                decimal.Decimal `json:"difference"`
}

// ReportType implements Payload.
func (*BalanceSheetPayload) ReportType() ReportType { return TypeBalanceSheet }

// BuildBalanceSheet partitions asset, liability and equity balances. Accounts
// with a zero ending balance are omitted.
func BuildBalanceSheet(asOf time.Time, rows []AccountBalance) *BalanceSheetPayload {
	bs := &BalanceSheetPayload{
		AsOf:                accounting.DateOnly(asOf),
		CurrentAssets:       Section{Label: "Current Assets"},
		FixedAssets:         Section{Label: "Fixed Assets"},
		OtherAssets:         Section{Label: "Other Assets"},
		CurrentLiabilities:  Section{Label: "Current Liabilities"},
		LongTermLiabilities: Section{Label: "Long-term Liabilities"},
		OtherLiabilities:    Section{Label: "Other Liabilities"},
		Equity:              Section{Label: "Equity"},
	}
	for _, row := range rows {
		if row.Ending.IsZero() {
			continue
		}
		switch row.Type {
		case accounting.AccountTypeAsset:
			switch row.Category {
			case accounting.CategoryCurrentAsset:
				bs.CurrentAssets.add(row.Code, row.Name, row.Ending)
			case accounting.CategoryFixedAsset:
				bs.FixedAssets.add(row.Code, row.Name, row.Ending)
			default:
				bs.OtherAssets.add(row.Code, row.Name, row.Ending)
			}
		case accounting.AccountTypeLiability:
			switch row.Category {
			case accounting.CategoryCurrentLiability:
				bs.CurrentLiabilities.add(row.Code, row.Name, row.Ending)
			case accounting.CategoryLongTermLiability:
				bs.LongTermLiabilities.add(row.Code, row.Name, row.Ending)
			default:
				bs.OtherLiabilities.add(row.Code, row.Name, row.Ending)
			}
		case accounting.AccountTypeEquity:
			bs.Equity.add(row.Code, row.Name, row.Ending)
		}
	}
	for _, sec := range []*Section{&bs.CurrentAssets, &bs.FixedAssets, &bs.OtherAssets,
		&bs.CurrentLiabilities, &bs.LongTermLiabilities, &bs.OtherLiabilities, &bs.Equity} {
		sortLines(sec.Lines)
	}
	bs.TotalAssets = bs.CurrentAssets.Total.Add(bs.FixedAssets.Total).Add(bs.OtherAssets.Total)
	bs.TotalLiabilities = bs.CurrentLiabilities.Total.Add(bs.LongTermLiabilities.Total).Add(bs.OtherLiabilities.Total)
	bs.TotalEquity = bs.Equity.Total
	bs.TotalLiabilitiesAndEquity = bs.TotalLiabilities.Add(bs.TotalEquity)
	bs.Difference = bs.TotalAssets.Sub(bs.TotalLiabilitiesAndEquity)
	bs.IsBalanced = accounting.WithinTolerance(bs.TotalAssets, bs.TotalLiabilitiesAndEquity)
	return bs
}

func sortByCode[T any](items []T, code func(T) string) {
	sort.Slice(items, func(i, j int) bool { return code(items[i]) < code(items[j]) })
}
