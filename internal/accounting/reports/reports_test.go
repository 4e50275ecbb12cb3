package reports

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

var (
	jan1  = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	jan31 = time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
)

func row(code string, t accounting.AccountType, cat accounting.AccountCategory, opening, debit, credit string) AccountBalance {
	o, d, c := accounting.MustMoney(opening), accounting.MustMoney(debit), accounting.MustMoney(credit)
	return AccountBalance{
		Code:     code,
		Name:     "Account " + code,
		Type:     t,
		Category: cat,
		Opening:  o,
		Debit:    d,
		Credit:   c,
		Ending:   accounting.ApplySign(t, o, d, c),
	}
}

func TestBuildTrialBalance(t *testing.T) {
	rows := []AccountBalance{
		row("1001", accounting.AccountTypeAsset, accounting.CategoryCurrentAsset, "1000.00", "200.00", "150.00"),
		row("1002", accounting.AccountTypeAsset, accounting.CategoryCurrentAsset, "500.00", "100.00", "50.00"),
		row("2100", accounting.AccountTypeLiability, accounting.CategoryCurrentLiability, "0.00", "10.00", "400.00"),
		row("6100", accounting.AccountTypeExpense, accounting.CategoryOperatingExpense, "0.00", "0.00", "0.00"),
		row("3100", accounting.AccountTypeEquity, "", "1500.00", "290.00", "0.00"),
	}

	tb := BuildTrialBalance(jan1, jan31, rows)
	require.Len(t, tb.Groups, 3)
	assert.Equal(t, []string{"10", "21", "31"}, []string{tb.Groups[0].Key, tb.Groups[1].Key, tb.Groups[2].Key})
	assert.Len(t, tb.Rows(), 4)

	assert.Equal(t, "600.00", accounting.FormatMoney(tb.Totals.Debit))
	assert.Equal(t, "600.00", accounting.FormatMoney(tb.Totals.Credit))
	assert.True(t, tb.IsBalanced)
	assert.Equal(t, "1500.00", accounting.FormatMoney(tb.Totals.OpeningDebit))
	assert.Equal(t, "1500.00", accounting.FormatMoney(tb.Totals.OpeningCredit))
	assert.Equal(t, "1600.00", accounting.FormatMoney(tb.Totals.EndingDebit))
	assert.Equal(t, "1600.00", accounting.FormatMoney(tb.Totals.EndingCredit))
}

func TestTrialBalanceFlipsNegativeBalances(t *testing.T) {
	rows := []AccountBalance{
		row("1001", accounting.AccountTypeAsset, accounting.CategoryCurrentAsset, "0.00", "0.00", "300.00"),
		row("6100", accounting.AccountTypeExpense, "", "0.00", "300.00", "0.00"),
	}
	tb := BuildTrialBalance(jan1, jan31, rows)
	cash := tb.Rows()[0]
	assert.True(t, cash.EndingDebit.IsZero())
	assert.Equal(t, "300.00", accounting.FormatMoney(cash.EndingCredit))
	assert.True(t, tb.IsBalanced)
}

func TestBuildIncomeStatement(t *testing.T) {
	rows := []AccountBalance{
		row("4100", accounting.AccountTypeRevenue, accounting.CategoryOperatingRevenue, "0.00", "0.00", "1200.00"),
		row("5100", accounting.AccountTypeCost, "", "0.00", "300.00", "0.00"),
		row("6100", accounting.AccountTypeExpense, "", "0.00", "200.00", "0.00"),
		row("6200", accounting.AccountTypeExpense, "", "0.00", "0.00", "0.00"),
		row("1001", accounting.AccountTypeAsset, "", "0.00", "999.00", "0.00"),
	}
	is := BuildIncomeStatement(jan1, jan31, rows)
	assert.Equal(t, "1200.00", accounting.FormatMoney(is.Revenue.Total))
	assert.Equal(t, "300.00", accounting.FormatMoney(is.Cost.Total))
	assert.Equal(t, "900.00", accounting.FormatMoney(is.GrossProfit))
	assert.Equal(t, "700.00", accounting.FormatMoney(is.NetProfit))
	assert.Len(t, is.Expenses.Lines, 1)
}

func TestBuildBalanceSheet(t *testing.T) {
	rows := []AccountBalance{
		row("1001", accounting.AccountTypeAsset, accounting.CategoryCurrentAsset, "0.00", "100.00", "20.00"),
		row("1500", accounting.AccountTypeAsset, accounting.CategoryFixedAsset, "420.00", "0.00", "0.00"),
		row("2100", accounting.AccountTypeLiability, accounting.CategoryCurrentLiability, "0.00", "10.00", "40.00"),
		row("3100", accounting.AccountTypeEquity, "", "470.00", "0.00", "0.00"),
		row("2500", accounting.AccountTypeLiability, accounting.CategoryLongTermLiability, "0.00", "0.00", "0.00"),
	}
	bs := BuildBalanceSheet(jan31, rows)
	assert.Equal(t, "80.00", accounting.FormatMoney(bs.CurrentAssets.Total))
	assert.Equal(t, "500.00", accounting.FormatMoney(bs.TotalAssets))
	assert.Equal(t, "30.00", accounting.FormatMoney(bs.TotalLiabilities))
	assert.Empty(t, bs.LongTermLiabilities.Lines)
	assert.Equal(t, "500.00", accounting.FormatMoney(bs.TotalLiabilitiesAndEquity))
	assert.True(t, bs.IsBalanced)
	assert.True(t, bs.Difference.IsZero())
}

func TestBalanceSheetReportsImbalance(t *testing.T) {
	rows := []AccountBalance{
		row("1001", accounting.AccountTypeAsset, accounting.CategoryCurrentAsset, "100.00", "0.00", "0.00"),
		row("3100", accounting.AccountTypeEquity, "", "90.00", "0.00", "0.00"),
	}
	bs := BuildBalanceSheet(jan31, rows)
	assert.False(t, bs.IsBalanced)
	assert.Equal(t, "10.00", accounting.FormatMoney(bs.Difference))
}

func TestBuildCashFlow(t *testing.T) {
	rows := []AccountBalance{
		row("1002", accounting.AccountTypeAsset, accounting.CategoryCurrentAsset, "50.00", "700.00", "200.00"),
		row("1001", accounting.AccountTypeAsset, accounting.CategoryCurrentAsset, "0.00", "10.00", "30.00"),
	}
	cf := BuildCashFlow(jan1, jan31, rows)
	assert.Equal(t, CashFlowMethod, cf.Method)
	assert.Equal(t, "1001", cf.Lines[0].Code)
	assert.Equal(t, "710.00", accounting.FormatMoney(cf.TotalInflow))
	assert.Equal(t, "230.00", accounting.FormatMoney(cf.TotalOutflow))
	assert.Equal(t, "480.00", accounting.FormatMoney(cf.NetCashFlow))
}

func TestReportRecordJSONKeepsPayloadType(t *testing.T) {
	net := accounting.MustMoney("700.00")
	rec := ReportRecord{
		ID:         4,
		Type:       TypeIncomeStatement,
		ReportDate: jan31,
		StartDate:  &jan1,
		EndDate:    &jan31,
		Payload:    &IncomeStatementPayload{From: jan1, To: jan31, NetProfit: net},
		Summary:    Summary{NetProfit: &net},
	}
	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	var back ReportRecord
	require.NoError(t, json.Unmarshal(raw, &back))
	payload, ok := back.Payload.(*IncomeStatementPayload)
	require.True(t, ok)
	assert.True(t, payload.NetProfit.Equal(net))
	assert.Equal(t, rec.ID, back.ID)
	require.NotNil(t, back.Summary.NetProfit)
	assert.True(t, back.Summary.NetProfit.Equal(net))
}

func TestDecodePayloadRejectsUnknownType(t *testing.T) {
	_, err := DecodePayload([]byte(`{"type":"aging","data":{}}`))
	assert.Error(t, err)
}
