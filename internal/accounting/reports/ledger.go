package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
)

// AccountLedgerLine is one movement with the running balance after it.
type AccountLedgerLine struct {
	Date          time.Time       `json:"date"`
	JournalID     int64           `json:"journal_id"`
	JournalNumber string          `json:"journal_number"`
	Description   string          `json:"description"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	Balance       decimal.Decimal `json:"balance"`
}

// AccountLedgerPayload is the detailed ledger of one account.
type AccountLedgerPayload struct {
	AccountCode string                 `json:"account_code"`
	AccountName string                 `json:"account_name"`
	AccountType accounting.AccountType `json:"account_type"`
	From        time.Time              `json:"from"`
	To          time.Time              `json:"to"`
	Opening     decimal.Decimal        `json:"opening"`
	Lines       []AccountLedgerLine    `json:"lines"`
	Debit       decimal.Decimal        `json:"debit"`
	Credit      decimal.Decimal        `json:"credit"`
	Closing     decimal.Decimal        `json:"closing"`
}

// ReportType implements Payload.
func (*AccountLedgerPayload) ReportType() ReportType { return TypeAccountLedger }

// BuildAccountLedger converts a computed statement into a report payload.
func BuildAccountLedger(from, to time.Time, st balances.Statement) *AccountLedgerPayload {
	out := &AccountLedgerPayload{
		AccountCode: st.Account.Code,
		AccountName: st.Account.Name,
		AccountType: st.Account.Type,
		From:        accounting.DateOnly(from),
		To:          accounting.DateOnly(to),
		Opening:     st.Opening,
		Debit:       st.Debit,
		Credit:      st.Credit,
		Closing:     st.Closing,
	}
	for _, line := range st.Lines {
		out.Lines = append(out.Lines, AccountLedgerLine{
			Date:          line.Date,
			JournalID:     line.JournalID,
			JournalNumber: line.JournalNumber,
			Description:   line.Description,
			Debit:         line.Debit,
			Credit:        line.Credit,
			Balance:       line.Balance,
		})
	}
	return out
}
