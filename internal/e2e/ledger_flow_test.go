package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/audit"
	audithttp "github.com/odyssey-erp/odyssey-ledger/internal/audit/http"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	ledgerhttp "github.com/odyssey-erp/odyssey-ledger/internal/ledger/http"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

var closeDate = time.Date(2026, 4, 30, 17, 0, 0, 0, time.UTC)

type client struct {
	t   *testing.T
	srv *httptest.Server
}

func newClient(t *testing.T) *client {
	t.Helper()
	require.NoError(t, ledgerhttp.SetupMetrics(prometheus.NewRegistry()))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return closeDate }

	store := memstore.New()
	require.NoError(t, store.Seed(context.Background(), memstore.DefaultChart))
	trail := &shared.MemoryAuditTrail{}
	core := ledger.NewInMemory(store, ledger.Options{Logger: logger, Audit: trail, Now: clock})

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        &app.Config{AppRequestTimeout: 5 * time.Second},
		LedgerHandler: ledgerhttp.NewHandler(logger, core, shared.NewMemoryIdempotency(), ledgerhttp.Options{Now: clock}),
		AuditHandler:  audithttp.NewHandler(logger, audit.NewService(audit.NewMemoryRepository(trail)), clock),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &client{t: t, srv: srv}
}

func (c *client) do(method, path string, body any, out any) int {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, reader)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ledgerhttp.ActorHeader, "42")
	resp, err := c.srv.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type journal struct {
	ID         int64  `json:"id"`
	Number     string `json:"number"`
	Status     string `json:"status"`
	ReversalOf *int64 `json:"reversal_of"`
}

type balance struct {
	EndingBalance string `json:"ending_balance"`
}

func TestMonthEndFlow(t *testing.T) {
	c := newClient(t)

	var capital journal
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/ledger/journals", map[string]any{
		"number": "JV-0401",
		"date":   "2026-04-01",
		"entries": []map[string]any{
			{"account_code": "1002", "debit": "20000.00"},
			{"account_code": "3100", "credit": "20000.00"},
		},
	}, &capital))

	var sale journal
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/ledger/journals", map[string]any{
		"number": "JV-0415",
		"date":   "2026-04-15",
		"entries": []map[string]any{
			{"account_code": "1002", "debit": "3500.00"},
			{"account_code": "4100", "credit": "3500.00"},
		},
	}, &sale))

	var reversal journal
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/ledger/journals/"+strconv.FormatInt(sale.ID, 10)+"/reverse", map[string]any{}, &reversal))
	require.NotNil(t, reversal.ReversalOf)
	assert.Equal(t, sale.ID, *reversal.ReversalOf)
	assert.Equal(t, "JV-0415-R", reversal.Number)

	var bank balance
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/ledger/accounts/1002/balance?as_of=2026-04-30", nil, &bank))
	assert.Equal(t, "20000.00", bank.EndingBalance)

	var created struct {
		ID int64 `json:"id"`
	}
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/ledger/reports/trial_balance", map[string]any{
		"from": "2026-04-01",
		"to":   "2026-04-30",
	}, &created))

	var rec reports.ReportRecord
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/ledger/reports/"+strconv.FormatInt(created.ID, 10), nil, &rec))
	assert.Equal(t, reports.TypeTrialBalance, rec.Type)
	assert.Equal(t, int64(42), rec.GeneratedBy)

	var timeline audit.Result
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/audit?entity=journal&actor=42", nil, &timeline))
	actions := make([]string, 0, len(timeline.Rows))
	for _, row := range timeline.Rows {
		actions = append(actions, row.Action)
	}
	assert.Equal(t, []string{"journal.reverse", "journal.post", "journal.post"}, actions)
	assert.Equal(t, "JV-0415-R", timeline.Rows[0].Meta["number"])
}
