// Package http exposes the ledger core as a JSON API.
package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/openitems"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const (
	// ActorHeader carries the acting user id.
	ActorHeader = "X-Actor-ID"
	// IdempotencyHeader carries the client supplied retry key.
	IdempotencyHeader = "Idempotency-Key"

	defaultPerPage = 50
	maxPerPage     = 200
)

// Options tunes the handler.
type Options struct {
	// ReportsPerMinute limits report generation per actor. Zero means 10.
	ReportsPerMinute int
	Now              func() time.Time
}

// Handler wires ledger endpoints.
type Handler struct {
	logger    *slog.Logger
	core      *ledger.Core
	idem      shared.IdempotencyGuard
	validator *validator.Validate
	responder *httpx.Responder
	rateLimit func(http.Handler) http.Handler
	now       func() time.Time
}

// NewHandler constructs the ledger handler. idem may be nil to disable
// idempotency keys.
func NewHandler(logger *slog.Logger, core *ledger.Core, idem shared.IdempotencyGuard, opts Options) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	perMinute := opts.ReportsPerMinute
	if perMinute <= 0 {
		perMinute = 10
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	limiter := httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if actor := shared.ActorFromContext(r.Context()); actor != 0 {
				return "actor:" + strconv.FormatInt(actor, 10), nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", httpx.ErrRateLimited.Error())
		}))
	return &Handler{
		logger:    logger,
		core:      core,
		idem:      idem,
		validator: validator.New(),
		responder: httpx.NewResponder(logger, errorRules...),
		rateLimit: limiter,
		now:       now,
	}
}

// MountRoutes registers ledger routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.actor)

	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.listAccounts)
		r.Get("/{code}", h.getAccount)
		r.Get("/{code}/balance", h.getBalance)
	})
	r.Route("/journals", func(r chi.Router) {
		r.Get("/", h.listJournals)
		r.With(h.idempotent("ledger.journal.post")).Post("/", h.postJournal)
		r.Get("/{id}", h.getJournal)
		r.With(h.idempotent("ledger.journal.reverse")).Post("/{id}/reverse", h.reverseJournal)
	})
	r.Route("/open-items", func(r chi.Router) {
		r.With(h.idempotent("ledger.openitems.detail")).Post("/details", h.createDetail)
		r.With(h.idempotent("ledger.openitems.allocate")).Post("/details/{id}/allocations", h.allocate)
		r.Get("/masters", h.listMasters)
		r.Get("/masters/{id}", h.getMaster)
		r.Get("/masters/{id}/aggregation", h.verifyAggregation)
		r.With(h.idempotent("ledger.openitems.payment")).Post("/masters/{id}/payments", h.directPayment)
	})
	r.Route("/reports", func(r chi.Router) {
		r.Get("/", h.listReports)
		r.Get("/{id}", h.getReport)
		r.With(h.rateLimit).Post("/{type}", h.generateReport)
	})
}

// actor resolves the acting user from ActorHeader.
func (h *Handler) actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(ActorHeader))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Actor", "X-Actor-ID must be a positive integer")
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), id)))
	})
}

// idempotent claims IdempotencyHeader before the write and releases it when
// the write fails so the client may retry.
func (h *Handler) idempotent(module string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if key == "" || h.idem == nil {
				next.ServeHTTP(w, r)
				return
			}
			if err := h.idem.CheckAndInsert(r.Context(), key, module); err != nil {
				h.responder.Respond(w, r, err)
				return
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if ww.Status() >= http.StatusBadRequest {
				if err := h.idem.Delete(r.Context(), key); err != nil {
					h.logger.Warn("release idempotency key", slog.String("module", module), slog.Any("error", err))
				}
			}
		})
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make(map[string]string, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields[fe.Namespace()] = fe.Tag()
			}
			httpx.ValidationProblem(w, fields)
			return false
		}
		h.responder.Respond(w, r, err)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.responder.Respond(w, r, err)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, accounting.Invalid("invalid id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	t, err := parseDate(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func pageParams(r *http.Request) (page, perPage int) {
	q := r.URL.Query()
	page, _ = strconv.Atoi(q.Get("page"))
	perPage, _ = strconv.Atoi(q.Get("per_page"))
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	var (
		accs []accounting.Account
		err  error
	)
	q := r.URL.Query()
	switch {
	case q.Get("cash") == "true":
		accs, err = h.core.Accounts.ListCashAccounts(r.Context())
	case q.Get("type") != "":
		var t accounting.AccountType
		if t, err = accounting.ParseAccountType(q.Get("type")); err == nil {
			accs, err = h.core.Accounts.GetAccountsByType(r.Context(), t)
		}
	case q.Get("leaf") == "true":
		accs, err = h.core.Accounts.ListLeafAccounts(r.Context())
	default:
		accs, err = h.core.Accounts.ListAccounts(r.Context())
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items := make([]accountView, 0, len(accs))
	for _, a := range accs {
		items = append(items, newAccountView(a))
	}
	httpx.JSON(w, http.StatusOK, listResponse[accountView]{
		Items:      items,
		Pagination: shared.NewPagination(1, len(items), len(items)),
	})
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := h.core.Accounts.GetAccount(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newAccountView(acc))
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryDate(r, "as_of")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	since, err := queryDate(r, "since")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	at := h.now()
	if asOf != nil {
		at = *asOf
	}
	bal, err := h.core.GetBalance(r.Context(), chi.URLParam(r, "code"), at, since)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newBalanceView(bal))
}

func (h *Handler) listJournals(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, perPage := pageParams(r)
	paging := shared.NewPagination(page, perPage, 0)
	// one extra row tells whether another page exists
	list, err := h.core.Journals.List(r.Context(), journals.ListFilter{
		Status: accounting.JournalStatus(r.URL.Query().Get("status")),
		Period: r.URL.Query().Get("period"),
		From:   from,
		To:     to,
		Limit:  perPage + 1,
		Offset: paging.Offset(),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	total := paging.Offset() + len(list)
	if len(list) > perPage {
		list = list[:perPage]
	}
	items := make([]journalView, 0, len(list))
	for _, j := range list {
		items = append(items, newJournalView(j))
	}
	httpx.JSON(w, http.StatusOK, listResponse[journalView]{
		Items:      items,
		Pagination: shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) postJournal(w http.ResponseWriter, r *http.Request) {
	var req postJournalRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := req.input(shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	j, err := h.core.PostJournal(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newJournalView(j))
}

func (h *Handler) getJournal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	j, err := h.core.Journals.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newJournalView(j))
}

func (h *Handler) reverseJournal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req reverseJournalRequest
	if !h.decode(w, r, &req) {
		return
	}
	in := journals.ReverseInput{
		JournalID: id,
		Number:    req.Number,
		ActorID:   shared.ActorFromContext(r.Context()),
		Memo:      req.Memo,
	}
	if req.Date != "" {
		d, err := parseDate(req.Date)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		in.Date = &d
	}
	j, err := h.core.Journals.Reverse(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newJournalView(j))
}

func (h *Handler) createDetail(w http.ResponseWriter, r *http.Request) {
	var req createDetailRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := req.input(shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d, m, err := h.core.CreateDetail(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, detailResponse{Detail: newDetailView(d), Master: newMasterView(m)})
}

func (h *Handler) allocate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req amountRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := req.value()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d, m, err := h.core.Allocate(r.Context(), openitems.AllocateInput{
		DetailID: id,
		Amount:   amount,
		ActorID:  shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detailResponse{Detail: newDetailView(d), Master: newMasterView(m)})
}

func (h *Handler) directPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req directPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := req.value()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.core.RecordDirectPayment(r.Context(), openitems.DirectPaymentInput{
		MasterID:  id,
		Amount:    amount,
		Reference: req.Reference,
		ActorID:   shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newMasterView(m))
}

func (h *Handler) listMasters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := openitems.MasterFilter{
		Kind:     openitems.Kind(q.Get("kind")),
		Status:   openitems.MasterStatus(q.Get("status")),
		OpenOnly: q.Get("open") == "true",
	}
	if raw := q.Get("counterparty_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.fail(w, r, accounting.Invalid("invalid counterparty_id %q", raw))
			return
		}
		filter.CounterpartyID = id
	}
	_, perPage := pageParams(r)
	filter.Limit = perPage
	masters, err := h.core.OpenItems.ListMasters(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items := make([]masterView, 0, len(masters))
	for _, m := range masters {
		items = append(items, newMasterView(m))
	}
	httpx.JSON(w, http.StatusOK, listResponse[masterView]{
		Items:      items,
		Pagination: shared.NewPagination(1, perPage, len(items)),
	})
}

func (h *Handler) getMaster(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.core.OpenItems.GetMaster(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newMasterView(m))
}

// verifyAggregation answers 200 for consistent masters and 409 with the
// comparison otherwise.
func (h *Handler) verifyAggregation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	check, err := h.core.VerifyAggregation(r.Context(), id)
	switch {
	case errors.Is(err, openitems.ErrInconsistentAggregation):
		httpx.JSON(w, http.StatusConflict, newAggregationView(check))
	case err != nil:
		h.fail(w, r, err)
	default:
		httpx.JSON(w, http.StatusOK, newAggregationView(check))
	}
}

func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	filter := reports.ListFilter{Type: reports.ReportType(r.URL.Query().Get("type")), From: from, To: to}
	if filter.Type != "" && !filter.Type.Valid() {
		h.fail(w, r, accounting.Invalid("unknown report type %q", filter.Type))
		return
	}
	_, perPage := pageParams(r)
	filter.Limit = perPage
	recs, err := h.core.Reports.ListReports(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if recs == nil {
		recs = []reports.ReportRecord{}
	}
	httpx.JSON(w, http.StatusOK, listResponse[reports.ReportRecord]{
		Items:      recs,
		Pagination: shared.NewPagination(1, perPage, len(recs)),
	})
}

func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rec, err := h.core.Reports.GetReport(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) generateReport(w http.ResponseWriter, r *http.Request) {
	reportType := reports.ReportType(chi.URLParam(r, "type"))
	if !reportType.Valid() {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown report type")
		return
	}
	var req generateReportRequest
	if !h.decode(w, r, &req) {
		return
	}
	start := time.Now()
	id, err := h.generate(r, reportType, req)
	observeReport(string(reportType), start, err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/ledger/reports/"+strconv.FormatInt(id, 10))
	httpx.JSON(w, http.StatusCreated, createdResponse{ID: id})
}

func (h *Handler) generate(r *http.Request, reportType reports.ReportType, req generateReportRequest) (int64, error) {
	in := ledger.ReportRequest{Type: reportType, AsOf: h.now(), AccountCode: req.AccountCode}
	for _, f := range []struct {
		raw string
		dst *time.Time
	}{{req.AsOf, &in.AsOf}, {req.From, &in.From}, {req.To, &in.To}} {
		if f.raw == "" {
			continue
		}
		d, err := parseDate(f.raw)
		if err != nil {
			return 0, err
		}
		*f.dst = d
	}
	return h.core.GenerateReport(r.Context(), in, shared.ActorFromContext(r.Context()))
}
