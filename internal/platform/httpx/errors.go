package httpx

import (
	"errors"
	"log/slog"
	"net/http"
)

// Generic error kinds shared by handlers.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrDuplicate     = errors.New("duplicate entry")
	ErrValidation    = errors.New("validation failed")
	ErrUnprocessable = errors.New("business rule violated")
	ErrRateLimited   = errors.New("too many requests")
)

// Rule maps every error matching Target to a problem response.
type Rule struct {
	Target error
	Status int
	Title  string
}

var defaultRules = []Rule{
	{Target: ErrNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Target: ErrDuplicate, Status: http.StatusConflict, Title: "Duplicate"},
	{Target: ErrValidation, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Target: ErrUnprocessable, Status: http.StatusUnprocessableEntity, Title: "Unprocessable Entity"},
	{Target: ErrRateLimited, Status: http.StatusTooManyRequests, Title: "Too Many Requests"},
}

// Responder renders errors as RFC7807 problems. Rules are tried in order,
// then the generic kinds; anything else is a 500 with the detail hidden.
type Responder struct {
	rules  []Rule
	logger *slog.Logger
}

// NewResponder builds a responder with domain rules ahead of the defaults.
func NewResponder(logger *slog.Logger, rules ...Rule) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	all := make([]Rule, 0, len(rules)+len(defaultRules))
	all = append(all, rules...)
	all = append(all, defaultRules...)
	return &Responder{rules: all, logger: logger}
}

// Classify returns the rule matching err and whether one matched.
func (r *Responder) Classify(err error) (Rule, bool) {
	for _, rule := range r.rules {
		if errors.Is(err, rule.Target) {
			return rule, true
		}
	}
	return Rule{Status: http.StatusInternalServerError, Title: "Internal Error"}, false
}

// Respond writes the problem for err.
func (r *Responder) Respond(w http.ResponseWriter, req *http.Request, err error) {
	rule, ok := r.Classify(err)
	if !ok {
		r.logger.Error("request failed",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Any("error", err))
		Problem(w, rule.Status, rule.Title, "")
		return
	}
	Problem(w, rule.Status, rule.Title, err.Error())
}

var fallback = NewResponder(nil)

// RespondError maps the generic error kinds to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	rule, ok := fallback.Classify(err)
	detail := ""
	if ok {
		detail = err.Error()
	}
	Problem(w, rule.Status, rule.Title, detail)
}
