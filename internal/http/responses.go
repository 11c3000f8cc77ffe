package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/csvimport"
	applog "kharcha/internal/log"
	"kharcha/internal/middleware/trace"
	"kharcha/internal/parser"
	"kharcha/internal/services"
)

type moneyResponse struct {
	Cents     int64  `json:"cents"`
	Value     string `json:"value"`
	Formatted string `json:"formatted"`
}

func newMoney(m core.Money) moneyResponse {
	return moneyResponse{
		Cents:     m.Cents,
		Value:     m.Decimal().StringFixed(2),
		Formatted: core.FormatRupees(m.Cents),
	}
}

type transactionResponse struct {
	ID          int64         `json:"id"`
	Date        string        `json:"date"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	Amount      moneyResponse `json:"amount"`
	Type        string        `json:"type"`
	CreatedAt   *time.Time    `json:"created_at,omitempty"`
}

func newTransaction(t core.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:          t.ID,
		Date:        t.Date.String(),
		Description: t.Description,
		Category:    t.Category,
		Amount:      newMoney(t.Amount),
		Type:        string(t.Type),
	}
	if !t.CreatedAt.IsZero() {
		created := t.CreatedAt
		resp.CreatedAt = &created
	}
	return resp
}

func newTransactions(txs []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, newTransaction(t))
	}
	return out
}

// draftResponse mirrors parser.Draft. Amount is null when no amount was
// recognised.
type draftResponse struct {
	Amount       *string `json:"amount"`
	Category     string  `json:"category"`
	Date         string  `json:"date"`
	DateResolved bool    `json:"date_resolved"`
	Type         string  `json:"type"`
	Text         string  `json:"text"`
}

func newDraft(d parser.Draft) draftResponse {
	resp := draftResponse{
		Category:     d.Category,
		Date:         d.Date.String(),
		DateResolved: d.DateResolved,
		Type:         string(d.Type),
		Text:         d.Text,
	}
	if d.Amount.Valid {
		amount := d.Amount.Decimal.String()
		resp.Amount = &amount
	}
	return resp
}

type categoryAmountResponse struct {
	Category string        `json:"category"`
	Amount   moneyResponse `json:"amount"`
}

type dashboardResponse struct {
	TotalIncome       moneyResponse            `json:"total_income"`
	TotalExpense      moneyResponse            `json:"total_expense"`
	NetSavings        moneyResponse            `json:"net_savings"`
	ExpenseByCategory []categoryAmountResponse `json:"expense_by_category"`
	Count             int                      `json:"count"`
}

func newDashboard(s core.Summary) dashboardResponse {
	resp := dashboardResponse{
		TotalIncome:       newMoney(s.TotalIncome),
		TotalExpense:      newMoney(s.TotalExpense),
		NetSavings:        newMoney(s.NetSavings),
		ExpenseByCategory: make([]categoryAmountResponse, 0, len(s.ExpenseByCategory)),
		Count:             s.Count,
	}
	for _, c := range s.ExpenseByCategory {
		resp.ExpenseByCategory = append(resp.ExpenseByCategory, categoryAmountResponse{Category: c.Name, Amount: newMoney(c.Amount)})
	}
	return resp
}

type rowErrorResponse struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

type importResponse struct {
	Imported     int                   `json:"imported"`
	Transactions []transactionResponse `json:"transactions"`
	Errors       []rowErrorResponse    `json:"errors"`
}

func newImport(res services.ImportResult) importResponse {
	resp := importResponse{
		Imported:     len(res.Imported),
		Transactions: newTransactions(res.Imported),
		Errors:       make([]rowErrorResponse, 0, len(res.Errors)),
	}
	for _, e := range res.Errors {
		resp.Errors = append(resp.Errors, rowErrorResponse{Line: e.Line, Error: e.Err.Error()})
	}
	return resp
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type errorResponse struct {
	Error     errorBody `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode response", applog.FieldError, err)
	}
}

// classify maps an error to its status code and stable error code.
func classify(err error) (int, string) {
	var fe fieldErrors
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &fe):
		return http.StatusBadRequest, "validation_failed"
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "body_too_large"
	case errors.Is(err, errBadJSON):
		return http.StatusBadRequest, "malformed_json"
	case errors.Is(err, services.ErrEmptyText):
		return http.StatusBadRequest, "empty_text"
	case errors.Is(err, csvimport.ErrMissingColumns), errors.Is(err, csvimport.ErrEmptyFile):
		return http.StatusBadRequest, "invalid_csv"
	case errors.Is(err, parser.ErrAmountUnknown):
		return http.StatusUnprocessableEntity, "amount_unknown"
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrUnknownCategory),
		errors.Is(err, core.ErrDescriptionLong),
		errors.Is(err, core.ErrZeroDate),
		errors.Is(err, core.ErrInvalidDay),
		errors.Is(err, core.ErrInvalidMonth):
		return http.StatusUnprocessableEntity, "invalid_transaction"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError renders err as a JSON error. Server errors are logged with
// their cause and answered with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := classify(err)
	body := errorBody{Code: code, Message: err.Error()}

	var fe fieldErrors
	if errors.As(err, &fe) {
		body.Message = "request validation failed"
		body.Fields = fe
	}

	logger := applog.NewStructuredLogger(applog.FromContext(r.Context()))
	if status >= http.StatusInternalServerError {
		body.Message = "internal server error"
		logger.LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op,
			applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()))
	} else {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Request rejected",
			applog.FieldOperation, op,
			applog.FieldStatusCode, status,
			applog.FieldError, err)
	}

	writeJSON(w, r, status, errorResponse{Error: body, RequestID: trace.RequestID(r.Context())})
}
