package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"kharcha/internal/core"
	"kharcha/internal/parser"
	"kharcha/internal/services"
)

type createTransactionRequest struct {
	Date        string      `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Description string      `json:"description" validate:"required,max=200"`
	Category    string      `json:"category" validate:"omitempty,max=50"`
	Amount      json.Number `json:"amount" validate:"required"`
	Type        string      `json:"type" validate:"required,oneof=Income Expense income expense"`
}

func (req createTransactionRequest) toInput() (services.ManualInput, error) {
	in := services.ManualInput{
		Description: sanitizeInput(req.Description),
		Category:    sanitizeInput(req.Category),
		Type:        core.ParseTransactionType(req.Type),
	}
	cents, err := core.ParseDecimalToCents(req.Amount.String())
	if err != nil {
		return in, fieldErrors{"amount": "must be a non-negative decimal amount"}
	}
	in.Amount = core.Money{Cents: cents}
	if req.Date != "" {
		d, err := core.ParseDate(req.Date)
		if err != nil {
			return in, fieldErrors{"date": "must be a date in YYYY-MM-DD format"}
		}
		in.Date = d
	}
	return in, nil
}

type parseVoiceRequest struct {
	Text string `json:"text" validate:"required,max=500"`
}

// saveVoiceRequest carries either the raw sentence or a draft the user has
// reviewed and possibly corrected.
type saveVoiceRequest struct {
	Text  string        `json:"text" validate:"max=500"`
	Draft *draftPayload `json:"draft"`
}

type draftPayload struct {
	Amount   json.Number `json:"amount" validate:"required"`
	Category string      `json:"category" validate:"required,max=50"`
	Date     string      `json:"date" validate:"required,datetime=2006-01-02"`
	Type     string      `json:"type" validate:"required,oneof=Income Expense"`
	Text     string      `json:"text" validate:"required,max=200"`
}

func (p draftPayload) toDraft() (parser.Draft, error) {
	amount, err := decimal.NewFromString(p.Amount.String())
	if err != nil {
		return parser.Draft{}, fieldErrors{"amount": "must be a number"}
	}
	date, err := core.ParseDate(p.Date)
	if err != nil {
		return parser.Draft{}, fieldErrors{"date": "must be a date in YYYY-MM-DD format"}
	}
	return parser.Draft{
		Amount:       decimal.NewNullDecimal(amount),
		Category:     sanitizeInput(p.Category),
		Date:         date,
		DateResolved: true,
		Type:         core.TransactionType(p.Type),
		Text:         sanitizeInput(p.Text),
	}, nil
}

// fieldErrors maps JSON field names to what is wrong with them.
type fieldErrors map[string]string

func (f fieldErrors) Error() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, k+" "+v)
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

var errBadJSON = errors.New("malformed JSON body")

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a single JSON object from the body into dst and
// validates it.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", errBadJSON, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errBadJSON)
	}
	return s.validateStruct(dst)
}

func (s *Server) validateStruct(v any) error {
	err := s.validate.Struct(v)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fe := fieldErrors{}
		for _, e := range verrs {
			fe[e.Field()] = formatValidationError(e)
		}
		return fe
	}
	return err
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters long", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	default:
		return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
}

// sanitizeInput trims whitespace and drops control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// uploadBody returns the CSV content of an upload: the "file" part of a
// multipart form, or the raw request body otherwise.
func uploadBody(w http.ResponseWriter, r *http.Request) (io.ReadCloser, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.Body, nil
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, fieldErrors{"file": "could not read multipart form"}
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, fieldErrors{"file": "is required"}
	}
	return f, nil
}
