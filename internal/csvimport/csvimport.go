// Package csvimport reads bank-statement style CSV files into transactions.
//
// Column names are matched loosely: any header containing "date" is the
// date column, "desc" the description, "amount" or "value" the amount and
// "type", "income" or "expense" the type. Unknown columns are ignored.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kharcha/internal/core"
	"kharcha/internal/parser"
)

var (
	ErrMissingColumns = errors.New("CSV must include: Date, Description, Amount")
	ErrEmptyFile      = errors.New("CSV file is empty")
	ErrNoDate         = errors.New("no date on this row or any row above it")
)

var amountRe = regexp.MustCompile(`[-+]?\d*\.?\d+`)

// RowError reports a data row that could not be imported. Line is the
// 1-based line number in the file, header included.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

type Result struct {
	Transactions []core.Transaction
	Errors       []RowError
}

type columns struct {
	date, desc, amount, typ int
}

type Importer struct {
	table  *core.KeywordTable
	dates  parser.DateParser
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Importer)

// WithDateParser sets the parser used for non ISO dates. nil limits the
// importer to YYYY-MM-DD.
func WithDateParser(dp parser.DateParser) Option {
	return func(im *Importer) { im.dates = dp }
}

func WithClock(now func() time.Time) Option {
	return func(im *Importer) { im.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(im *Importer) { im.logger = logger }
}

// New creates an importer that categorises descriptions with table
// (core.DefaultKeywordTable when nil).
func New(table *core.KeywordTable, opts ...Option) *Importer {
	if table == nil {
		table = core.DefaultKeywordTable()
	}
	im := &Importer{
		table:  table,
		dates:  parser.NaturalDateParser{},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Parse reads the whole file. A malformed header returns an error; bad data
// rows are reported in Result.Errors and skipped.
func (im *Importer) Parse(r io.Reader) (Result, error) {
	var res Result

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return res, ErrEmptyFile
	}
	if err != nil {
		return res, fmt.Errorf("read header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return res, err
	}

	today := core.DateOf(im.now())
	var last core.Date
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				res.Errors = append(res.Errors, RowError{Line: pe.StartLine, Err: pe.Err})
				continue
			}
			return res, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if blank(record) {
			continue
		}

		if d, ok := im.parseDate(field(record, cols.date), today); ok {
			last = d
		}
		if last.IsZero() {
			res.Errors = append(res.Errors, RowError{Line: line, Err: ErrNoDate})
			continue
		}

		amount := ParseAmount(field(record, cols.amount))
		typ := core.ParseTransactionType(field(record, cols.typ))
		if cols.typ < 0 {
			typ = core.Income
			if amount.IsNegative() {
				typ = core.Expense
			}
		}

		desc := strings.TrimSpace(field(record, cols.desc))
		t := core.Transaction{
			Date:        last,
			Description: desc,
			Category:    im.table.Categorize(desc),
			Amount:      core.MoneyFromDecimal(amount.Abs()),
			Type:        typ,
		}
		if err := t.Validate(); err != nil {
			res.Errors = append(res.Errors, RowError{Line: line, Err: err})
			continue
		}
		res.Transactions = append(res.Transactions, t)
	}

	im.logger.Debug("CSV parsed", "rows", len(res.Transactions), "errors", len(res.Errors))
	return res, nil
}

// ParseAmount cleans a money cell such as "₹1,250.00" or "-40" and returns
// its value, or zero when no number is present.
func ParseAmount(s string) decimal.Decimal {
	s = strings.NewReplacer(",", "", "₹", "").Replace(s)
	m := amountRe.FindString(s)
	if m == "" {
		return decimal.Zero
	}
	neg := strings.HasPrefix(m, "-")
	m = strings.TrimLeft(m, "+-")
	d, err := decimal.NewFromString(m)
	if err != nil {
		return decimal.Zero
	}
	if neg {
		d = d.Neg()
	}
	return d
}

func (im *Importer) parseDate(s string, today core.Date) (core.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, false
	}
	if d, err := core.ParseDate(s); err == nil {
		return d, true
	}
	if im.dates == nil {
		return core.Date{}, false
	}
	return im.dates.ParseDate(s, today)
}

func mapColumns(header []string) (columns, error) {
	cols := columns{date: -1, desc: -1, amount: -1, typ: -1}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch {
		case strings.Contains(h, "date"):
			setOnce(&cols.date, i)
		case strings.Contains(h, "desc"):
			setOnce(&cols.desc, i)
		case strings.Contains(h, "amount"), strings.Contains(h, "value"):
			setOnce(&cols.amount, i)
		case strings.Contains(h, "type"), strings.Contains(h, "income"), strings.Contains(h, "expense"):
			setOnce(&cols.typ, i)
		}
	}
	if cols.date < 0 || cols.desc < 0 || cols.amount < 0 {
		return cols, ErrMissingColumns
	}
	return cols, nil
}

func setOnce(dst *int, i int) {
	if *dst < 0 {
		*dst = i
	}
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
