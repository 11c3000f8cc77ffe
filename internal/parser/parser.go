// Package parser turns a short spoken or typed sentence such as
// "Spent 500 on groceries yesterday" into a draft transaction.
//
// Four extractors run independently over the same text: amount, category,
// date and type. None of them fails; each falls back to a neutral value
// (unknown amount, Uncategorized, today, Expense). A Parser holds only
// read-only state and is safe for concurrent use.
package parser

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kharcha/internal/core"
)

// ErrAmountUnknown is returned when a draft without an amount is converted
// into a transaction.
var ErrAmountUnknown = errors.New("amount could not be recognised")

// Draft is the result of parsing one utterance.
type Draft struct {
	Amount   decimal.NullDecimal
	Category string
	Date     core.Date
	// DateResolved is false when Date is the today fallback.
	DateResolved bool
	Type         core.TransactionType
	Text         string
}

// Transaction converts the draft into a storable transaction using the
// original text as description.
func (d Draft) Transaction() (core.Transaction, error) {
	if !d.Amount.Valid {
		return core.Transaction{}, ErrAmountUnknown
	}
	return core.Transaction{
		Date:        d.Date,
		Description: strings.TrimSpace(d.Text),
		Category:    d.Category,
		Amount:      core.MoneyFromDecimal(d.Amount.Decimal),
		Type:        d.Type,
	}, nil
}

type Parser struct {
	table *core.KeywordTable
	dates DateParser
	now   func() time.Time
}

type Option func(*Parser)

// WithDateParser replaces the general date parser used after the idioms.
// Passing nil disables general parsing.
func WithDateParser(dp DateParser) Option {
	return func(p *Parser) { p.dates = dp }
}

// WithClock sets the source of "today".
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

// New creates a Parser over the given keyword table. A nil table means
// core.DefaultKeywordTable().
func New(table *core.KeywordTable, opts ...Option) *Parser {
	if table == nil {
		table = core.DefaultKeywordTable()
	}
	p := &Parser{
		table: table,
		dates: NaturalDateParser{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Table returns the keyword table the parser categorises with.
func (p *Parser) Table() *core.KeywordTable {
	return p.table
}

// ParseTransaction parses text relative to the parser's clock.
func (p *Parser) ParseTransaction(text string) Draft {
	return p.ParseAt(text, p.now())
}

// ParseAt parses text with ref as the reference day for relative dates.
func (p *Parser) ParseAt(text string, ref time.Time) Draft {
	lower := strings.ToLower(text)
	date, resolved := ExtractDate(lower, core.DateOf(ref), p.dates)
	return Draft{
		Amount:       ExtractAmount(lower),
		Category:     p.table.Categorize(lower),
		Date:         date,
		DateResolved: resolved,
		Type:         ClassifyType(lower),
		Text:         text,
	}
}
