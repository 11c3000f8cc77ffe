// Package services holds the use cases behind the HTTP API: recording
// transactions from a form, a spoken sentence or a CSV file, and reading
// them back.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"kharcha/internal/cache"
	"kharcha/internal/core"
	"kharcha/internal/csvimport"
	"kharcha/internal/ledger"
	applog "kharcha/internal/log"
	"kharcha/internal/metrics"
	"kharcha/internal/parser"
)

var ErrEmptyText = errors.New("text is empty")

const summaryKey = "summary"

// Publisher announces stored transactions, typically over AMQP.
type Publisher interface {
	PublishTransactionRecorded(ctx context.Context, id int64) error
}

// ManualInput is a transaction entered through the form. An empty or
// Uncategorized category is derived from the description and a zero date
// means today.
type ManualInput struct {
	Date        core.Date
	Description string
	Category    string
	Amount      core.Money
	Type        core.TransactionType
}

type ImportResult struct {
	Imported []core.Transaction
	Errors   []csvimport.RowError
}

// TransactionService orchestrates the store, the parser and event publishing.
type TransactionService struct {
	store     ledger.Store
	parser    *parser.Parser
	importer  *csvimport.Importer
	publisher Publisher
	summaries cache.Cache[core.Summary]
	logger    *applog.Logger
	events    *applog.StructuredLogger
	metrics   *metrics.Metrics
	now       func() time.Time

	// gen counts invalidations; a summary loaded across one is not cached.
	mu  sync.Mutex
	gen uint64
}

type Option func(*TransactionService)

// WithPublisher enables TransactionRecorded events after each append.
func WithPublisher(p Publisher) Option {
	return func(s *TransactionService) { s.publisher = p }
}

func WithParser(p *parser.Parser) Option {
	return func(s *TransactionService) { s.parser = p }
}

func WithImporter(im *csvimport.Importer) Option {
	return func(s *TransactionService) { s.importer = im }
}

// WithSummaryCache caches Dashboard results until the next write.
func WithSummaryCache(c cache.Cache[core.Summary]) Option {
	return func(s *TransactionService) { s.summaries = c }
}

func WithLogger(logger *applog.Logger) Option {
	return func(s *TransactionService) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *TransactionService) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *TransactionService) { s.now = now }
}

func NewTransactionService(store ledger.Store, opts ...Option) *TransactionService {
	s := &TransactionService{
		store:  store,
		logger: applog.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parser == nil {
		s.parser = parser.New(nil, parser.WithClock(s.now))
	}
	if s.importer == nil {
		s.importer = csvimport.New(s.parser.Table(), csvimport.WithClock(s.now), csvimport.WithLogger(s.logger.Logger.With(applog.FieldComponent, applog.ComponentImport)))
	}
	s.logger = s.logger.WithComponent(applog.ComponentTransaction)
	s.events = applog.NewStructuredLogger(s.logger)
	return s
}

// AddManual stores a form entry.
func (s *TransactionService) AddManual(ctx context.Context, in ManualInput) (core.Transaction, error) {
	t := core.Transaction{
		Date:        in.Date,
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Amount:      in.Amount,
		Type:        in.Type,
	}
	if t.Date.IsZero() {
		t.Date = core.DateOf(s.now())
	}
	if t.Category == "" || t.Category == core.Uncategorized {
		t.Category = s.parser.Table().Categorize(t.Description)
	}
	if err := s.checkCategory(t.Category); err != nil {
		return core.Transaction{}, err
	}
	return s.record(ctx, t, applog.SourceManual)
}

// ParseVoice turns a spoken sentence into a draft without storing it.
func (s *TransactionService) ParseVoice(text string) (parser.Draft, error) {
	if strings.TrimSpace(text) == "" {
		return parser.Draft{}, ErrEmptyText
	}
	d := s.parser.ParseTransaction(text)
	s.metrics.DraftParsed(d.Amount.Valid, d.DateResolved)
	return d, nil
}

// SaveDraft stores a (possibly user-corrected) draft. The amount must be
// known.
func (s *TransactionService) SaveDraft(ctx context.Context, d parser.Draft) (core.Transaction, error) {
	t, err := d.Transaction()
	if err != nil {
		return core.Transaction{}, err
	}
	if t.Category != "" {
		if err := s.checkCategory(t.Category); err != nil {
			return core.Transaction{}, err
		}
	}
	return s.record(ctx, t, applog.SourceVoice)
}

// ImportCSV parses r and stores every valid row. Rows the importer rejects
// are returned in ImportResult.Errors; a store failure aborts the import.
func (s *TransactionService) ImportCSV(ctx context.Context, r io.Reader) (ImportResult, error) {
	parsed, err := s.importer.Parse(r)
	if err != nil {
		return ImportResult{}, err
	}

	res := ImportResult{Errors: parsed.Errors}
	for _, t := range parsed.Transactions {
		saved, err := s.record(ctx, t, applog.SourceCSV)
		if err != nil {
			return res, fmt.Errorf("import row %d of %d: %w", len(res.Imported)+1, len(parsed.Transactions), err)
		}
		res.Imported = append(res.Imported, saved)
	}

	s.logger.InfoContext(ctx, "CSV imported",
		applog.FieldOperation, applog.OpImport,
		applog.FieldRows, len(res.Imported),
		"rejected", len(res.Errors))
	return res, nil
}

// List returns every transaction, newest first.
func (s *TransactionService) List(ctx context.Context) ([]core.Transaction, error) {
	return s.store.List(ctx)
}

// Dashboard returns the aggregate totals.
func (s *TransactionService) Dashboard(ctx context.Context) (core.Summary, error) {
	if s.summaries == nil {
		return s.loadSummary(ctx)
	}
	if sum, ok := s.summaries.Get(summaryKey); ok {
		return sum, nil
	}

	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	sum, err := s.loadSummary(ctx)
	if err != nil {
		return core.Summary{}, err
	}

	s.mu.Lock()
	if s.gen == gen {
		s.summaries.Set(summaryKey, sum)
	}
	s.mu.Unlock()
	return sum, nil
}

func (s *TransactionService) loadSummary(ctx context.Context) (core.Summary, error) {
	sum, err := s.store.Summary(ctx)
	if err != nil {
		return core.Summary{}, fmt.Errorf("load summary: %w", err)
	}
	return sum, nil
}

// Categories lists the categories a transaction can carry.
func (s *TransactionService) Categories() []string {
	return s.parser.Table().Categories()
}

// Reset deletes every stored transaction.
func (s *TransactionService) Reset(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	s.invalidate()
	s.logger.WarnContext(ctx, "Ledger reset", applog.FieldOperation, applog.OpDelete)
	return nil
}

// checkCategory rejects labels outside the keyword table. An empty label is
// left to core.Transaction.Validate.
func (s *TransactionService) checkCategory(name string) error {
	if !s.parser.Table().IsValidCategory(name) {
		return fmt.Errorf("%w: %q", core.ErrUnknownCategory, name)
	}
	return nil
}

func (s *TransactionService) record(ctx context.Context, t core.Transaction, source string) (core.Transaction, error) {
	saved, err := s.store.Append(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.invalidate()
	s.metrics.TransactionRecorded(source, string(saved.Type))
	s.events.LogTransactionRecorded(ctx, saved.ID, saved.Date.String(), saved.Category, string(saved.Type), saved.Amount.Cents, source)

	if s.publisher != nil {
		if err := s.publisher.PublishTransactionRecorded(ctx, saved.ID); err != nil {
			// The row is stored; the sync worker's sweep picks it up later.
			fields := applog.NewFields().WithTransaction(saved.ID, saved.Date.String(), saved.Category, string(saved.Type), saved.Amount.Cents)
			s.events.LogError(ctx, "Failed to publish transaction recorded message", err, applog.ComponentAMQP, applog.OpSync, fields)
		}
	}
	return saved, nil
}

func (s *TransactionService) invalidate() {
	if s.summaries == nil {
		return
	}
	s.mu.Lock()
	s.gen++
	s.summaries.Clear()
	s.mu.Unlock()
}
