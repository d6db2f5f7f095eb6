package lookup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"doclookup/internal/metrics"
	"doclookup/internal/odata"

	"go.uber.org/zap"
)

const (
	DefaultPageSize        = 100
	DefaultSuggestionLimit = 10
)

// Reader is the read side of the OData endpoint.
type Reader interface {
	Get(ctx context.Context, path string, query odata.Query) ([]odata.Record, error)
}

// Document is a fetched header with its line items. ItemsErr is set when the
// header was found but its items could not be read; Items is then empty.
type Document struct {
	Type     DocumentType
	Key      string
	Header   odata.Record
	Items    []odata.Record
	ItemsErr error
}

type Suggestion struct {
	Key string `json:"key"`
}

type Options struct {
	PageSize        int
	SuggestionLimit int
}

// Service performs document lookups. It keeps no per-call state and is safe
// for concurrent use.
type Service struct {
	reader          Reader
	defs            Definitions
	pageSize        int
	suggestionLimit int
	logger          *zap.Logger
}

func NewService(reader Reader, defs Definitions, opts Options, logger *zap.Logger) *Service {
	if defs == nil {
		defs = DefaultDefinitions()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.SuggestionLimit <= 0 || opts.SuggestionLimit > DefaultSuggestionLimit {
		opts.SuggestionLimit = DefaultSuggestionLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		reader:          reader,
		defs:            defs,
		pageSize:        opts.PageSize,
		suggestionLimit: opts.SuggestionLimit,
		logger:          logger.Named("lookup"),
	}
}

func (s *Service) Definition(t DocumentType) (Definition, error) {
	return s.defs.Get(t)
}

func (s *Service) PageSize() int {
	return s.pageSize
}

// FetchByKey reads one header by key, and its items when the type has them.
func (s *Service) FetchByKey(ctx context.Context, t DocumentType, key string) (Document, error) {
	start := time.Now()
	def, err := s.defs.Get(t)
	if err != nil {
		return Document{}, err
	}
	if key == "" {
		s.observe(t, "fetch", metrics.OutcomeValidation, 0, start)
		return Document{}, fmt.Errorf("%w: %s number is required", ErrValidation, def.Label)
	}

	records, err := s.reader.Get(ctx, def.KeyPath(key), odata.Query{})
	if err != nil {
		if errors.Is(err, odata.ErrNotFound) {
			s.observe(t, "fetch", metrics.OutcomeNotFound, 0, start)
			return Document{}, fmt.Errorf("%w: %s %s", ErrNotFound, def.Label, key)
		}
		s.observe(t, "fetch", metrics.OutcomeTransport, 0, start)
		s.logger.Warn("header fetch failed",
			zap.Stringer("doc_type", t),
			zap.String("key", key),
			zap.Error(err),
		)
		return Document{}, &TransportError{Type: t, Op: "fetch", Err: err}
	}
	if len(records) == 0 {
		s.observe(t, "fetch", metrics.OutcomeNotFound, 0, start)
		return Document{}, fmt.Errorf("%w: %s %s", ErrNotFound, def.Label, key)
	}

	doc := Document{
		Type:   t,
		Key:    key,
		Header: records[0],
	}
	if !def.HasItems() {
		s.observe(t, "fetch", metrics.OutcomeOK, 1, start)
		return doc, nil
	}

	// Items hang off the key the backend returned, which may be normalized
	// (for example zero-padded) relative to the user's input.
	parentKey := doc.Header.String(def.KeyField)
	if parentKey == "" {
		parentKey = key
	}
	items, err := s.reader.Get(ctx, def.ItemsPath(parentKey), odata.Query{})
	if err != nil {
		s.logger.Warn("line item fetch failed",
			zap.Stringer("doc_type", t),
			zap.String("key", parentKey),
			zap.Error(err),
		)
		doc.Items = []odata.Record{}
		doc.ItemsErr = &TransportError{Type: t, Op: "fetch items", Err: err}
		s.observe(t, "fetch", metrics.OutcomeItemsWarning, 1, start)
		return doc, nil
	}
	if items == nil {
		items = []odata.Record{}
	}
	doc.Items = items
	s.observe(t, "fetch", metrics.OutcomeOK, 1+len(items), start)
	return doc, nil
}

// SearchSuggestions returns up to the suggestion limit of keys containing
// partial, in backend order. It never fails: errors yield an empty result.
func (s *Service) SearchSuggestions(ctx context.Context, t DocumentType, partial string) []Suggestion {
	if partial == "" {
		return []Suggestion{}
	}
	start := time.Now()
	def, err := s.defs.Get(t)
	if err != nil {
		return []Suggestion{}
	}

	records, err := s.reader.Get(ctx, def.CollectionPath(), odata.Query{
		Filter: odata.SubstringOf(def.KeyField, partial),
		Top:    s.suggestionLimit,
		Select: []string{def.KeyField},
	})
	if err != nil {
		s.logger.Debug("suggestions unavailable",
			zap.Stringer("doc_type", t),
			zap.String("partial", partial),
			zap.Error(err),
		)
		s.observe(t, "suggest", metrics.OutcomeTransport, 0, start)
		return []Suggestion{}
	}

	out := make([]Suggestion, 0, min(len(records), s.suggestionLimit))
	for _, rec := range records {
		if len(out) == s.suggestionLimit {
			break
		}
		if key := rec.String(def.KeyField); key != "" {
			out = append(out, Suggestion{Key: key})
		}
	}
	s.observe(t, "suggest", metrics.OutcomeOK, len(out), start)
	return out
}

// SearchFiltered reads one page of documents matching every non-blank
// criterion. limit <= 0 selects the configured page size.
func (s *Service) SearchFiltered(ctx context.Context, t DocumentType, criteria Criteria, limit, offset int) ([]odata.Record, error) {
	start := time.Now()
	def, err := s.defs.Get(t)
	if err != nil {
		return nil, err
	}
	conds, err := def.Conditions(criteria)
	if err != nil {
		s.observe(t, "search", metrics.OutcomeValidation, 0, start)
		return nil, err
	}
	if limit <= 0 {
		limit = s.pageSize
	}

	records, err := s.reader.Get(ctx, def.CollectionPath(), odata.Query{
		Filter: filterExpr(conds),
		Top:    limit,
		Skip:   max(offset, 0),
	})
	if err != nil {
		s.observe(t, "search", metrics.OutcomeTransport, 0, start)
		return nil, &TransportError{Type: t, Op: "search", Err: err}
	}
	if records == nil {
		records = []odata.Record{}
	}
	s.observe(t, "search", metrics.OutcomeOK, len(records), start)
	return records, nil
}

// Refine filters an already fetched page in memory with the same semantics
// SearchFiltered asks of the backend.
func (s *Service) Refine(t DocumentType, records []odata.Record, criteria Criteria) ([]odata.Record, error) {
	def, err := s.defs.Get(t)
	if err != nil {
		return nil, err
	}
	conds, err := def.Conditions(criteria)
	if err != nil {
		return nil, err
	}

	out := make([]odata.Record, 0, len(records))
	for _, rec := range records {
		if matchAll(rec, conds) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Service) observe(t DocumentType, op, outcome string, results int, start time.Time) {
	metrics.ObserveLookup(t.String(), op, outcome, results, time.Since(start))
}
