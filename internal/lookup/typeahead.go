package lookup

import (
	"context"
	"sync/atomic"

	"doclookup/internal/metrics"
)

type Suggester interface {
	SearchSuggestions(ctx context.Context, t DocumentType, partial string) []Suggestion
}

// Typeahead serializes live-search results for one input field: only the
// response to the most recently issued request is reported as fresh.
type Typeahead struct {
	suggester Suggester
	docType   DocumentType
	latest    atomic.Uint64
}

func NewTypeahead(s Suggester, t DocumentType) *Typeahead {
	return &Typeahead{suggester: s, docType: t}
}

// Suggest returns fresh=false when another Suggest call was issued while this
// one was in flight; the caller must then discard the result.
func (t *Typeahead) Suggest(ctx context.Context, partial string) ([]Suggestion, bool) {
	seq := t.latest.Add(1)
	out := t.suggester.SearchSuggestions(ctx, t.docType, partial)
	if t.latest.Load() != seq {
		metrics.LookupRequestsTotal.WithLabelValues(t.docType.String(), "suggest", metrics.OutcomeStale).Inc()
		return nil, false
	}
	return out, true
}
