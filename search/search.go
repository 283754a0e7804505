package search

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/confscout/corpus"
	"github.com/mohammad-safakhou/confscout/embedding"
	"github.com/mohammad-safakhou/confscout/models"
)

const (
	// DefaultLimit is used when the request omits limit.
	DefaultLimit = 10
	// MinLimit and MaxLimit clamp the requested result count.
	MinLimit = 5
	MaxLimit = 50
	// DefaultThreshold is the distance cutoff used when the request omits one.
	DefaultThreshold = 0.4
)

// Request is one search invocation after JSON binding. Limit and Threshold
// are pointers so "absent" and "zero" stay distinguishable.
type Request struct {
	Query     string
	Filter    models.SearchFilter
	Limit     *int
	Threshold *float64
}

// Service plans and executes corpus searches: it normalizes the request,
// compiles the metadata predicate, embeds the query, and runs the
// nearest-neighbor scan.
type Service struct {
	index    *corpus.Index
	embedder embedding.Embedder
	logger   *log.Logger
}

// NewService wires the planner to an index and a query embedder.
func NewService(index *corpus.Index, embedder embedding.Embedder) *Service {
	return &Service{
		index:    index,
		embedder: embedder,
		logger:   log.New(log.Writer(), "[SEARCH] ", log.LstdFlags),
	}
}

// plan is the canonical retrieval request after validation.
type plan struct {
	query     string
	predicate corpus.Predicate
	limit     int
	threshold float64
}

// compile validates the request and builds the plan. All validation happens
// here, before any network or vector work.
func (s *Service) compile(req Request) (plan, error) {
	p := plan{query: strings.TrimSpace(req.Query), limit: DefaultLimit, threshold: DefaultThreshold}

	if req.Limit != nil {
		p.limit = *req.Limit
		if p.limit < MinLimit {
			p.limit = MinLimit
		}
		if p.limit > MaxLimit {
			p.limit = MaxLimit
		}
	}
	if req.Threshold != nil {
		if *req.Threshold < 0 || *req.Threshold > 1 {
			return plan{}, invalidFilter("threshold", fmt.Sprintf("must be within [0,1], got %v", *req.Threshold))
		}
		p.threshold = *req.Threshold
	}

	ampm := strings.ToUpper(strings.TrimSpace(req.Filter.AMPM))
	if ampm != "" && ampm != "AM" && ampm != "PM" {
		return plan{}, invalidFilter("ampm", fmt.Sprintf("must be AM or PM, got %q", req.Filter.AMPM))
	}

	p.predicate = compilePredicate(req.Filter, ampm)
	return p, nil
}

// Run executes one search. An empty (or "*") query skips embedding entirely
// and returns the pure-filter listing in corpus insertion order with zero
// distances; this mirrors the documented empty-query policy.
func (s *Service) Run(ctx context.Context, req Request) ([]models.SearchResult, error) {
	p, err := s.compile(req)
	if err != nil {
		return nil, err
	}

	if p.query == "" || p.query == "*" {
		return s.index.List(p.predicate, p.limit)
	}

	vector, err := s.embedder.EmbedQuery(ctx, p.query)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	results, err := s.index.Search(vector, p.predicate, p.threshold, p.limit)
	if err != nil {
		return nil, err
	}
	s.logger.Printf("query %q -> %d results (limit %d, threshold %.2f)", p.query, len(results), p.limit, p.threshold)
	return results, nil
}

// compilePredicate folds the filter into a single hard predicate: OR within
// a field (case-insensitive membership against the item's delimited
// sub-values), AND across fields. Day and AM/PM combine into one composite
// equality key.
func compilePredicate(f models.SearchFilter, ampm string) corpus.Predicate {
	type fieldMatch struct {
		values []string
		get    func(*models.CorpusItem) string
	}
	var fields []fieldMatch

	add := func(fv models.FilterValue, get func(*models.CorpusItem) string) {
		if !fv.IsSet() {
			return
		}
		lowered := make([]string, len(fv.Values))
		for i, v := range fv.Values {
			lowered[i] = strings.ToLower(strings.TrimSpace(v))
		}
		fields = append(fields, fieldMatch{values: lowered, get: get})
	}

	add(f.Affiliation, func(it *models.CorpusItem) string { return it.Affiliation })
	add(f.Author, func(it *models.CorpusItem) string { return it.Authors })
	add(f.Session, func(it *models.CorpusItem) string { return it.Session })

	days := f.Day
	if len(fields) == 0 && !days.IsSet() && ampm == "" {
		return nil // no constraint
	}

	var dayValues []string
	if days.IsSet() {
		dayValues = make([]string, len(days.Values))
		for i, v := range days.Values {
			dayValues[i] = strings.ToLower(strings.TrimSpace(v))
		}
	}

	return func(it *models.CorpusItem) bool {
		for _, fm := range fields {
			if !matchesAny(fm.get(it), fm.values) {
				return false
			}
		}
		if dayValues != nil && !containsFold(dayValues, it.Day) {
			return false
		}
		if ampm != "" && !strings.EqualFold(it.AMPM, ampm) {
			return false
		}
		return true
	}
}

// matchesAny reports whether any wanted value appears among the field's
// delimited sub-values (case-insensitive).
func matchesAny(field string, wanted []string) bool {
	for _, sub := range models.SubValues(field) {
		lowered := strings.ToLower(sub)
		for _, w := range wanted {
			if lowered == w {
				return true
			}
		}
	}
	return false
}

func containsFold(set []string, v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
