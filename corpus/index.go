package corpus

import (
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/mohammad-safakhou/confscout/models"
)

// ErrIndexUnavailable is returned when the corpus index has not been loaded
// or its snapshot could not be read.
var ErrIndexUnavailable = errors.New("corpus index unavailable")

// ErrDimensionMismatch is returned when a query vector does not match the
// corpus embedding dimension.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Predicate is a hard metadata filter. Items failing it are excluded from
// ranking entirely, never down-weighted.
type Predicate func(item *models.CorpusItem) bool

// Index is an in-memory, read-only view over the corpus snapshot.
// It is immutable after Load, so the search path needs no locking.
type Index struct {
	items     []models.CorpusItem
	dimension int

	filterOnce sync.Once
	filterOpts FilterOptions
}

// Items returns the corpus in insertion order.
func (ix *Index) Items() []models.CorpusItem { return ix.items }

// Len returns the number of items.
func (ix *Index) Len() int { return len(ix.items) }

// Dimension returns the embedding dimensionality shared by all items.
func (ix *Index) Dimension() int { return ix.dimension }

// Search ranks items passing the predicate by ascending cosine distance to
// the query vector, drops anything above threshold, and caps to limit.
// Equal distances keep corpus insertion order, so identical requests against
// an unchanged index produce identical orderings.
func (ix *Index) Search(query []float32, pred Predicate, threshold float64, limit int) ([]models.SearchResult, error) {
	if ix == nil || len(ix.items) == 0 {
		return nil, ErrIndexUnavailable
	}
	if len(query) != ix.dimension {
		return nil, ErrDimensionMismatch
	}

	type scored struct {
		idx  int
		dist float64
	}
	candidates := make([]scored, 0, len(ix.items))
	for i := range ix.items {
		item := &ix.items[i]
		if pred != nil && !pred(item) {
			continue
		}
		d := cosineDistance(query, item.Embedding)
		if d > threshold {
			continue
		}
		candidates = append(candidates, scored{idx: i, dist: d})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].dist < candidates[b].dist
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := make([]models.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, models.SearchResult{Item: ix.items[c.idx], Distance: c.dist})
	}
	return results, nil
}

// List returns items passing the predicate in insertion order with distance
// zero, capped to limit. Used for pure-filter (empty query) requests.
func (ix *Index) List(pred Predicate, limit int) ([]models.SearchResult, error) {
	if ix == nil || len(ix.items) == 0 {
		return nil, ErrIndexUnavailable
	}
	results := make([]models.SearchResult, 0, limit)
	for i := range ix.items {
		item := &ix.items[i]
		if pred != nil && !pred(item) {
			continue
		}
		results = append(results, models.SearchResult{Item: ix.items[i], Distance: 0})
		if limit > 0 && len(results) == limit {
			break
		}
	}
	return results, nil
}

// cosineDistance is 1 - cosine similarity. Vectors are normalized at
// ingestion and at query time, but we divide by the norms anyway so a
// non-normalized snapshot still ranks correctly.
func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
