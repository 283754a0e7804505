package corpus

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/mohammad-safakhou/confscout/models"
)

func testItems() []models.CorpusItem {
	return []models.CorpusItem{
		{ID: "a", Title: "Attention", Authors: "Alice; Bob", Affiliation: "MIT", Session: "Poster 1", Day: "Dec 3", AMPM: "AM", Embedding: []float32{1, 0}},
		{ID: "b", Title: "Diffusion", Authors: "Carol", Affiliation: "Stanford; MIT", Session: "Oral 2", Day: "Dec 3", AMPM: "PM", Embedding: []float32{0, 1}},
		{ID: "c", Title: "RLHF", Authors: "Dave", Affiliation: "CMU", Session: "Poster 1", Day: "Dec 4", AMPM: "AM", Embedding: []float32{1, 0}},
		{ID: "d", Title: "Scaling", Authors: "Erin; Alice", Affiliation: "MIT", Session: "Workshop", Day: "Dec 5", AMPM: "PM", Embedding: []float32{0.7071, 0.7071}},
	}
}

func mustIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := NewIndex(testItems())
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	return ix
}

func TestSearchRanksByDistance(t *testing.T) {
	ix := mustIndex(t)
	results, err := ix.Search([]float32{1, 0}, nil, 1, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	// Items a and c are both at distance 0; insertion order breaks the tie.
	if results[0].Item.ID != "a" || results[1].Item.ID != "c" {
		t.Fatalf("tie-break broke insertion order: %s, %s", results[0].Item.ID, results[1].Item.ID)
	}
	if results[0].Distance != 0 {
		t.Fatalf("exact match should have distance 0, got %v", results[0].Distance)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Fatalf("results not sorted ascending at %d", i)
		}
	}
}

func TestSearchDeterministic(t *testing.T) {
	ix := mustIndex(t)
	first, err := ix.Search([]float32{0.6, 0.4}, nil, 1, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := ix.Search([]float32{0.6, 0.4}, nil, 1, 10)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatal("identical queries produced different orderings")
		}
	}
}

func TestSearchThresholdCutsOff(t *testing.T) {
	ix := mustIndex(t)
	// Item b is orthogonal to the query (distance 1); a strict threshold
	// excludes it.
	results, err := ix.Search([]float32{1, 0}, nil, 0.5, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.Item.ID == "b" {
			t.Fatal("item above threshold leaked into results")
		}
		if r.Distance > 0.5 {
			t.Fatalf("distance %v above threshold", r.Distance)
		}
	}
}

func TestSearchLimit(t *testing.T) {
	ix := mustIndex(t)
	results, err := ix.Search([]float32{1, 0}, nil, 1, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("limit not applied: got %d", len(results))
	}
}

func TestSearchPredicateIsHard(t *testing.T) {
	ix := mustIndex(t)
	pred := func(it *models.CorpusItem) bool { return it.Affiliation == "MIT" }
	results, err := ix.Search([]float32{1, 0}, pred, 1, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.Item.Affiliation != "MIT" {
			t.Fatalf("predicate failed item leaked: %s", r.Item.ID)
		}
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 MIT items, got %d", len(results))
	}
}

func TestSearchDimensionMismatch(t *testing.T) {
	ix := mustIndex(t)
	if _, err := ix.Search([]float32{1, 0, 0}, nil, 1, 10); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSearchNilIndex(t *testing.T) {
	var ix *Index
	if _, err := ix.Search([]float32{1, 0}, nil, 1, 10); !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
	if _, err := ix.List(nil, 10); !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestListInsertionOrderZeroDistance(t *testing.T) {
	ix := mustIndex(t)
	results, err := ix.List(func(it *models.CorpusItem) bool { return it.AMPM == "AM" }, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(results) != 2 || results[0].Item.ID != "a" || results[1].Item.ID != "c" {
		t.Fatalf("unexpected listing: %+v", results)
	}
	for _, r := range results {
		if r.Distance != 0 {
			t.Fatalf("listing should carry zero distance, got %v", r.Distance)
		}
	}
}

func TestCosineDistanceRange(t *testing.T) {
	if d := cosineDistance([]float32{1, 0}, []float32{1, 0}); math.Abs(d) > 1e-9 {
		t.Fatalf("identical vectors: %v", d)
	}
	if d := cosineDistance([]float32{1, 0}, []float32{0, 1}); math.Abs(d-1) > 1e-9 {
		t.Fatalf("orthogonal vectors: %v", d)
	}
	if d := cosineDistance([]float32{0, 0}, []float32{1, 0}); d != 1 {
		t.Fatalf("zero vector should rank last: %v", d)
	}
}

func TestNewIndexValidation(t *testing.T) {
	items := testItems()
	items[2].ID = "a"
	if _, err := NewIndex(items); err == nil {
		t.Fatal("expected duplicate id error")
	}
	items = testItems()
	items[1].Embedding = []float32{1, 2, 3}
	if _, err := NewIndex(items); err == nil {
		t.Fatal("expected dimension error")
	}
	if _, err := NewIndex(nil); !errors.Is(err, ErrIndexUnavailable) {
		t.Fatal("expected ErrIndexUnavailable on empty snapshot")
	}
}
