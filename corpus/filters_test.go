package corpus

import (
	"reflect"
	"testing"
)

func TestFilterOptions(t *testing.T) {
	ix := mustIndex(t)
	opts := ix.FilterOptions()
	if !reflect.DeepEqual(opts.Affiliations, []string{"CMU", "MIT", "Stanford"}) {
		t.Fatalf("affiliations: %v", opts.Affiliations)
	}
	if !reflect.DeepEqual(opts.Authors, []string{"Alice", "Bob", "Carol", "Dave", "Erin"}) {
		t.Fatalf("authors: %v", opts.Authors)
	}
	if !reflect.DeepEqual(opts.Days, []string{"Dec 3", "Dec 4", "Dec 5"}) {
		t.Fatalf("days: %v", opts.Days)
	}
	if !reflect.DeepEqual(opts.AMPM, []string{"AM", "PM"}) {
		t.Fatalf("ampm: %v", opts.AMPM)
	}

	// Cached; repeated calls return the same values.
	if !reflect.DeepEqual(ix.FilterOptions(), opts) {
		t.Fatal("cached options differ")
	}
}

func TestFilterOptionsNilIndex(t *testing.T) {
	var ix *Index
	opts := ix.FilterOptions()
	if len(opts.Affiliations) != 0 || len(opts.Authors) != 0 {
		t.Fatalf("degraded shape should be empty: %+v", opts)
	}
	if !reflect.DeepEqual(opts.AMPM, []string{"AM", "PM"}) {
		t.Fatalf("ampm should stay fixed: %v", opts.AMPM)
	}
}
