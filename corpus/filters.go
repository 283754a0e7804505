package corpus

import (
	"sort"

	"github.com/mohammad-safakhou/confscout/models"
)

// FilterOptions is the discovery payload for the UI's filter dropdowns.
type FilterOptions struct {
	Affiliations []string `json:"affiliations"`
	Authors      []string `json:"authors"`
	Sessions     []string `json:"sessions"`
	Days         []string `json:"days"`
	AMPM         []string `json:"ampm"`
}

// DefaultFilterOptions is the degraded shape returned when the index is
// unavailable: empty lists, never an error.
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{
		Affiliations: []string{},
		Authors:      []string{},
		Sessions:     []string{},
		Days:         []string{},
		AMPM:         []string{"AM", "PM"},
	}
}

// FilterOptions computes unique sorted values per filterable field. The
// corpus is immutable, so the computation is cached after the first call.
func (ix *Index) FilterOptions() FilterOptions {
	if ix == nil || len(ix.items) == 0 {
		return DefaultFilterOptions()
	}
	ix.filterOnce.Do(func() {
		affiliations := map[string]struct{}{}
		authors := map[string]struct{}{}
		sessions := map[string]struct{}{}
		days := map[string]struct{}{}
		for i := range ix.items {
			it := &ix.items[i]
			collect(affiliations, it.Affiliation)
			collect(authors, it.Authors)
			collect(sessions, it.Session)
			if it.Day != "" {
				days[it.Day] = struct{}{}
			}
		}
		ix.filterOpts = FilterOptions{
			Affiliations: sortedKeys(affiliations),
			Authors:      sortedKeys(authors),
			Sessions:     sortedKeys(sessions),
			Days:         sortedKeys(days),
			AMPM:         []string{"AM", "PM"},
		}
	})
	return ix.filterOpts
}

func collect(set map[string]struct{}, field string) {
	for _, v := range models.SubValues(field) {
		set[v] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
