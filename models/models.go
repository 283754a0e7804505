package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CorpusItem is one searchable conference item (paper, talk, workshop).
// Items are immutable after ingestion; multi-valued string fields
// (Authors, Affiliation, Session) are semicolon-delimited.
type CorpusItem struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Abstract       string    `json:"abstract"`
	Authors        string    `json:"authors"`
	Affiliation    string    `json:"affiliation"`
	Session        string    `json:"session"`
	Day            string    `json:"day"`
	AMPM           string    `json:"ampm"`
	StartTime      string    `json:"start_time"`
	PosterPosition string    `json:"poster_position,omitempty"`
	PaperURL       string    `json:"paper_url"`
	OpenReviewURL  string    `json:"openreview_url"`
	Embedding      []float32 `json:"embedding"`
}

// SubValues splits a semicolon-delimited field into trimmed parts.
func SubValues(field string) []string {
	parts := strings.Split(field, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// SearchResult pairs an item with its distance to the query.
// Smaller distance means more similar; rank is implied by slice position.
type SearchResult struct {
	Item     CorpusItem `json:"item"`
	Distance float64    `json:"distance"`
}

// FilterKind tags the normalized form of a "string or array of strings" field.
type FilterKind int

const (
	FilterNone FilterKind = iota
	FilterOne
	FilterMany
)

// FilterValue is the normalized form of a filter field. Raw JSON input is
// folded into {none, one, many} at the boundary so internal logic never sees
// the string-or-array ambiguity.
type FilterValue struct {
	Kind   FilterKind
	Values []string
}

// UnmarshalJSON accepts null, a string, or an array of strings.
// Anything else is an error, surfaced before any search work begins.
func (f *FilterValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*f = FilterValue{Kind: FilterNone}
		return nil
	case string:
		if strings.TrimSpace(v) == "" {
			*f = FilterValue{Kind: FilterNone}
			return nil
		}
		*f = FilterValue{Kind: FilterOne, Values: []string{v}}
		return nil
	case []interface{}:
		vals := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("filter array must contain only strings, got %T", item)
			}
			if strings.TrimSpace(s) != "" {
				vals = append(vals, s)
			}
		}
		switch len(vals) {
		case 0:
			*f = FilterValue{Kind: FilterNone}
		case 1:
			*f = FilterValue{Kind: FilterOne, Values: vals}
		default:
			*f = FilterValue{Kind: FilterMany, Values: vals}
		}
		return nil
	default:
		return fmt.Errorf("filter must be a string or array of strings, got %T", raw)
	}
}

// MarshalJSON renders the normalized value back to its compact JSON form.
func (f FilterValue) MarshalJSON() ([]byte, error) {
	switch f.Kind {
	case FilterNone:
		return []byte("null"), nil
	case FilterOne:
		return json.Marshal(f.Values[0])
	default:
		return json.Marshal(f.Values)
	}
}

// IsSet reports whether the field constrains anything.
func (f FilterValue) IsSet() bool { return f.Kind != FilterNone && len(f.Values) > 0 }

// SearchFilter holds the per-field constraints of one search request.
// Within a field multiple values are OR'd; distinct fields are AND'd.
type SearchFilter struct {
	Affiliation FilterValue `json:"affiliation,omitempty"`
	Author      FilterValue `json:"author,omitempty"`
	Session     FilterValue `json:"session,omitempty"`
	Day         FilterValue `json:"day,omitempty"`
	AMPM        string      `json:"ampm,omitempty"`
}

// ChatRole is the author of one transcript entry.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatTurn is one append-only transcript entry. Failed provider calls append
// an entry with IsError set so the transcript keeps an audit trail of what
// was asked even when unanswered.
type ChatTurn struct {
	ID        string    `json:"id"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	IsError   bool      `json:"is_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PaperRef identifies a paper inside a Deep Dive set.
type PaperRef struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// ProviderModel describes one model offered by a chat provider.
// Fetched on demand, never persisted.
type ProviderModel struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}
