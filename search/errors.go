package search

import "fmt"

// InvalidFilterError is raised before any embedding or vector work when a
// request carries a malformed filter value (wrong type, shape, or domain).
type InvalidFilterError struct {
	Field  string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter %q: %s", e.Field, e.Reason)
}

func invalidFilter(field, reason string) error {
	return &InvalidFilterError{Field: field, Reason: reason}
}
