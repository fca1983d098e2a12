// Package filter implements the list-view filter engine.
//
// Every filter is a pure, stable function: it returns the ordered subsequence
// of the input whose elements satisfy ALL active predicates. Nothing is
// re-sorted, nothing errors, and no match yields an empty (non-nil) slice.
//
// PREDICATES:
//   - region / language / topic / category: exact, case-sensitive equality,
//     inactive when the criterion is empty or the sentinel "All". A
//     category criterion also matches an element's Sector.
//   - query: case-insensitive substring over title and description
//   - duration: podcast length bucket (short / medium / long)
//
// A predicate that is active but targets a field the element does not carry
// (a duration criterion over a news story, say) rejects the element.
package filter

import "strings"

// All is the sentinel criterion value meaning "do not filter on this field".
const All = "All"

// Criteria is the tuple of filter settings selected in a list view.
// Zero value matches everything.
type Criteria struct {
	Region   string
	Language string
	Topic    string
	Category string
	Query    string
	Duration Bucket
}

// Fields is the filterable projection of one element.
// An empty string means the element does not carry that field.
type Fields struct {
	Title       string
	Description string
	Region      string
	Language    string
	Topic       string
	Category    string
	Sector      string // secondary category, e.g. a startup's sector
	Duration    string
	HasDuration bool
}

// Subject is anything the engine can filter.
type Subject interface {
	FilterFields() Fields
}

// Apply returns the elements of items that satisfy every active predicate in c,
// in their original order.
func Apply[T Subject](items []T, c Criteria) []T {
	return ApplyFunc(items, c, func(it T) Fields { return it.FilterFields() })
}

// ApplyFunc is Apply for element types that do not implement Subject
// themselves; fields projects each element.
func ApplyFunc[T any](items []T, c Criteria, fields func(T) Fields) []T {
	out := make([]T, 0, len(items))
	q := strings.ToLower(strings.TrimSpace(c.Query))
	for _, it := range items {
		if Match(fields(it), c, q) {
			out = append(out, it)
		}
	}
	return out
}

// Match reports whether f satisfies every active predicate of c.
// lowerQuery is c.Query already trimmed and lower-cased.
func Match(f Fields, c Criteria, lowerQuery string) bool {
	if !equal(c.Region, f.Region) ||
		!equal(c.Language, f.Language) ||
		!equal(c.Topic, f.Topic) ||
		!(equal(c.Category, f.Category) || (f.Sector != "" && equal(c.Category, f.Sector))) {
		return false
	}
	if lowerQuery != "" &&
		!strings.Contains(strings.ToLower(f.Title), lowerQuery) &&
		!strings.Contains(strings.ToLower(f.Description), lowerQuery) {
		return false
	}
	if c.Duration.Active() {
		if !f.HasDuration {
			return false
		}
		if BucketOf(ParseMinutes(f.Duration)) != c.Duration {
			return false
		}
	}
	return true
}

// Active reports whether a criterion value takes part in filtering.
func Active(v string) bool {
	return v != "" && v != All
}

func equal(want, got string) bool {
	if !Active(want) {
		return true
	}
	return want == got
}
