// Package match evaluates detections against the object/color targets a
// caller asked for.
package match

import (
	"strings"

	"github.com/framehound/framehound/internal/detect"
)

// Query names a target object, optionally constrained to a color.
// Color is empty when any color matches.
type Query struct {
	Object string `json:"object"`
	Color  string `json:"color,omitempty"`
}

// HasColor reports whether the query constrains color.
func (q Query) HasColor() bool {
	return q.Color != ""
}

// Normalize lowercases and trims both fields so comparisons stay
// case-insensitive regardless of where the query came from.
func (q Query) Normalize() Query {
	return Query{
		Object: strings.ToLower(strings.TrimSpace(q.Object)),
		Color:  strings.ToLower(strings.TrimSpace(q.Color)),
	}
}

// Matches reports whether a single detection satisfies the query. Class
// comparison is case-insensitive. A query with a color constraint only
// matches detections that carry an extracted color.
func (q Query) Matches(d detect.Detection) bool {
	n := q.Normalize()
	if n.Object == "" || !strings.EqualFold(d.Class, n.Object) {
		return false
	}
	if !n.HasColor() {
		return true
	}
	if d.Color == "" {
		return false
	}
	return strings.EqualFold(d.Color, n.Color)
}

// AnyColored reports whether at least one query carries a color
// constraint. Color extraction is skipped entirely when none do.
func AnyColored(queries []Query) bool {
	for _, q := range queries {
		if q.HasColor() {
			return true
		}
	}
	return false
}

// Filter returns the detections that satisfy at least one query. Each
// detection appears at most once even when several queries match it,
// and input order is preserved. A nil or empty query list matches
// nothing.
func Filter(detections []detect.Detection, queries []Query) []detect.Detection {
	if len(queries) == 0 || len(detections) == 0 {
		return nil
	}
	var out []detect.Detection
	for _, d := range detections {
		for _, q := range queries {
			if q.Matches(d) {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

// Objects returns the distinct object names across the queries, lowercased,
// in first-seen order.
func Objects(queries []Query) []string {
	seen := make(map[string]struct{}, len(queries))
	var out []string
	for _, q := range queries {
		obj := q.Normalize().Object
		if obj == "" {
			continue
		}
		if _, ok := seen[obj]; ok {
			continue
		}
		seen[obj] = struct{}{}
		out = append(out, obj)
	}
	return out
}
