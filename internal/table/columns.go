package table

import (
	"fmt"
	"sort"
	"strings"
)

// maxSuggestions bounds the "did you mean" list.
const maxSuggestions = 3

// maxEditDistance is the largest Levenshtein distance still considered a
// plausible typo.
const maxEditDistance = 3

// ColumnNotFoundError reports a requested column absent from a schema,
// with enough structure for the caller to render an actionable message.
type ColumnNotFoundError struct {
	Requested   string
	Available   []string
	Suggestions []string
}

func (e *ColumnNotFoundError) Error() string {
	msg := fmt.Sprintf("column %q not found (available: %s)", e.Requested, strings.Join(e.Available, ", "))
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf("; did you mean %q?", e.Suggestions[0])
	}
	return msg
}

// RequireColumn checks that the named column exists in the schema and
// returns a suggestion-bearing error when it does not.
func RequireColumn(schema Schema, name string) *ColumnNotFoundError {
	if schema.Has(name) {
		return nil
	}
	return &ColumnNotFoundError{
		Requested:   name,
		Available:   schema.Names(),
		Suggestions: SuggestColumns(schema, name),
	}
}

// RequireColumns checks every requested name, collecting one error per
// missing column rather than stopping at the first.
func RequireColumns(schema Schema, names []string) []*ColumnNotFoundError {
	var errs []*ColumnNotFoundError
	for _, name := range names {
		if err := RequireColumn(schema, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// suggestion match classes, best first.
const (
	matchExactFold = iota // equal ignoring case
	matchSubstring        // containment either direction, ignoring case
	matchDistance         // within maxEditDistance edits
)

type candidate struct {
	name     string
	class    int
	distance int
	order    int // position in schema, stable tie-break
}

// SuggestColumns ranks the schema's columns by similarity to the
// requested name: case-insensitive exact matches first, then substring
// containment in either direction, then ascending edit distance. Ties
// keep original schema order. At most three names are returned.
func SuggestColumns(schema Schema, requested string) []string {
	reqFold := strings.ToLower(requested)
	var cands []candidate
	for i, name := range schema.Names() {
		nameFold := strings.ToLower(name)
		switch {
		case nameFold == reqFold:
			cands = append(cands, candidate{name: name, class: matchExactFold, order: i})
		case strings.Contains(nameFold, reqFold) || strings.Contains(reqFold, nameFold):
			cands = append(cands, candidate{name: name, class: matchSubstring, order: i})
		default:
			if d := levenshtein(reqFold, nameFold); d <= maxEditDistance {
				cands = append(cands, candidate{name: name, class: matchDistance, distance: d, order: i})
			}
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].class != cands[j].class {
			return cands[i].class < cands[j].class
		}
		if cands[i].class == matchDistance && cands[i].distance != cands[j].distance {
			return cands[i].distance < cands[j].distance
		}
		return cands[i].order < cands[j].order
	})
	if len(cands) > maxSuggestions {
		cands = cands[:maxSuggestions]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.name
	}
	return out
}

// levenshtein computes the edit distance between two strings using two
// rolling rows.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i, ca := range ra {
		curr[0] = i + 1
		for j, cb := range rb {
			cost := 1
			if ca == cb {
				cost = 0
			}
			curr[j+1] = min(prev[j+1]+1, min(curr[j]+1, prev[j]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
