package docstore

import (
	"fmt"
	"sort"
	"strings"

	"pyquest-gamification/internal/domain"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEq  Op = "=="
	OpNeq Op = "!="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

// Filter restricts a query to documents whose field compares true against Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query describes filtering, ordering and truncation of a collection scan.
// Ties in OrderBy are broken by document id ascending; documents missing the
// ordering field sort last in both directions.
type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Run evaluates q over docs in memory. Backends without a native query
// language use it after loading the collection.
func Run(docs []Document, q Query) ([]Document, error) {
	filters := make([]Filter, len(q.Filters))
	for i, f := range q.Filters {
		v, err := NormalizeValue(f.Value)
		if err != nil {
			return nil, err
		}
		switch f.Op {
		case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte:
		default:
			return nil, fmt.Errorf("filter op %q: %w", f.Op, domain.ErrInvalidArgument)
		}
		filters[i] = Filter{Field: f.Field, Op: f.Op, Value: v}
	}

	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if matches(doc, filters) {
			out = append(out, doc)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if q.OrderBy != "" {
			vi, oki := GetPath(out[i].Data, q.OrderBy)
			vj, okj := GetPath(out[j].Data, q.OrderBy)
			switch {
			case oki && !okj:
				return true
			case !oki && okj:
				return false
			case oki && okj:
				if c := compare(vi, vj); c != 0 {
					if q.Descending {
						return c > 0
					}
					return c < 0
				}
			}
		}
		return out[i].ID < out[j].ID
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matches(doc Document, filters []Filter) bool {
	for _, f := range filters {
		v, ok := GetPath(doc.Data, f.Field)
		if !ok {
			if f.Op == OpNeq {
				continue
			}
			return false
		}
		c := compare(v, f.Value)
		var pass bool
		switch f.Op {
		case OpEq:
			pass = valuesEqual(v, f.Value)
		case OpNeq:
			pass = !valuesEqual(v, f.Value)
		case OpLt:
			pass = c < 0
		case OpLte:
			pass = c <= 0
		case OpGt:
			pass = c > 0
		case OpGte:
			pass = c >= 0
		}
		if !pass {
			return false
		}
	}
	return true
}

// compare orders numbers numerically, strings lexically and falls back to the
// printed form for mixed types.
func compare(a, b any) int {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.Compare(sa, sb)
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ba == bb:
				return 0
			case !ba:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
