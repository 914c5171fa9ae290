package crawl

import (
	"sort"

	"github.com/stratadb/strata/pkg/flake"
	"github.com/stratadb/strata/pkg/query"
)

// Finisher post-processes the complete result collection: order-by, then
// offset/limit, then select-one unwrapping, then pretty-print wrapping. It
// is pure and computed once per query from the select specification.
type Finisher func(items []Item) any

func NewFinisher(sel *query.SelectSpec) Finisher {
	ordered := sel.OrderBy != nil && sel.OrderBy.HasPredicate

	return func(items []Item) any {
		if ordered {
			sortItems(items, sel.OrderBy.Desc)
			items = cut(items, sel.Offset, sel.Limit)
		}

		if sel.SelectOne {
			if len(items) == 0 {
				return nil
			}
			return wrap(items[0], sel)
		}

		out := make([]any, 0, len(items))
		for _, it := range items {
			out = append(out, wrap(it, sel))
		}
		return out
	}
}

// sortItems stably sorts by the captured sort key. Subjects lacking the
// order-by predicate sort after every subject that has it.
func sortItems(items []Item, desc bool) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].SortKey, items[j].SortKey
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		c := flake.CompareValues(*a, *b)
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func cut(items []Item, offset, limit int) []Item {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func wrap(it Item, sel *query.SelectSpec) any {
	if sel.PrettyPrint && sel.Var != "" {
		return map[string]any{sel.Var: it.Node}
	}
	return it.Node
}
