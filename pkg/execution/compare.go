package execution

import (
	"fmt"
	"strings"

	"coredb/pkg/tuple"
)

// lessByOrderBy reports whether a sorts before b under orderBy, evaluated
// left to right so ties on an earlier key fall through to the next.
func lessByOrderBy(schema *tuple.Schema, orderBy []OrderBy, a, b *tuple.Tuple) bool {
	for _, ob := range orderBy {
		cmp := a.GetValue(schema, ob.Column).Compare(b.GetValue(schema, ob.Column))
		if cmp == 0 {
			continue
		}
		if ob.Desc {
			return cmp > 0
		}
		return cmp < 0
	}
	return false
}

// groupKey builds a string key that uniquely identifies a group-by tuple's
// combination of column values; a nil groupBy list always maps to the
// single empty-string group.
func groupKey(schema *tuple.Schema, groupBy []int, t *tuple.Tuple) string {
	if len(groupBy) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, col := range groupBy {
		fmt.Fprintf(&sb, "%s\x1f", t.GetValue(schema, col).String())
	}
	return sb.String()
}
