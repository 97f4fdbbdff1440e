package condition

import (
	"slices"
	"strings"

	"github.com/koustreak/restdb/internal/pathtree"
	"github.com/koustreak/restdb/internal/schema"
)

var (
	columnOperators  = []string{"cs", "sw", "ew", "eq", "lt", "le", "ge", "gt", "bt", "in", "is"}
	spatialOperators = []string{"co", "cr", "di", "eq", "in", "ov", "to", "wi", "ic", "is", "iv"}
)

// Parse reads one "column,operator[,value]" filter against table. The
// operator may be prefixed with "n" (negate) and then "s" (spatial).
// Anything malformed, an unknown column included, yields NoCondition.
func Parse(table *schema.Table, filter string) Condition {
	parts := strings.SplitN(filter, ",", 3)
	if len(parts) < 2 {
		return NoCondition{}
	}
	column := table.Column(parts[0])
	if column == nil {
		return NoCondition{}
	}
	op := parts[1]
	value := ""
	if len(parts) == 3 {
		value = parts[2]
	}

	negate, spatial := false, false
	if len(op) > 2 && op[0] == 'n' {
		negate, op = true, op[1:]
	}
	if len(op) > 2 && op[0] == 's' {
		spatial, op = true, op[1:]
	}

	var c Condition = NoCondition{}
	switch {
	case spatial && slices.Contains(spatialOperators, op):
		c = SpatialCondition{Column: column, Operator: op, Value: value}
	case !spatial && slices.Contains(columnOperators, op):
		c = ColumnCondition{Column: column, Operator: op, Value: value}
	}
	if negate {
		c = c.Not()
	}
	return c
}

// FromParams combines the filter parameters of a request. Keys are "filter"
// followed by up to two hex digits; each digit is one level of grouping.
// Filters in the same group are ANDed, sibling groups are ORed, and a
// group's own filters are ANDed with the OR of its subgroups:
//
//	filter=a&filter=b           a AND b
//	filter0=a&filter1=b         a OR b
//	filter=a&filter0=b&filter1=c  a AND (b OR c)
func FromParams(table *schema.Table, params map[string][]string) Condition {
	tree := pathtree.New[Condition]()
	// Sorted so that group order is stable.
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		path, ok := filterPath(key)
		if !ok {
			continue
		}
		for _, f := range params[key] {
			if c := Parse(table, f); !IsNone(c) {
				tree = tree.Put(path, c)
			}
		}
	}
	return Combine(tree)
}

// filterPath maps "filter", "filter3", "filterab" to nil, ["3"], ["a","b"].
func filterPath(key string) ([]string, bool) {
	suffix, ok := strings.CutPrefix(key, "filter")
	if !ok || len(suffix) > 2 {
		return nil, false
	}
	path := make([]string, 0, len(suffix))
	for _, r := range suffix {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return nil, false
		}
		path = append(path, string(r))
	}
	return path, true
}

// Combine folds a tree of conditions depth first: the values of a node are
// ANDed and then ANDed with the OR of its combined branches.
func Combine(tree *pathtree.Tree[Condition]) Condition {
	branches := make([]Condition, 0, len(tree.Keys()))
	for _, k := range tree.Keys() {
		branches = append(branches, Combine(tree.Get(k)))
	}
	return All(tree.Values()...).And(Any(branches...))
}
