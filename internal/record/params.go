package record

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/koustreak/restdb/internal/condition"
	"github.com/koustreak/restdb/internal/schema"
	"github.com/koustreak/restdb/internal/sqlgen"
)

// DefaultPageSize applies to page=N without an explicit size.
const DefaultPageSize = 20

// Params are the query parameters of a record request. Every key may repeat;
// url.Values converts directly.
type Params map[string][]string

// mandatoryParam lists table.column names the column selection must keep.
// It is set internally and never taken from a request.
const mandatoryParam = "mandatory"

// ParamsFromQuery converts request query parameters, dropping the keys
// only set internally.
func ParamsFromQuery(q url.Values) Params {
	return Params(q).Without(mandatoryParam)
}

// Has reports whether key was given at least once.
func (p Params) Has(key string) bool {
	return len(p[key]) > 0
}

func (p Params) first(key string) string {
	if v := p[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// With returns a copy of p with key set to values.
func (p Params) With(key string, values ...string) Params {
	out := make(Params, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	out[key] = values
	return out
}

// Without returns a copy of p without key.
func (p Params) Without(key string) Params {
	out := make(Params, len(p))
	for k, v := range p {
		if k != key {
			out[k] = v
		}
	}
	return out
}

// --- filters and ordering ---

// Condition combines the filter parameters for table.
func (p Params) Condition(table *schema.Table) condition.Condition {
	return condition.FromParams(table, p)
}

// Ordering reads order=column[,asc|desc]. Unknown columns are skipped; with
// nothing left the table's default ordering applies.
func (p Params) Ordering(table *schema.Table) []sqlgen.Ordering {
	var ordering []sqlgen.Ordering
	for _, o := range p["order"] {
		parts := strings.SplitN(o, ",", 3)
		if !table.HasColumn(parts[0]) {
			continue
		}
		desc := len(parts) > 1 && strings.HasPrefix(strings.ToUpper(parts[1]), "DESC")
		ordering = append(ordering, sqlgen.Ordering{Column: parts[0], Desc: desc})
	}
	if len(ordering) == 0 {
		return sqlgen.DefaultOrdering(table)
	}
	return ordering
}

// --- pagination ---

// HasPage reports whether page was requested, which also asks for a count.
func (p Params) HasPage() bool {
	return p.Has("page")
}

// pageSize is the size part of the last page=N,size, at least 1.
func (p Params) pageSize() int {
	size := DefaultPageSize
	for _, page := range p["page"] {
		if _, s, ok := strings.Cut(page, ","); ok {
			size, _ = strconv.Atoi(strings.TrimSpace(s))
		}
	}
	return max(size, 1)
}

// Offset is the row offset of the requested page, 1-based pages.
func (p Params) Offset() int {
	offset := 0
	for _, page := range p["page"] {
		n, _, _ := strings.Cut(page, ",")
		number, _ := strconv.Atoi(strings.TrimSpace(n))
		offset = (number - 1) * p.pageSize()
	}
	return max(offset, 0)
}

// resultSize is the last size=N, -1 when absent.
func (p Params) resultSize() int {
	size := -1
	for _, s := range p["size"] {
		size, _ = strconv.Atoi(strings.TrimSpace(s))
	}
	return max(size, -1)
}

// Limit is the row limit: the page size when paging, capped by size. -1
// means unbounded.
func (p Params) Limit() int {
	limit := -1
	if p.HasPage() {
		limit = p.pageSize()
	}
	if size := p.resultSize(); size >= 0 {
		if limit >= 0 {
			limit = min(limit, size)
		} else {
			limit = size
		}
	}
	return limit
}

// --- column selection ---

// ColumnNames applies include and exclude to the columns of table. primary
// marks the table the request is about: its columns also match bare names
// and "*". Columns listed in the internal mandatory parameter always stay.
func (p Params) ColumnNames(table *schema.Table, primary bool) []string {
	names := table.ColumnNames()
	names = p.selectColumns(table.Name(), primary, "include", names, true)
	return p.selectColumns(table.Name(), primary, "exclude", names, false)
}

func (p Params) selectColumns(table string, primary bool, param string, names []string, include bool) []string {
	if !p.Has(param) {
		return names
	}
	patterns := make(map[string]bool)
	for _, name := range strings.Split(p.first(param), ",") {
		patterns[strings.TrimSpace(name)] = true
	}

	out := make([]string, 0, len(names))
	for _, name := range names {
		match := patterns["*.*"] || patterns[table+".*"] || patterns[table+"."+name]
		if primary && !match {
			match = patterns["*"] || patterns[name]
		}
		if match == include || p.isMandatory(table, name) {
			out = append(out, name)
		}
	}
	return out
}

func (p Params) isMandatory(table, column string) bool {
	for _, m := range p[mandatoryParam] {
		if m == table+"."+column {
			return true
		}
	}
	return false
}

// --- joins ---

// JoinPaths splits every join=a,b,c into its table chain.
func (p Params) JoinPaths() [][]string {
	paths := make([][]string, 0, len(p["join"]))
	for _, j := range p["join"] {
		var path []string
		for _, t := range strings.Split(j, ",") {
			if t = strings.TrimSpace(t); t != "" {
				path = append(path, t)
			}
		}
		if len(path) > 0 {
			paths = append(paths, path)
		}
	}
	return paths
}
