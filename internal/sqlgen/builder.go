// Package sqlgen turns reflected tables, column lists, conditions, ordering
// and pagination into parameterised SQL for one engine.
//
// Statements use ? placeholders with arguments in placeholder order;
// database.DB rewrites them for the engine. Identifiers are always double
// quoted.
//
// Usage:
//
//	b := sqlgen.New(db.Dialect())
//	st := b.SelectAll(table, []string{"id", "title"}, cond, order, 0, 20)
//	rows, err := db.Query(ctx, st.SQL, st.Args...)
package sqlgen

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/koustreak/restdb/internal/condition"
	"github.com/koustreak/restdb/internal/database"
	"github.com/koustreak/restdb/internal/schema"
)

// Ordering sorts on one column.
type Ordering struct {
	Column string
	Desc   bool
}

// ColumnValue is one column assignment of an insert or update.
type ColumnValue struct {
	Column string
	Value  any
}

// Builder is stateless and safe for concurrent use.
type Builder struct {
	d database.QueryDialect
}

func New(d database.QueryDialect) *Builder {
	return &Builder{d: d}
}

// --- fragments ---

// Where renders " WHERE ..." for c, or "" for NoCondition.
func (b *Builder) Where(c condition.Condition) (string, []any) {
	if condition.IsNone(c) {
		return "", nil
	}
	sql, args := b.Condition(c)
	return " WHERE " + sql, args
}

// Condition renders c without the WHERE keyword.
func (b *Builder) Condition(c condition.Condition) (string, []any) {
	w := &conditionWriter{d: b.d}
	if c == nil {
		c = condition.NoCondition{}
	}
	c.Accept(w)
	return w.sb.String(), w.args
}

// Columns renders a select list. Binary and geometry columns are wrapped so
// that they come back as base64 and WKT text.
func (b *Builder) Columns(table *schema.Table, columns []string) string {
	parts := make([]string, 0, len(columns))
	for _, name := range columns {
		col := table.Column(name)
		if col == nil {
			continue
		}
		parts = append(parts, b.selectExpr(col))
	}
	return strings.Join(parts, ",")
}

func (b *Builder) selectExpr(col *schema.Column) string {
	quoted := database.QuoteIdent(col.Name)
	switch {
	case col.IsBinary():
		return b.d.BinarySelect(quoted)
	case col.IsGeometry():
		return b.d.GeometrySelect(quoted)
	}
	return quoted
}

// Param is the bind expression for a value of col.
func (b *Builder) Param(col *schema.Column) string {
	switch {
	case col.IsBoolean():
		return b.d.BooleanParam()
	case col.IsBinary():
		return b.d.BinaryParam()
	case col.IsGeometry():
		return b.d.GeometryParam()
	}
	return "?"
}

// OrderBy renders " ORDER BY ..." or "" when ordering is empty.
func (b *Builder) OrderBy(table *schema.Table, ordering []Ordering) string {
	parts := make([]string, 0, len(ordering))
	for _, o := range ordering {
		if !table.HasColumn(o.Column) {
			continue
		}
		dir := " ASC"
		if o.Desc {
			dir = " DESC"
		}
		parts = append(parts, database.QuoteIdent(o.Column)+dir)
	}
	if len(parts) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(parts, ",")
}

// OffsetLimit renders the pagination clause; -1 for either omits it.
func (b *Builder) OffsetLimit(offset, limit int) string {
	return b.d.OffsetLimit(offset, limit)
}

// DefaultOrdering is ascending on the primary key, or on every column when
// the table has none.
func DefaultOrdering(table *schema.Table) []Ordering {
	if pk := table.Pk(); pk != nil {
		return []Ordering{{Column: pk.Name}}
	}
	names := table.ColumnNames()
	ordering := make([]Ordering, len(names))
	for i, n := range names {
		ordering[i] = Ordering{Column: n}
	}
	return ordering
}

// --- statements ---

func from(table *schema.Table) string {
	return " FROM " + database.QuoteIdent(table.Name())
}

// SelectAll selects columns of the rows matching c.
func (b *Builder) SelectAll(table *schema.Table, columns []string, c condition.Condition, ordering []Ordering, offset, limit int) database.Statement {
	where, args := b.Where(c)
	sql := "SELECT " + b.Columns(table, columns) + from(table) + where + b.OrderBy(table, ordering) + b.OffsetLimit(offset, limit)
	return database.Statement{SQL: sql, Args: args}
}

// SelectCount counts the rows matching c.
func (b *Builder) SelectCount(table *schema.Table, c condition.Condition) database.Statement {
	where, args := b.Where(c)
	return database.Statement{SQL: "SELECT COUNT(*)" + from(table) + where, Args: args}
}

// Insert inserts one row. When the engine can, the statement itself
// returns the generated primary key.
func (b *Builder) Insert(table *schema.Table, values []ColumnValue) database.Statement {
	columns := make([]string, 0, len(values))
	params := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	for _, v := range values {
		col := table.Column(v.Column)
		if col == nil {
			continue
		}
		columns = append(columns, database.QuoteIdent(col.Name))
		params = append(params, b.Param(col))
		args = append(args, v.Value)
	}

	var output, returning string
	if pk := table.Pk(); pk != nil {
		output = b.d.InsertOutput(database.QuoteIdent(pk.Name))
		returning = b.d.InsertReturning(database.QuoteIdent(pk.Name))
	}
	sql := "INSERT INTO " + database.QuoteIdent(table.Name()) +
		" (" + strings.Join(columns, ",") + ")" + output +
		" VALUES (" + strings.Join(params, ",") + ")" + returning
	return database.Statement{SQL: sql, Args: args}
}

// Update assigns values on the rows matching c. ok is false when there is
// nothing to assign.
func (b *Builder) Update(table *schema.Table, values []ColumnValue, c condition.Condition) (st database.Statement, ok bool) {
	sets := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	for _, v := range values {
		col := table.Column(v.Column)
		if col == nil {
			continue
		}
		sets = append(sets, database.QuoteIdent(col.Name)+"="+b.Param(col))
		args = append(args, v.Value)
	}
	return b.update(table, sets, args, c)
}

// Increment adds values to the matching rows. Values that are not numeric
// are skipped; ok is false when none is left.
func (b *Builder) Increment(table *schema.Table, values []ColumnValue, c condition.Condition) (st database.Statement, ok bool) {
	sets := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	for _, v := range values {
		col := table.Column(v.Column)
		if col == nil || !IsNumeric(v.Value) {
			continue
		}
		quoted := database.QuoteIdent(col.Name)
		sets = append(sets, quoted+"="+quoted+"+"+b.Param(col))
		args = append(args, v.Value)
	}
	return b.update(table, sets, args, c)
}

func (b *Builder) update(table *schema.Table, sets []string, args []any, c condition.Condition) (database.Statement, bool) {
	if len(sets) == 0 {
		return database.Statement{}, false
	}
	where, whereArgs := b.Where(c)
	sql := "UPDATE " + database.QuoteIdent(table.Name()) + " SET " + strings.Join(sets, ",") + where
	return database.Statement{SQL: sql, Args: append(args, whereArgs...)}, true
}

// Delete deletes the rows matching c.
func (b *Builder) Delete(table *schema.Table, c condition.Condition) database.Statement {
	where, args := b.Where(c)
	return database.Statement{SQL: "DELETE" + from(table) + where, Args: args}
}

var decimalRe = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// IsNumeric reports whether v is a finite number or a string holding one in
// plain decimal notation.
func IsNumeric(v any) bool {
	switch t := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return finite(float64(t))
	case float64:
		return finite(t)
	case interface {
		Float64() (float64, error)
		String() string
	}:
		return isDecimal(t.String())
	case string:
		return isDecimal(t)
	}
	return false
}

func isDecimal(s string) bool {
	s = strings.TrimSpace(s)
	if !decimalRe.MatchString(s) {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && finite(f)
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
