package record

import (
	"context"

	"github.com/koustreak/restdb/internal/condition"
	"github.com/koustreak/restdb/internal/schema"
)

// Scope derives an extra condition for a table, or NoCondition.
type Scope func(table *schema.Table) condition.Condition

// QueryContext holds the request scoped restrictions middleware puts on
// record statements: conditions ANDed into every select, count, update and
// delete, and column values forced on every insert. It is immutable; each
// With method returns a new one, so concurrent requests never share state.
type QueryContext struct {
	conditions map[string]condition.Condition
	scopes     []Scope
	values     map[string]any
}

type queryContextKey struct{}

// NewContext returns ctx carrying qc.
func NewContext(ctx context.Context, qc *QueryContext) context.Context {
	return context.WithValue(ctx, queryContextKey{}, qc)
}

// FromContext returns the QueryContext of ctx. A nil *QueryContext is valid
// and restricts nothing.
func FromContext(ctx context.Context) *QueryContext {
	qc, _ := ctx.Value(queryContextKey{}).(*QueryContext)
	return qc
}

func (qc *QueryContext) clone() *QueryContext {
	out := &QueryContext{
		conditions: make(map[string]condition.Condition),
		values:     make(map[string]any),
	}
	if qc == nil {
		return out
	}
	for k, v := range qc.conditions {
		out.conditions[k] = v
	}
	for k, v := range qc.values {
		out.values[k] = v
	}
	out.scopes = append(out.scopes, qc.scopes...)
	return out
}

// With ANDs c into the condition for the named table.
func (qc *QueryContext) With(table string, c condition.Condition) *QueryContext {
	out := qc.clone()
	if existing, ok := out.conditions[table]; ok {
		c = existing.And(c)
	}
	out.conditions[table] = c
	return out
}

// WithScope adds a condition computed per table when a statement is built.
func (qc *QueryContext) WithScope(s Scope) *QueryContext {
	out := qc.clone()
	out.scopes = append(out.scopes, s)
	return out
}

// WithValue forces column to value on inserts into tables having it.
func (qc *QueryContext) WithValue(column string, value any) *QueryContext {
	out := qc.clone()
	out.values[column] = value
	return out
}

// Condition is everything to AND into statements on table.
func (qc *QueryContext) Condition(table *schema.Table) condition.Condition {
	if qc == nil {
		return condition.NoCondition{}
	}
	var c condition.Condition = condition.NoCondition{}
	if extra, ok := qc.conditions[table.Name()]; ok {
		c = c.And(extra)
	}
	for _, s := range qc.scopes {
		c = c.And(s(table))
	}
	return c
}

// Values are the forced insert values that apply to table.
func (qc *QueryContext) Values(table *schema.Table) Record {
	out := make(Record)
	if qc == nil {
		return out
	}
	for column, v := range qc.values {
		if table.HasColumn(column) {
			out[column] = v
		}
	}
	return out
}

// ColumnScope is a Scope restricting column to value in every table that
// has the column.
func ColumnScope(column, value string) Scope {
	return func(table *schema.Table) condition.Condition {
		col := table.Column(column)
		if col == nil {
			return condition.NoCondition{}
		}
		return condition.ColumnCondition{Column: col, Operator: "eq", Value: value}
	}
}
