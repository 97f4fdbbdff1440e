// Package condition is the boolean algebra record filters are expressed in.
//
// A Condition is one of NoCondition, ColumnCondition, SpatialCondition,
// AndCondition, OrCondition or NotCondition. The set is closed: consumers
// implement Visitor, so adding a variant breaks every consumer at compile
// time instead of at run time.
//
// NoCondition is neutral: c.And(NoCondition{}) and c.Or(NoCondition{})
// return c for every c.
//
// Usage:
//
//	c := condition.Parse(table, "age,gt,30").And(condition.Parse(table, "name,cs,jo"))
//	c.Accept(sqlWriter)
package condition

import "github.com/koustreak/restdb/internal/schema"

type Condition interface {
	And(other Condition) Condition
	Or(other Condition) Condition
	Not() Condition
	Accept(v Visitor)

	sealed()
}

// Visitor receives the concrete variant of a Condition.
type Visitor interface {
	VisitNo(c NoCondition)
	VisitColumn(c ColumnCondition)
	VisitSpatial(c SpatialCondition)
	VisitAnd(c AndCondition)
	VisitOr(c OrCondition)
	VisitNot(c NotCondition)
}

// IsNone reports whether c is NoCondition.
func IsNone(c Condition) bool {
	_, ok := c.(NoCondition)
	return c == nil || ok
}

// All ANDs conditions together, skipping NoCondition.
func All(conditions ...Condition) Condition {
	var out Condition = NoCondition{}
	for _, c := range conditions {
		out = out.And(c)
	}
	return out
}

// Any ORs conditions together, skipping NoCondition.
func Any(conditions ...Condition) Condition {
	var out Condition = NoCondition{}
	for _, c := range conditions {
		out = out.Or(c)
	}
	return out
}

// --- NoCondition ---

// NoCondition matches everything and disappears under composition.
type NoCondition struct{}

func (NoCondition) And(other Condition) Condition { return orNone(other) }
func (NoCondition) Or(other Condition) Condition  { return orNone(other) }
func (NoCondition) Not() Condition                { return NoCondition{} }
func (c NoCondition) Accept(v Visitor)            { v.VisitNo(c) }
func (NoCondition) sealed()                       {}

func orNone(c Condition) Condition {
	if c == nil {
		return NoCondition{}
	}
	return c
}

// --- predicates ---

// ColumnCondition compares a column with a value. Operator is one of
// cs, sw, ew, eq, lt, le, ge, gt, bt, in, is.
type ColumnCondition struct {
	Column   *schema.Column
	Operator string
	Value    string
}

func (c ColumnCondition) And(other Condition) Condition { return and(c, other) }
func (c ColumnCondition) Or(other Condition) Condition  { return or(c, other) }
func (c ColumnCondition) Not() Condition                { return NotCondition{Condition: c} }
func (c ColumnCondition) Accept(v Visitor)              { v.VisitColumn(c) }
func (ColumnCondition) sealed()                         {}

// SpatialCondition applies an OGC predicate to a geometry column. Operator
// is one of co, cr, di, eq, in, ov, to, wi, ic, is, iv; the last three take
// no value.
type SpatialCondition struct {
	Column   *schema.Column
	Operator string
	Value    string
}

func (c SpatialCondition) And(other Condition) Condition { return and(c, other) }
func (c SpatialCondition) Or(other Condition) Condition  { return or(c, other) }
func (c SpatialCondition) Not() Condition                { return NotCondition{Condition: c} }
func (c SpatialCondition) Accept(v Visitor)              { v.VisitSpatial(c) }
func (SpatialCondition) sealed()                         {}

// --- connectives ---

type AndCondition struct {
	Conditions []Condition
}

// And extends the list rather than nesting.
func (c AndCondition) And(other Condition) Condition {
	if IsNone(other) {
		return c
	}
	conditions := make([]Condition, 0, len(c.Conditions)+1)
	conditions = append(conditions, c.Conditions...)
	return AndCondition{Conditions: append(conditions, other)}
}

func (c AndCondition) Or(other Condition) Condition { return or(c, other) }
func (c AndCondition) Not() Condition               { return NotCondition{Condition: c} }
func (c AndCondition) Accept(v Visitor)             { v.VisitAnd(c) }
func (AndCondition) sealed()                        {}

type OrCondition struct {
	Conditions []Condition
}

func (c OrCondition) And(other Condition) Condition { return and(c, other) }

// Or extends the list rather than nesting.
func (c OrCondition) Or(other Condition) Condition {
	if IsNone(other) {
		return c
	}
	conditions := make([]Condition, 0, len(c.Conditions)+1)
	conditions = append(conditions, c.Conditions...)
	return OrCondition{Conditions: append(conditions, other)}
}

func (c OrCondition) Not() Condition   { return NotCondition{Condition: c} }
func (c OrCondition) Accept(v Visitor) { v.VisitOr(c) }
func (OrCondition) sealed()            {}

type NotCondition struct {
	Condition Condition
}

func (c NotCondition) And(other Condition) Condition { return and(c, other) }
func (c NotCondition) Or(other Condition) Condition  { return or(c, other) }
func (c NotCondition) Not() Condition                { return NotCondition{Condition: c} }
func (c NotCondition) Accept(v Visitor)              { v.VisitNot(c) }
func (NotCondition) sealed()                         {}

func and(c, other Condition) Condition {
	if IsNone(other) {
		return c
	}
	return AndCondition{Conditions: []Condition{c, other}}
}

func or(c, other Condition) Condition {
	if IsNone(other) {
		return c
	}
	return OrCondition{Conditions: []Condition{c, other}}
}
