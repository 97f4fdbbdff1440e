package condition

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/koustreak/restdb/internal/schema"
)

var people = schema.NewTable("people", schema.KindTable, []schema.Column{
	{Name: "id", Type: "integer", Pk: true},
	{Name: "age", Type: "integer"},
	{Name: "name", Type: "varchar"},
	{Name: "area", Type: "geometry"},
})

// printer renders a condition as text, for assertions.
type printer struct{ sb strings.Builder }

func (p *printer) VisitNo(NoCondition) { p.sb.WriteString("TRUE") }
func (p *printer) VisitColumn(c ColumnCondition) {
	p.sb.WriteString(c.Column.Name + " " + c.Operator + " " + c.Value)
}
func (p *printer) VisitSpatial(c SpatialCondition) {
	p.sb.WriteString("s" + c.Operator + "(" + c.Column.Name + "," + c.Value + ")")
}
func (p *printer) VisitAnd(c AndCondition) { p.list(c.Conditions, " AND ") }
func (p *printer) VisitOr(c OrCondition)   { p.list(c.Conditions, " OR ") }
func (p *printer) VisitNot(c NotCondition) {
	p.sb.WriteString("NOT ")
	c.Condition.Accept(p)
}

func (p *printer) list(cs []Condition, sep string) {
	p.sb.WriteString("(")
	for i, c := range cs {
		if i > 0 {
			p.sb.WriteString(sep)
		}
		c.Accept(p)
	}
	p.sb.WriteString(")")
}

func format(c Condition) string {
	p := &printer{}
	c.Accept(p)
	return p.sb.String()
}

func TestIdentityLaws(t *testing.T) {
	age := Parse(people, "age,gt,30")
	name := Parse(people, "name,cs,jo")
	all := []Condition{
		NoCondition{},
		age,
		Parse(people, "area,sco,POINT(1 1)"),
		age.And(name),
		age.Or(name),
		age.Not(),
	}

	for _, c := range all {
		t.Run(format(c), func(t *testing.T) {
			assert.Equal(t, c, c.And(NoCondition{}))
			assert.Equal(t, c, c.Or(NoCondition{}))
			assert.Equal(t, c, NoCondition{}.And(c))
			assert.Equal(t, c, NoCondition{}.Or(c))
		})
	}
}

func TestComposition(t *testing.T) {
	a := Parse(people, "age,gt,30")
	b := Parse(people, "name,cs,jo")
	c := Parse(people, "id,eq,1")

	assert.Equal(t, "(age gt 30 AND name cs jo AND id eq 1)", format(a.And(b).And(c)))
	assert.Equal(t, "(age gt 30 OR name cs jo OR id eq 1)", format(a.Or(b).Or(c)))
	assert.Equal(t, "((age gt 30 AND name cs jo) OR id eq 1)", format(a.And(b).Or(c)))
	assert.Equal(t, "TRUE", format(NoCondition{}.Not()))
	assert.Equal(t, "(age gt 30 AND name cs jo)", format(All(NoCondition{}, a, NoCondition{}, b)))
	assert.True(t, IsNone(Any()))
}

func TestParse(t *testing.T) {
	tests := []struct {
		filter string
		want   string
	}{
		{"age,gt,30", "age gt 30"},
		{"name,cs,a,b", "name cs a,b"},
		{"name,is", "name is "},
		{"age,nlt,5", "NOT age lt 5"},
		{"area,sin,POLYGON((0 0,1 1))", "sin(area,POLYGON((0 0,1 1)))"},
		{"area,nsiv", "NOT siv(area,)"},
		{"age,xx,1", "TRUE"},
		{"age,sco,1", "sco(age,1)"},
		{"age,sgt,1", "TRUE"},
		{"missing,eq,1", "TRUE"},
		{"age", "TRUE"},
		{"age,nxx,1", "TRUE"},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			assert.Equal(t, tt.want, format(Parse(people, tt.filter)))
		})
	}
}

func TestFromParams(t *testing.T) {
	tests := []struct {
		name   string
		params map[string][]string
		want   string
	}{
		{
			name:   "single group is AND",
			params: map[string][]string{"filter": {"age,gt,30", "name,cs,jo"}},
			want:   "(age gt 30 AND name cs jo)",
		},
		{
			name:   "distinct groups are OR",
			params: map[string][]string{"filter0": {"age,eq,1"}, "filter1": {"name,eq,2"}},
			want:   "(age eq 1 OR name eq 2)",
		},
		{
			name: "groups of ANDs",
			params: map[string][]string{
				"filter0": {"age,eq,1", "name,eq,a"},
				"filter1": {"age,eq,2", "name,eq,b"},
			},
			want: "((age eq 1 AND name eq a) OR (age eq 2 AND name eq b))",
		},
		{
			name: "root AND nested OR",
			params: map[string][]string{
				"filter":   {"id,gt,0"},
				"filtera0": {"age,eq,1"},
				"filtera1": {"age,eq,2"},
			},
			want: "(id gt 0 AND (age eq 1 OR age eq 2))",
		},
		{
			name:   "malformed filters are dropped",
			params: map[string][]string{"filter": {"age,zz,1", "nope"}, "filterxyz": {"age,eq,1"}, "order": {"id"}},
			want:   "TRUE",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, format(FromParams(people, tt.params)))
		})
	}
}

func TestFilterPath(t *testing.T) {
	p, ok := filterPath("filter")
	assert.True(t, ok)
	assert.Empty(t, p)

	p, ok = filterPath("filterf3")
	assert.True(t, ok)
	assert.Equal(t, []string{"f", "3"}, p)

	_, ok = filterPath("filterg")
	assert.False(t, ok)
	_, ok = filterPath("filter123")
	assert.False(t, ok)
	_, ok = filterPath("order")
	assert.False(t, ok)
}
