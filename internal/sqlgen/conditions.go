package sqlgen

import (
	"strings"

	"github.com/koustreak/restdb/internal/condition"
	"github.com/koustreak/restdb/internal/database"
)

const alwaysTrue = "(1=1)"

var spatialFunctions = map[string]string{
	"co": "Contains",
	"cr": "Crosses",
	"di": "Disjoint",
	"eq": "Equals",
	"in": "Intersects",
	"ov": "Overlaps",
	"to": "Touches",
	"wi": "Within",
	"ic": "IsClosed",
	"is": "IsSimple",
	"iv": "IsValid",
}

// unarySpatial operators take no geometry argument.
var unarySpatial = map[string]bool{"ic": true, "is": true, "iv": true}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// conditionWriter renders a condition tree, collecting arguments in the
// order their placeholders appear.
type conditionWriter struct {
	d    database.QueryDialect
	sb   strings.Builder
	args []any
}

var _ condition.Visitor = (*conditionWriter)(nil)

func (w *conditionWriter) VisitNo(condition.NoCondition) {
	w.sb.WriteString(alwaysTrue)
}

func (w *conditionWriter) VisitAnd(c condition.AndCondition) { w.list(c.Conditions, " AND ") }
func (w *conditionWriter) VisitOr(c condition.OrCondition)   { w.list(c.Conditions, " OR ") }

func (w *conditionWriter) VisitNot(c condition.NotCondition) {
	w.sb.WriteString("(NOT ")
	c.Condition.Accept(w)
	w.sb.WriteString(")")
}

func (w *conditionWriter) list(conditions []condition.Condition, sep string) {
	w.sb.WriteString("(")
	for i, c := range conditions {
		if i > 0 {
			w.sb.WriteString(sep)
		}
		c.Accept(w)
	}
	w.sb.WriteString(")")
}

func (w *conditionWriter) VisitColumn(c condition.ColumnCondition) {
	col := database.QuoteIdent(c.Column.Name)
	switch c.Operator {
	case "cs":
		w.like(col, "%"+likeEscaper.Replace(c.Value)+"%")
	case "sw":
		w.like(col, likeEscaper.Replace(c.Value)+"%")
	case "ew":
		w.like(col, "%"+likeEscaper.Replace(c.Value))
	case "eq":
		w.compare(col, "=", c.Value)
	case "lt":
		w.compare(col, "<", c.Value)
	case "le":
		w.compare(col, "<=", c.Value)
	case "ge":
		w.compare(col, ">=", c.Value)
	case "gt":
		w.compare(col, ">", c.Value)
	case "bt":
		parts := strings.SplitN(c.Value, ",", 2)
		if len(parts) != 2 {
			w.sb.WriteString(w.d.FalseLiteral())
			return
		}
		w.sb.WriteString("(" + col + " >= ? AND " + col + " <= ?)")
		w.args = append(w.args, parts[0], parts[1])
	case "in":
		parts := strings.Split(c.Value, ",")
		w.sb.WriteString(col + " IN (" + database.Placeholders(len(parts)) + ")")
		for _, p := range parts {
			w.args = append(w.args, p)
		}
	case "is":
		w.sb.WriteString(col + " IS NULL")
	default:
		w.sb.WriteString(alwaysTrue)
	}
}

func (w *conditionWriter) like(col, pattern string) {
	w.sb.WriteString(col + " LIKE ?" + w.d.LikeEscape())
	w.args = append(w.args, pattern)
}

func (w *conditionWriter) compare(col, op, value string) {
	w.sb.WriteString(col + " " + op + " ?")
	w.args = append(w.args, value)
}

func (w *conditionWriter) VisitSpatial(c condition.SpatialCondition) {
	function, ok := spatialFunctions[c.Operator]
	if !ok {
		w.sb.WriteString(alwaysTrue)
		return
	}
	withArgument := !unarySpatial[c.Operator]
	w.sb.WriteString(w.d.SpatialPredicate(function, database.QuoteIdent(c.Column.Name), withArgument))
	if withArgument {
		w.args = append(w.args, c.Value)
	}
}
