package sqlserver

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/koustreak/restdb/internal/database"
)

var q = database.QuoteIdent

// Dialect implements database.Dialect for SQL Server.
type Dialect struct{}

var _ database.Dialect = Dialect{}

func (Dialect) Driver() database.Driver { return database.DriverSQLServer }

func (Dialect) Placeholders() squirrel.PlaceholderFormat { return squirrel.AtP }

// --- records ---

// OffsetLimit needs an ORDER BY in the statement; record selects always have one.
func (Dialect) OffsetLimit(offset, limit int) string {
	if limit < 0 || offset < 0 {
		return ""
	}
	return fmt.Sprintf(" OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", offset, limit)
}

func (Dialect) InsertOutput(pk string) string {
	if pk == "" {
		return ""
	}
	return " OUTPUT INSERTED." + pk
}

func (Dialect) InsertReturning(string) string { return "" }
func (Dialect) LastInsertIDQuery() string     { return "" }

// SQL Server has no boolean literals.
func (Dialect) FalseLiteral() string { return "1=0" }

// LIKE has no default escape character in SQL Server.
func (Dialect) LikeEscape() string { return ` ESCAPE '\'` }

func (Dialect) BooleanParam() string  { return "?" }
func (Dialect) BinaryParam() string   { return "CONVERT(XML, ?).value('.','varbinary(max)')" }
func (Dialect) GeometryParam() string { return "geometry::STGeomFromText(?,0)" }

func (Dialect) BinarySelect(col string) string {
	return "CASE WHEN " + col + " IS NULL THEN NULL ELSE (SELECT CAST(" + col +
		" as varbinary(max)) FOR XML PATH(''), BINARY BASE64) END as " + col
}

func (Dialect) GeometrySelect(col string) string {
	return "REPLACE(" + col + ".STAsText(),' (','(') as " + col
}

func (Dialect) SpatialPredicate(function, col string, withArgument bool) string {
	if withArgument {
		return col + ".ST" + function + "(geometry::STGeomFromText(?,0))=1"
	}
	return col + ".ST" + function + "()=1"
}

// --- reflection ---

func (Dialect) TablesQuery(db string) (string, []any) {
	const sql = `SELECT o.name AS "TABLE_NAME", o.xtype AS "TABLE_TYPE"
		FROM sysobjects o
		WHERE o.xtype IN ('U', 'V') AND '' <> ?
		ORDER BY "TABLE_NAME"`
	return sql, []any{db}
}

func (Dialect) ColumnsQuery(db, table string) (string, []any) {
	const sql = `SELECT c.name AS "COLUMN_NAME", c.is_nullable AS "IS_NULLABLE", t.name AS "DATA_TYPE",
		       (c.max_length / 2) AS "CHARACTER_MAXIMUM_LENGTH", c.precision AS "NUMERIC_PRECISION",
		       c.scale AS "NUMERIC_SCALE", '' AS "COLUMN_TYPE"
		FROM sys.columns c
		INNER JOIN sys.types t ON c.user_type_id = t.user_type_id
		WHERE c.object_id = OBJECT_ID(?) AND '' <> ?
		ORDER BY c.column_id`
	return sql, []any{table, db}
}

func (Dialect) PrimaryKeysQuery(db, table string) (string, []any) {
	const sql = `SELECT kc.name AS "CONSTRAINT_NAME", c.name AS "COLUMN_NAME"
		FROM sys.key_constraints kc
		INNER JOIN sys.objects t ON t.object_id = kc.parent_object_id
		INNER JOIN sys.index_columns ic ON kc.parent_object_id = ic.object_id AND kc.unique_index_id = ic.index_id
		INNER JOIN sys.columns c ON ic.object_id = c.object_id AND ic.column_id = c.column_id
		WHERE kc.type = 'PK' AND t.object_id = OBJECT_ID(?) AND '' <> ?`
	return sql, []any{table, db}
}

func (Dialect) ForeignKeysQuery(db, table string) (string, []any) {
	const sql = `SELECT f.name AS "CONSTRAINT_NAME",
		       COL_NAME(fc.parent_object_id, fc.parent_column_id) AS "COLUMN_NAME",
		       OBJECT_NAME(f.referenced_object_id) AS "REFERENCED_TABLE_NAME"
		FROM sys.foreign_keys AS f
		INNER JOIN sys.foreign_key_columns AS fc ON f.object_id = fc.constraint_object_id
		WHERE f.parent_object_id = OBJECT_ID(?) AND '' <> ?`
	return sql, []any{table, db}
}

// TableKind reads sysobjects.xtype, a blank padded char(2).
func (Dialect) TableKind(raw string) string {
	switch strings.TrimSpace(raw) {
	case "U":
		return "table"
	case "V":
		return "view"
	}
	return ""
}

func (Dialect) IgnoredTables() []string { return nil }

func (Dialect) ColumnType(string) (string, int, int, bool) { return "", 0, 0, false }

var nativeTypes = map[string]string{
	"varbinary()":      "blob", // varbinary(max)
	"bit":              "boolean",
	"datetime":         "timestamp",
	"datetime2":        "timestamp",
	"float":            "double",
	"image":            "blob",
	"int":              "integer",
	"money":            "decimal",
	"ntext":            "clob",
	"smalldatetime":    "timestamp",
	"smallmoney":       "decimal",
	"text":             "clob",
	"timestamp":        "binary",
	"udt":              "varbinary",
	"uniqueidentifier": "char",
	"xml":              "clob",
}

var portableTypes = map[string]string{
	"boolean":   "bit",
	"varchar":   "nvarchar",
	"clob":      "ntext",
	"blob":      "image",
	"time":      "time(0)",
	"timestamp": "datetime2(0)",
	"double":    "float",
	"float":     "real",
}

func (Dialect) NativeTypes() map[string]string   { return nativeTypes }
func (Dialect) PortableTypes() map[string]string { return portableTypes }

// --- definitions ---

func (Dialect) SerialType() string { return "" }

func (Dialect) NullClause(nullable, _ bool) string {
	if nullable {
		return " NULL"
	}
	return " NOT NULL"
}

// AutoIncrementClause uses IDENTITY on CREATE; an existing column cannot be
// altered into an identity, so ALTER relies on a sequence default instead.
func (Dialect) AutoIncrementClause(update bool) string {
	if update {
		return ""
	}
	return " IDENTITY(1,1)"
}

func (Dialect) AddColumnKeyword() string { return "ADD" }
func (Dialect) DropCascade() string      { return "" }

func (Dialect) RenameTable(table, newTable string) database.Statement {
	return database.Stmt("EXEC sp_rename ?, ?", table, newTable)
}

func (Dialect) RenameColumn(table, column, newColumn, _ string) database.Statement {
	return database.Stmt("EXEC sp_rename ?, ?, 'COLUMN'", table+"."+column, newColumn)
}

func (Dialect) RetypeColumn(table, _, newColumn, columnType string) database.Statement {
	return database.Stmt("ALTER TABLE " + q(table) + " ALTER COLUMN " + q(newColumn) + " " + columnType)
}

func (d Dialect) SetNullable(table, column, columnType string, _ bool) database.Statement {
	return d.RetypeColumn(table, column, column, columnType)
}

func (Dialect) AddPrimaryKey(table, column string) database.Statement {
	return database.Stmt("ALTER TABLE " + q(table) + " ADD CONSTRAINT " + q(database.PrimaryKeyName(table)) + " PRIMARY KEY (" + q(column) + ")")
}

func (Dialect) DropPrimaryKey(table, _ string) database.Statement {
	return database.Stmt("ALTER TABLE " + q(table) + " DROP CONSTRAINT " + q(database.PrimaryKeyName(table)))
}

func (Dialect) DropForeignKey(table, column string) database.Statement {
	return database.Stmt("ALTER TABLE " + q(table) + " DROP CONSTRAINT " + q(database.ForeignKeyName(table, column)))
}

func (Dialect) CreateSequence(table, column string) []database.Statement {
	return []database.Statement{
		database.Stmt("CREATE SEQUENCE " + q(database.SequenceName(table, column))),
	}
}

func (Dialect) DropSequence(table, column string) []database.Statement {
	return []database.Statement{
		database.Stmt("DROP SEQUENCE " + q(database.SequenceName(table, column))),
	}
}

// RestartSequence cannot take the new value from a subquery, so the
// current maximum is probed first.
func (Dialect) RestartSequence(table, column string) (string, func(any) []database.Statement) {
	probe := "SELECT coalesce(max(" + q(column) + "),0)+1 FROM " + q(table)
	return probe, func(next any) []database.Statement {
		return []database.Statement{
			database.Stmt(fmt.Sprintf("ALTER SEQUENCE %s RESTART WITH %d", q(database.SequenceName(table, column)), database.Int(next))),
		}
	}
}

func (Dialect) SetAutoIncrement(table, column, _ string) database.Statement {
	return database.Stmt("ALTER TABLE " + q(table) + " ADD CONSTRAINT " + q(database.DefaultConstraintName(table, column)) +
		" DEFAULT NEXT VALUE FOR " + q(database.SequenceName(table, column)) + " FOR " + q(column))
}

func (Dialect) DropAutoIncrement(table, column, _ string) database.Statement {
	return database.Stmt("ALTER TABLE " + q(table) + " DROP CONSTRAINT " + q(database.DefaultConstraintName(table, column)))
}
