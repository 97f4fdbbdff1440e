package mysql

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/Masterminds/squirrel"

	"github.com/koustreak/restdb/internal/database"
)

var q = database.QuoteIdent

// Dialect implements database.Dialect for MySQL.
type Dialect struct{}

var _ database.Dialect = Dialect{}

func (Dialect) Driver() database.Driver { return database.DriverMySQL }

func (Dialect) Placeholders() squirrel.PlaceholderFormat { return squirrel.Question }

// --- records ---

func (Dialect) OffsetLimit(offset, limit int) string {
	if limit < 0 || offset < 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d, %d", offset, limit)
}

func (Dialect) InsertOutput(string) string    { return "" }
func (Dialect) InsertReturning(string) string { return "" }
func (Dialect) LastInsertIDQuery() string     { return "SELECT LAST_INSERT_ID()" }

func (Dialect) FalseLiteral() string { return "FALSE" }
func (Dialect) LikeEscape() string   { return "" }

func (Dialect) BooleanParam() string  { return "IFNULL(IF(?,TRUE,FALSE),NULL)" }
func (Dialect) BinaryParam() string   { return "FROM_BASE64(?)" }
func (Dialect) GeometryParam() string { return "ST_GeomFromText(?)" }

func (Dialect) BinarySelect(col string) string {
	return "TO_BASE64(" + col + ") as " + col
}

func (Dialect) GeometrySelect(col string) string {
	return "ST_AsText(" + col + ") as " + col
}

func (Dialect) SpatialPredicate(function, col string, withArgument bool) string {
	if withArgument {
		return "ST_" + function + "(" + col + ", ST_GeomFromText(?))=TRUE"
	}
	return "ST_" + function + "(" + col + ")=TRUE"
}

// --- reflection ---

func (Dialect) TablesQuery(db string) (string, []any) {
	const sql = `SELECT "TABLE_NAME", "TABLE_TYPE"
		FROM "INFORMATION_SCHEMA"."TABLES"
		WHERE "TABLE_TYPE" IN ('BASE TABLE', 'VIEW')
		  AND "TABLE_SCHEMA" = ?
		ORDER BY BINARY "TABLE_NAME"`
	return sql, []any{db}
}

func (Dialect) ColumnsQuery(db, table string) (string, []any) {
	const sql = `SELECT "COLUMN_NAME", "IS_NULLABLE", "DATA_TYPE",
		       "CHARACTER_MAXIMUM_LENGTH", "NUMERIC_PRECISION", "NUMERIC_SCALE", "COLUMN_TYPE"
		FROM "INFORMATION_SCHEMA"."COLUMNS"
		WHERE "TABLE_NAME" = ? AND "TABLE_SCHEMA" = ?
		ORDER BY "ORDINAL_POSITION"`
	return sql, []any{table, db}
}

func (Dialect) PrimaryKeysQuery(db, table string) (string, []any) {
	const sql = `SELECT "CONSTRAINT_NAME", "COLUMN_NAME"
		FROM "INFORMATION_SCHEMA"."KEY_COLUMN_USAGE"
		WHERE "CONSTRAINT_NAME" = 'PRIMARY' AND "TABLE_NAME" = ? AND "TABLE_SCHEMA" = ?`
	return sql, []any{table, db}
}

func (Dialect) ForeignKeysQuery(db, table string) (string, []any) {
	const sql = `SELECT "CONSTRAINT_NAME", "COLUMN_NAME", "REFERENCED_TABLE_NAME"
		FROM "INFORMATION_SCHEMA"."KEY_COLUMN_USAGE"
		WHERE "REFERENCED_TABLE_NAME" IS NOT NULL AND "TABLE_NAME" = ? AND "TABLE_SCHEMA" = ?`
	return sql, []any{table, db}
}

func (Dialect) TableKind(raw string) string {
	switch raw {
	case "BASE TABLE":
		return "table"
	case "VIEW":
		return "view"
	}
	return ""
}

func (Dialect) IgnoredTables() []string { return nil }

// columnTypeRe splits COLUMN_TYPE such as "decimal(10,2)" or "tinyint(1) unsigned".
var columnTypeRe = regexp.MustCompile(`^([a-z]+)(\(([0-9]+)(,([0-9]+))?\))?`)

// ColumnType uses COLUMN_TYPE because DATA_TYPE loses the display width
// that distinguishes tinyint(1) booleans.
func (Dialect) ColumnType(columnType string) (string, int, int, bool) {
	m := columnTypeRe.FindStringSubmatch(columnType)
	if m == nil {
		return "", 0, 0, false
	}
	precision, _ := strconv.Atoi(m[3])
	scale, _ := strconv.Atoi(m[5])
	return m[1], precision, scale, true
}

var nativeTypes = map[string]string{
	"tinyint(1)":      "boolean",
	"bit(1)":          "boolean",
	"tinyblob":        "blob",
	"mediumblob":      "blob",
	"longblob":        "blob",
	"tinytext":        "clob",
	"mediumtext":      "clob",
	"longtext":        "clob",
	"text":            "clob",
	"mediumint":       "integer",
	"int":             "integer",
	"polygon":         "geometry",
	"point":           "geometry",
	"linestring":      "geometry",
	"multipoint":      "geometry",
	"multilinestring": "geometry",
	"multipolygon":    "geometry",
	"datetime":        "timestamp",
	"year":            "integer",
	"enum":            "varchar",
	"set":             "varchar",
	"json":            "clob",
}

var portableTypes = map[string]string{
	"clob":      "longtext",
	"boolean":   "tinyint(1)",
	"blob":      "longblob",
	"timestamp": "datetime",
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

func (Dialect) AutoIncrementClause(bool) string { return " AUTO_INCREMENT" }
func (Dialect) AddColumnKeyword() string        { return "ADD COLUMN" }
func (Dialect) DropCascade() string             { return " CASCADE" }

func (Dialect) RenameTable(table, newTable string) database.Statement {
	return database.Stmt("RENAME TABLE " + q(table) + " TO " + q(newTable))
}

func (Dialect) RenameColumn(table, column, newColumn, columnType string) database.Statement {
	return database.Stmt("ALTER TABLE " + q(table) + " CHANGE " + q(column) + " " + q(newColumn) + " " + columnType)
}

func (d Dialect) RetypeColumn(table, column, newColumn, columnType string) database.Statement {
	return d.RenameColumn(table, column, newColumn, columnType)
}

func (d Dialect) SetNullable(table, column, columnType string, _ bool) database.Statement {
	return d.RenameColumn(table, column, column, columnType)
}

func (Dialect) AddPrimaryKey(table, column string) database.Statement {
	return database.Stmt("ALTER TABLE " + q(table) + " ADD PRIMARY KEY (" + q(column) + ")")
}

func (Dialect) DropPrimaryKey(table, _ string) database.Statement {
	return database.Stmt("ALTER TABLE " + q(table) + " DROP PRIMARY KEY")
}

func (Dialect) DropForeignKey(table, column string) database.Statement {
	return database.Stmt("ALTER TABLE " + q(table) + " DROP FOREIGN KEY " + q(database.ForeignKeyName(table, column)))
}

// MySQL has native AUTO_INCREMENT, so no sequences are involved.

func (Dialect) CreateSequence(string, string) []database.Statement { return nil }
func (Dialect) DropSequence(string, string) []database.Statement   { return nil }

func (Dialect) RestartSequence(string, string) (string, func(any) []database.Statement) {
	return "", func(any) []database.Statement { return nil }
}

func (Dialect) SetAutoIncrement(table, column, columnType string) database.Statement {
	return database.Stmt("ALTER TABLE " + q(table) + " MODIFY " + q(column) + " " + columnType)
}

func (d Dialect) DropAutoIncrement(table, column, columnType string) database.Statement {
	return d.SetAutoIncrement(table, column, columnType)
}
