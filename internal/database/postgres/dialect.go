package postgres

import (
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/koustreak/restdb/internal/database"
)

var q = database.QuoteIdent

// Dialect implements database.Dialect for PostgreSQL (with PostGIS for
// geometry columns).
type Dialect struct{}

var _ database.Dialect = Dialect{}

func (Dialect) Driver() database.Driver { return database.DriverPostgres }

func (Dialect) Placeholders() squirrel.PlaceholderFormat { return squirrel.Dollar }

// --- records ---

func (Dialect) OffsetLimit(offset, limit int) string {
	if limit < 0 || offset < 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
}

func (Dialect) InsertOutput(string) string { return "" }

func (Dialect) InsertReturning(pk string) string {
	if pk == "" {
		return ""
	}
	return " RETURNING " + pk
}

func (Dialect) LastInsertIDQuery() string { return "" }

func (Dialect) FalseLiteral() string { return "FALSE" }
func (Dialect) LikeEscape() string   { return "" }

func (Dialect) BooleanParam() string  { return "?" }
func (Dialect) BinaryParam() string   { return "decode(?, 'base64')" }
func (Dialect) GeometryParam() string { return "ST_GeomFromText(?)" }

func (Dialect) BinarySelect(col string) string {
	return "encode(" + col + "::bytea, 'base64') as " + col
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

// PostgreSQL has no catalog per database: the connection already selects
// one. The database argument is still bound so every engine takes the same
// arguments.

func (Dialect) TablesQuery(db string) (string, []any) {
	const sql = `SELECT c.relname AS "TABLE_NAME", c.relkind::text AS "TABLE_TYPE"
		FROM pg_catalog.pg_class c
		LEFT JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('r', 'v')
		  AND n.nspname <> 'pg_catalog'
		  AND n.nspname <> 'information_schema'
		  AND n.nspname !~ '^pg_toast'
		  AND pg_catalog.pg_table_is_visible(c.oid)
		  AND '' <> ?
		ORDER BY "TABLE_NAME"`
	return sql, []any{db}
}

func (Dialect) ColumnsQuery(db, table string) (string, []any) {
	const sql = `SELECT a.attname AS "COLUMN_NAME",
		       CASE WHEN a.attnotnull THEN 'NO' ELSE 'YES' END AS "IS_NULLABLE",
		       pg_catalog.format_type(a.atttypid, -1) AS "DATA_TYPE",
		       CASE WHEN a.atttypid IN (1042, 1043) AND a.atttypmod >= 4 THEN a.atttypmod - 4 END AS "CHARACTER_MAXIMUM_LENGTH",
		       CASE WHEN a.atttypid = 1700 AND a.atttypmod >= 4 THEN ((a.atttypmod - 4) >> 16) & 65535 END AS "NUMERIC_PRECISION",
		       CASE WHEN a.atttypid = 1700 AND a.atttypmod >= 4 THEN (a.atttypmod - 4) & 65535 END AS "NUMERIC_SCALE",
		       '' AS "COLUMN_TYPE"
		FROM pg_attribute a
		JOIN pg_class pgc ON pgc.oid = a.attrelid
		WHERE pgc.relname = ? AND '' <> ?
		  AND pgc.relkind IN ('r', 'v')
		  AND a.attnum > 0 AND NOT a.attisdropped
		ORDER BY a.attnum`
	return sql, []any{table, db}
}

func (Dialect) PrimaryKeysQuery(db, table string) (string, []any) {
	const sql = `SELECT c.conname AS "CONSTRAINT_NAME", a.attname AS "COLUMN_NAME"
		FROM pg_constraint c
		JOIN pg_class pgc ON pgc.oid = c.conrelid
		JOIN pg_attribute a ON a.attrelid = c.conrelid AND a.attnum = ANY (c.conkey)
		WHERE pgc.relname = ? AND '' <> ? AND c.contype = 'p'`
	return sql, []any{table, db}
}

func (Dialect) ForeignKeysQuery(db, table string) (string, []any) {
	const sql = `SELECT c.conname AS "CONSTRAINT_NAME", a.attname AS "COLUMN_NAME",
		       ref.relname AS "REFERENCED_TABLE_NAME"
		FROM pg_constraint c
		JOIN pg_class pgc ON pgc.oid = c.conrelid
		JOIN pg_class ref ON ref.oid = c.confrelid
		JOIN pg_attribute a ON a.attrelid = c.conrelid AND a.attnum = ANY (c.conkey)
		WHERE pgc.relname = ? AND '' <> ? AND c.contype = 'f'`
	return sql, []any{table, db}
}

func (Dialect) TableKind(raw string) string {
	switch raw {
	case "r":
		return "table"
	case "v":
		return "view"
	}
	return ""
}

// IgnoredTables are the PostGIS bookkeeping tables and views.
func (Dialect) IgnoredTables() []string {
	return []string{"spatial_ref_sys", "raster_columns", "raster_overviews", "geography_columns", "geometry_columns"}
}

func (Dialect) ColumnType(string) (string, int, int, bool) { return "", 0, 0, false }

var nativeTypes = map[string]string{
	"bigserial":                   "bigint",
	"bit varying":                 "bit",
	"box":                         "geometry",
	"bytea":                       "blob",
	"bpchar":                      "char",
	"character varying":           "varchar",
	"character":                   "char",
	"cidr":                        "varchar",
	"circle":                      "geometry",
	"double precision":            "double",
	"inet":                        "integer",
	"json":                        "clob",
	"jsonb":                       "clob",
	"line":                        "geometry",
	"lseg":                        "geometry",
	"macaddr":                     "varchar",
	"money":                       "decimal",
	"path":                        "geometry",
	"point":                       "geometry",
	"polygon":                     "geometry",
	"real":                        "float",
	"serial":                      "integer",
	"text":                        "clob",
	"time without time zone":      "time",
	"time with time zone":         "time_with_timezone",
	"timestamp without time zone": "timestamp",
	"timestamp with time zone":    "timestamp_with_timezone",
	"uuid":                        "char",
	"xml":                         "clob",
}

var portableTypes = map[string]string{
	"clob":      "text",
	"blob":      "bytea",
	"float":     "real",
	"double":    "double precision",
	"varbinary": "bytea",
}

func (Dialect) NativeTypes() map[string]string   { return nativeTypes }
func (Dialect) PortableTypes() map[string]string { return portableTypes }

// --- definitions ---

func (Dialect) SerialType() string { return "serial" }

// NullClause is empty inside ALTER COLUMN ... TYPE, where PostgreSQL does
// not accept nullability; SetNullable handles it instead.
func (Dialect) NullClause(nullable, update bool) string {
	switch {
	case update:
		return ""
	case nullable:
		return " NULL"
	default:
		return " NOT NULL"
	}
}

func (Dialect) AutoIncrementClause(bool) string { return "" }
func (Dialect) AddColumnKeyword() string        { return "ADD COLUMN" }
func (Dialect) DropCascade() string             { return " CASCADE" }

func (Dialect) RenameTable(table, newTable string) database.Statement {
	return database.Stmt("ALTER TABLE " + q(table) + " RENAME TO " + q(newTable))
}

func (Dialect) RenameColumn(table, column, newColumn, _ string) database.Statement {
	return database.Stmt("ALTER TABLE " + q(table) + " RENAME COLUMN " + q(column) + " TO " + q(newColumn))
}

func (Dialect) RetypeColumn(table, _, newColumn, columnType string) database.Statement {
	return database.Stmt("ALTER TABLE " + q(table) + " ALTER COLUMN " + q(newColumn) + " TYPE " + columnType)
}

func (Dialect) SetNullable(table, column, _ string, nullable bool) database.Statement {
	action := "SET NOT NULL"
	if nullable {
		action = "DROP NOT NULL"
	}
	return database.Stmt("ALTER TABLE " + q(table) + " ALTER COLUMN " + q(column) + " " + action)
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
		database.Stmt("CREATE SEQUENCE " + q(database.SequenceName(table, column)) + " OWNED BY " + q(table) + "." + q(column)),
	}
}

func (Dialect) DropSequence(table, column string) []database.Statement {
	return []database.Statement{
		database.Stmt("DROP SEQUENCE " + q(database.SequenceName(table, column))),
	}
}

func (Dialect) RestartSequence(table, column string) (string, func(any) []database.Statement) {
	seq := q(database.SequenceName(table, column))
	return "", func(any) []database.Statement {
		return []database.Statement{
			database.Stmt("SELECT setval('" + seq + "', (SELECT max(" + q(column) + ")+1 FROM " + q(table) + "))"),
		}
	}
}

func (Dialect) SetAutoIncrement(table, column, _ string) database.Statement {
	seq := q(database.SequenceName(table, column))
	return database.Stmt("ALTER TABLE " + q(table) + " ALTER COLUMN " + q(column) + " SET DEFAULT nextval('" + seq + "')")
}

func (Dialect) DropAutoIncrement(table, column, _ string) database.Statement {
	return database.Stmt("ALTER TABLE " + q(table) + " ALTER COLUMN " + q(column) + " DROP DEFAULT")
}
