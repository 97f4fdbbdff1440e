package database

import (
	"github.com/Masterminds/squirrel"

	"github.com/koustreak/restdb/internal/errs"
)

// Dialect is everything that differs between the supported engines. Each
// driver package implements it once; nothing above this package switches
// on the driver name.
//
// Identifiers passed to Dialect methods are raw (unquoted) names unless the
// parameter is called quoted*. SQL returned by a Dialect uses ? placeholders
// which DB rewrites with Placeholders before execution.
type Dialect interface {
	Driver() Driver

	// Placeholders is the bind-parameter format of the engine.
	Placeholders() squirrel.PlaceholderFormat

	// Classify maps a native driver error onto an error kind. It is consulted
	// after the engine-independent checks in DB have run.
	Classify(err error) errs.ErrKind

	QueryDialect
	ReflectionDialect
	DefinitionDialect
}

// QueryDialect covers the engine specifics of record statements.
type QueryDialect interface {
	// OffsetLimit returns the pagination clause with a leading space, or ""
	// when offset or limit is negative.
	OffsetLimit(offset, limit int) string

	// InsertOutput is placed between the column list and VALUES.
	InsertOutput(quotedPK string) string
	// InsertReturning is appended after VALUES.
	InsertReturning(quotedPK string) string
	// LastInsertIDQuery fetches the generated key when the insert itself
	// cannot return it. Empty when InsertOutput/InsertReturning do.
	LastInsertIDQuery() string

	// FalseLiteral is a predicate that never holds.
	FalseLiteral() string
	// LikeEscape is appended to every LIKE predicate.
	LikeEscape() string

	// Bind wrappers for values of the portable boolean, binary and geometry types.
	BooleanParam() string
	BinaryParam() string
	GeometryParam() string

	// Select wrappers for binary and geometry columns. Both alias the result
	// back to the column name.
	BinarySelect(quotedColumn string) string
	GeometrySelect(quotedColumn string) string

	// SpatialPredicate renders an OGC predicate function (Contains, IsValid, ...)
	// on quotedColumn. withArgument adds a bound WKT geometry argument.
	SpatialPredicate(function, quotedColumn string, withArgument bool) string
}

// ReflectionDialect covers catalog access and native type names.
type ReflectionDialect interface {
	// TablesQuery selects TABLE_NAME and TABLE_TYPE.
	TablesQuery(database string) (string, []any)
	// ColumnsQuery selects COLUMN_NAME, IS_NULLABLE, DATA_TYPE,
	// CHARACTER_MAXIMUM_LENGTH, NUMERIC_PRECISION, NUMERIC_SCALE and COLUMN_TYPE.
	ColumnsQuery(database, table string) (string, []any)
	// PrimaryKeysQuery selects CONSTRAINT_NAME and COLUMN_NAME.
	PrimaryKeysQuery(database, table string) (string, []any)
	// ForeignKeysQuery selects CONSTRAINT_NAME, COLUMN_NAME and REFERENCED_TABLE_NAME.
	ForeignKeysQuery(database, table string) (string, []any)

	// TableKind maps a raw TABLE_TYPE to "table" or "view"; "" for anything else.
	TableKind(rawType string) string
	// IgnoredTables are engine or extension bookkeeping tables never exposed.
	IgnoredTables() []string

	// ColumnType refines the catalog's DATA_TYPE using COLUMN_TYPE. ok is
	// false when the engine reports everything in DATA_TYPE already.
	ColumnType(columnType string) (dataType string, precision, scale int, ok bool)

	// NativeTypes maps native type names (optionally with "(size)") onto
	// portable type names, ahead of the engine-independent simplifications.
	NativeTypes() map[string]string
	// PortableTypes maps portable type names onto native ones for DDL.
	PortableTypes() map[string]string
}

// DefinitionDialect covers DDL fragments. columnType arguments are complete
// column definitions as produced by the DDL builder.
type DefinitionDialect interface {
	// SerialType replaces the column type of a new auto-increment primary key.
	// Empty when the engine has no such pseudo type.
	SerialType() string
	// NullClause renders nullability; update is true inside ALTER statements.
	NullClause(nullable, update bool) string
	// AutoIncrementClause is appended to the type of a primary key column.
	AutoIncrementClause(update bool) string

	AddColumnKeyword() string
	// DropCascade is appended to DROP TABLE and DROP COLUMN.
	DropCascade() string

	RenameTable(table, newTable string) Statement
	RenameColumn(table, column, newColumn, columnType string) Statement
	RetypeColumn(table, column, newColumn, columnType string) Statement
	SetNullable(table, column, columnType string, nullable bool) Statement

	AddPrimaryKey(table, column string) Statement
	DropPrimaryKey(table, column string) Statement
	DropForeignKey(table, column string) Statement

	// CreateSequence / DropSequence manage the sequence backing an emulated
	// auto-increment column. Nil when the engine needs none.
	CreateSequence(table, column string) []Statement
	DropSequence(table, column string) []Statement
	// RestartSequence positions the sequence after the current maximum.
	// probe, when non-empty, must be run first and its single value passed to build.
	RestartSequence(table, column string) (probe string, build func(next any) []Statement)
	// SetAutoIncrement / DropAutoIncrement attach or detach the column default
	// that draws from the sequence.
	SetAutoIncrement(table, column, columnType string) Statement
	DropAutoIncrement(table, column, columnType string) Statement
}

// Statement is one SQL statement with its bound arguments.
type Statement struct {
	SQL  string
	Args []any
}

// Stmt is shorthand for a Statement literal.
func Stmt(sql string, args ...any) Statement {
	return Statement{SQL: sql, Args: args}
}

// Constraint and sequence names are deterministic so that drop statements
// can reference what add statements created.

func PrimaryKeyName(table string) string                { return table + "_pkey" }
func ForeignKeyName(table, column string) string        { return table + "_" + column + "_fkey" }
func SequenceName(table, column string) string          { return table + "_" + column + "_seq" }
func DefaultConstraintName(table, column string) string { return table + "_" + column + "_def" }
