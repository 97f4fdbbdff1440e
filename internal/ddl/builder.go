// Package ddl changes the structure of the reflected database: tables,
// columns and their primary and foreign keys.
//
// Builder renders the statements for one engine. Service checks the
// current schema, runs the statements one at a time and hands back the
// schema as reflected after the change.
//
// Usage:
//
//	svc := ddl.NewService(db, schemaService)
//	snap, err := svc.AddColumn(ctx, "posts", schema.Column{Name: "views", Type: "integer"})
//	if err != nil { ... }
//	fmt.Println(snap.Table.ColumnNames())
package ddl

import (
	"strconv"
	"strings"

	"github.com/koustreak/restdb/internal/database"
	"github.com/koustreak/restdb/internal/schema"
)

var q = database.QuoteIdent

// Step is one named part of a change. When Probe is set it is queried
// first and its value handed to Build; otherwise Build, when set, gets nil.
type Step struct {
	Name       string
	Statements []database.Statement
	Probe      string
	Build      func(any) []database.Statement
}

func step(name string, statements ...database.Statement) Step {
	return Step{Name: name, Statements: statements}
}

// Builder renders DDL for one engine. It does not look at the live schema:
// callers check for existence first.
type Builder struct {
	d     database.DefinitionDialect
	types *schema.TypeConverter
}

func NewBuilder(d database.Dialect) *Builder {
	return &Builder{d: d, types: schema.NewTypeConverter(d)}
}

// canAutoIncrement reports whether a primary key on col draws its values
// from the engine.
func canAutoIncrement(col schema.Column) bool {
	return col.Type == schema.TypeInteger || col.Type == schema.TypeBigint
}

// ColumnType renders the type of col as used after the column name.
// update is true inside ALTER statements.
func (b *Builder) ColumnType(col schema.Column, update bool) string {
	col = col.Normalized()
	auto := col.Pk && canAutoIncrement(col)
	if auto && !update {
		if serial := b.d.SerialType(); serial != "" {
			return serial
		}
	}

	var size string
	switch {
	case col.HasPrecision() && col.HasScale():
		size = "(" + strconv.Itoa(col.Precision) + "," + strconv.Itoa(col.Scale) + ")"
	case col.HasPrecision():
		size = "(" + strconv.Itoa(col.Precision) + ")"
	case col.HasLength():
		size = "(" + strconv.Itoa(col.Length) + ")"
	}

	sql := b.types.ToNative(col.Type) + size + b.d.NullClause(col.Nullable, update)
	if auto {
		sql += b.d.AutoIncrementClause(update)
	}
	return sql
}

// --- tables ---

// CreateTable creates table with its primary and foreign key constraints.
// refPk resolves the primary key column of a referenced table.
func (b *Builder) CreateTable(table *schema.Table, refPk func(table string) string) database.Statement {
	name := table.Name()
	var fields, constraints []string
	for _, col := range table.Columns() {
		fields = append(fields, q(col.Name)+" "+b.ColumnType(*col, false))
		if col.Pk {
			constraints = append(constraints, "CONSTRAINT "+q(database.PrimaryKeyName(name))+" PRIMARY KEY ("+q(col.Name)+")")
		}
		if col.Fk != "" {
			constraints = append(constraints, "CONSTRAINT "+q(database.ForeignKeyName(name, col.Name))+
				" FOREIGN KEY ("+q(col.Name)+") REFERENCES "+q(col.Fk)+" ("+q(refPk(col.Fk))+")")
		}
	}
	return database.Stmt("CREATE TABLE " + q(name) + " (" + strings.Join(append(fields, constraints...), ",") + ")")
}

func (b *Builder) DropTable(table string) database.Statement {
	return database.Stmt("DROP TABLE " + q(table) + b.d.DropCascade())
}

func (b *Builder) RenameTable(table, newTable string) database.Statement {
	return b.d.RenameTable(table, newTable)
}

// --- columns ---

// AddColumn adds col without its keys; see AddPrimaryKey and AddForeignKey.
func (b *Builder) AddColumn(table string, col schema.Column) database.Statement {
	col.Pk = false
	return database.Stmt("ALTER TABLE " + q(table) + " " + b.d.AddColumnKeyword() + " " + q(col.Name) + " " + b.ColumnType(col, false))
}

func (b *Builder) DropColumn(table, column string) database.Statement {
	return database.Stmt("ALTER TABLE " + q(table) + " DROP COLUMN " + q(column) + b.d.DropCascade())
}

// RenameColumn renames column to newCol.Name. Engines that restate the
// definition use the rest of newCol.
func (b *Builder) RenameColumn(table, column string, newCol schema.Column) database.Statement {
	return b.d.RenameColumn(table, column, newCol.Name, b.ColumnType(newCol, true))
}

// RetypeColumn gives column the type and size of newCol.
func (b *Builder) RetypeColumn(table, column string, newCol schema.Column) database.Statement {
	return b.d.RetypeColumn(table, column, newCol.Name, b.ColumnType(newCol, true))
}

func (b *Builder) SetNullable(table string, newCol schema.Column) database.Statement {
	return b.d.SetNullable(table, newCol.Name, b.ColumnType(newCol, true), newCol.Nullable)
}

// --- keys ---

// AddPrimaryKey makes col the primary key. Integer keys also get their
// values from the engine: a sequence positioned past the current maximum
// and a default drawing from it, where the engine needs those.
func (b *Builder) AddPrimaryKey(table string, col schema.Column) []Step {
	col.Pk = true
	steps := []Step{step("constraint", b.d.AddPrimaryKey(table, col.Name))}
	if !canAutoIncrement(col) {
		return steps
	}
	probe, build := b.d.RestartSequence(table, col.Name)
	return append(steps,
		step("sequence", b.d.CreateSequence(table, col.Name)...),
		Step{Name: "restart", Probe: probe, Build: build},
		step("default", b.d.SetAutoIncrement(table, col.Name, b.ColumnType(col, true))),
	)
}

// DropPrimaryKey undoes AddPrimaryKey in reverse order.
func (b *Builder) DropPrimaryKey(table string, col schema.Column) []Step {
	col.Pk = false
	var steps []Step
	if canAutoIncrement(col) {
		steps = append(steps,
			step("default", b.d.DropAutoIncrement(table, col.Name, b.ColumnType(col, true))),
			step("sequence", b.d.DropSequence(table, col.Name)...),
		)
	}
	return append(steps, step("constraint", b.d.DropPrimaryKey(table, col.Name)))
}

// AddForeignKey references refTable(refPk) from column.
func (b *Builder) AddForeignKey(table, column, refTable, refPk string) database.Statement {
	return database.Stmt("ALTER TABLE " + q(table) + " ADD CONSTRAINT " + q(database.ForeignKeyName(table, column)) +
		" FOREIGN KEY (" + q(column) + ") REFERENCES " + q(refTable) + " (" + q(refPk) + ")")
}

func (b *Builder) DropForeignKey(table, column string) database.Statement {
	return b.d.DropForeignKey(table, column)
}
