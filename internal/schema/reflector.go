package schema

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/koustreak/restdb/internal/database"
)

// Reader discovers the schema of a live database.
type Reader interface {
	// ReadDatabase lists the tables and views that are exposed.
	ReadDatabase(ctx context.Context) (*Database, error)

	// ReadTable reflects one table of the given kind.
	ReadTable(ctx context.Context, name, kind string) (*Table, error)
}

// Reflector implements Reader with the catalog queries of the engine's dialect.
type Reflector struct {
	db      *database.DB
	dialect database.Dialect
	types   *TypeConverter
	name    string
	tables  []string // whitelist, empty means all
}

var _ Reader = (*Reflector)(nil)

// NewReflector reflects the database db is connected to, restricted to the
// tables whitelisted in its config.
func NewReflector(db *database.DB) *Reflector {
	return &Reflector{
		db:      db,
		dialect: db.Dialect(),
		types:   NewTypeConverter(db.Dialect()),
		name:    db.Name(),
		tables:  db.Tables(),
	}
}

// Types is the converter the reflector resolves column types with.
func (r *Reflector) Types() *TypeConverter { return r.types }

func (r *Reflector) ReadDatabase(ctx context.Context) (*Database, error) {
	sql, args := r.dialect.TablesQuery(r.name)
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	ignored := r.dialect.IgnoredTables()
	refs := make([]TableRef, 0, len(rows))
	for _, row := range rows {
		name := database.String(row["TABLE_NAME"])
		kind := r.dialect.TableKind(database.String(row["TABLE_TYPE"]))
		if kind == "" || slices.Contains(ignored, name) {
			continue
		}
		if len(r.tables) > 0 && !slices.Contains(r.tables, name) {
			continue
		}
		refs = append(refs, TableRef{Name: name, Type: kind})
	}
	return NewDatabase(refs), nil
}

func (r *Reflector) ReadTable(ctx context.Context, name, kind string) (*Table, error) {
	columns, err := r.readColumns(ctx, name, kind)
	if err != nil {
		return nil, err
	}

	// Views have no constraints: "id" is taken as key and "<table>_id"
	// columns as references.
	var pk string
	var fks map[string]string
	if kind == KindView {
		pk = "id"
		fks, err = r.viewForeignKeys(ctx, columns)
	} else {
		pk, err = r.primaryKey(ctx, name)
		if err == nil {
			fks, err = r.foreignKeys(ctx, name)
		}
	}
	if err != nil {
		return nil, err
	}

	for i := range columns {
		columns[i].Pk = pk != "" && columns[i].Name == pk
		columns[i].Fk = fks[columns[i].Name]
	}
	return NewTable(name, kind, columns), nil
}

func (r *Reflector) readColumns(ctx context.Context, table, kind string) ([]Column, error) {
	sql, args := r.dialect.ColumnsQuery(r.name, table)
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}

	columns := make([]Column, 0, len(rows))
	for _, row := range rows {
		dataType := database.String(row["DATA_TYPE"])
		length := database.Int(row["CHARACTER_MAXIMUM_LENGTH"])
		precision := database.Int(row["NUMERIC_PRECISION"])
		scale := database.Int(row["NUMERIC_SCALE"])

		if t, p, s, ok := r.dialect.ColumnType(database.String(row["COLUMN_TYPE"])); ok {
			dataType = t
			if length == 0 {
				precision, scale = p, s
			}
		}
		if length < 0 {
			length = 0
		}

		size := length
		if size == 0 {
			size = precision
		}
		typ, err := r.types.ToPortable(dataType, size)
		if err != nil {
			return nil, err
		}

		columns = append(columns, Column{
			Name:      database.String(row["COLUMN_NAME"]),
			Type:      typ,
			Length:    length,
			Precision: precision,
			Scale:     scale,
			Nullable:  kind != KindView && isNullable(row["IS_NULLABLE"]),
		})
	}
	return columns, nil
}

func isNullable(v any) bool {
	switch strings.ToUpper(database.String(v)) {
	case "YES", "TRUE", "1":
		return true
	}
	return false
}

// primaryKey returns the key column, or "" for no key or a composite key.
func (r *Reflector) primaryKey(ctx context.Context, table string) (string, error) {
	sql, args := r.dialect.PrimaryKeysQuery(r.name, table)
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return "", fmt.Errorf("list primary key of %s: %w", table, err)
	}
	if len(rows) != 1 {
		return "", nil
	}
	return database.String(rows[0]["COLUMN_NAME"]), nil
}

// foreignKeys maps column to referenced table for single column constraints.
func (r *Reflector) foreignKeys(ctx context.Context, table string) (map[string]string, error) {
	sql, args := r.dialect.ForeignKeysQuery(r.name, table)
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list foreign keys of %s: %w", table, err)
	}

	perConstraint := make(map[string]int, len(rows))
	for _, row := range rows {
		perConstraint[database.String(row["CONSTRAINT_NAME"])]++
	}

	fks := make(map[string]string, len(rows))
	for _, row := range rows {
		if perConstraint[database.String(row["CONSTRAINT_NAME"])] != 1 {
			continue
		}
		fks[database.String(row["COLUMN_NAME"])] = database.String(row["REFERENCED_TABLE_NAME"])
	}
	return fks, nil
}

func (r *Reflector) viewForeignKeys(ctx context.Context, columns []Column) (map[string]string, error) {
	var candidates []string
	for _, c := range columns {
		if strings.HasSuffix(c.Name, "_id") {
			candidates = append(candidates, c.Name)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	db, err := r.ReadDatabase(ctx)
	if err != nil {
		return nil, err
	}
	fks := make(map[string]string)
	for _, col := range candidates {
		for _, table := range db.TableNames() {
			if strings.HasSuffix(col, table+"_id") {
				fks[col] = table
			}
		}
	}
	return fks, nil
}
