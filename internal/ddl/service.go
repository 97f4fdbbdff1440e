package ddl

import (
	"context"
	"fmt"

	"github.com/koustreak/restdb/internal/database"
	"github.com/koustreak/restdb/internal/errs"
	"github.com/koustreak/restdb/internal/logger"
	"github.com/koustreak/restdb/internal/schema"
)

// Snapshot is the schema as reflected right after a change.
type Snapshot struct {
	Database *schema.Database `json:"database"`
	// Table is the changed table; nil when it was removed.
	Table *schema.Table `json:"table,omitempty"`
}

// ColumnChanges lists the properties of a column to change. Nil fields
// are left as they are.
type ColumnChanges struct {
	Name      *string `json:"name,omitempty"`
	Type      *string `json:"type,omitempty"`
	Length    *int    `json:"length,omitempty"`
	Precision *int    `json:"precision,omitempty"`
	Scale     *int    `json:"scale,omitempty"`
	Nullable  *bool   `json:"nullable,omitempty"`
	Pk        *bool   `json:"pk,omitempty"`
	Fk        *string `json:"fk,omitempty"`
}

// Apply returns col with the changes applied.
func (c ColumnChanges) Apply(col schema.Column) schema.Column {
	if c.Name != nil {
		col.Name = *c.Name
	}
	if c.Type != nil {
		col.Type = *c.Type
	}
	if c.Length != nil {
		col.Length = *c.Length
	}
	if c.Precision != nil {
		col.Precision = *c.Precision
	}
	if c.Scale != nil {
		col.Scale = *c.Scale
	}
	if c.Nullable != nil {
		col.Nullable = *c.Nullable
	}
	if c.Pk != nil {
		col.Pk = *c.Pk
	}
	if c.Fk != nil {
		col.Fk = *c.Fk
	}
	return col.Normalized()
}

// Service applies structural changes. Each change is a series of statements
// run one by one without a transaction: when one fails the earlier ones stay
// applied, the error names the failing step and the returned Snapshot still
// shows the schema as it now is.
type Service struct {
	db      *database.DB
	schema  *schema.Service
	builder *Builder
	log     *logger.Logger
}

func NewService(db *database.DB, s *schema.Service) *Service {
	return &Service{
		db:      db,
		schema:  s,
		builder: NewBuilder(db.Dialect()),
		log:     db.Logger(),
	}
}

// Builder is the statement builder of the connected engine.
func (s *Service) Builder() *Builder { return s.builder }

// --- tables ---

// AddTable creates table with its keys.
func (s *Service) AddTable(ctx context.Context, table *schema.Table) (*Snapshot, error) {
	db, err := s.schema.Database(ctx)
	if err != nil {
		return nil, err
	}
	if db.HasTable(table.Name()) {
		return nil, errs.Coded(errs.CodeTableAlreadyExists, table.Name())
	}
	if err := validateColumns(table.Columns()...); err != nil {
		return nil, err
	}
	refPks := make(map[string]string)
	for _, ref := range table.Fks() {
		if ref == table.Name() && table.HasPk() {
			refPks[ref] = table.Pk().Name
			continue
		}
		pk, err := s.referencedKey(ctx, ref)
		if err != nil {
			return nil, err
		}
		refPks[ref] = pk
	}

	st := s.builder.CreateTable(table, func(t string) string { return refPks[t] })
	err = s.run(ctx, "add table "+table.Name(), step("create", st))
	return s.refreshTables(ctx, table.Name(), err)
}

// RemoveTable drops table along with whatever depends on it.
func (s *Service) RemoveTable(ctx context.Context, table string) (*Snapshot, error) {
	if _, err := s.table(ctx, table); err != nil {
		return nil, err
	}
	err := s.run(ctx, "remove table "+table, step("drop", s.builder.DropTable(table)))
	s.schema.Forget(table)
	return s.refreshTables(ctx, "", err)
}

// RenameTable renames table to newName.
func (s *Service) RenameTable(ctx context.Context, table, newName string) (*Snapshot, error) {
	if _, err := s.table(ctx, table); err != nil {
		return nil, err
	}
	if newName == table {
		return s.refreshTables(ctx, table, nil)
	}
	db, err := s.schema.Database(ctx)
	if err != nil {
		return nil, err
	}
	if db.HasTable(newName) {
		return nil, errs.Coded(errs.CodeTableAlreadyExists, newName)
	}
	err = s.run(ctx, "rename table "+table, step("rename", s.builder.RenameTable(table, newName)))
	s.schema.Forget(table)
	return s.refreshTables(ctx, newName, err)
}

// --- columns ---

// AddColumn adds col to table, then its foreign and primary key.
func (s *Service) AddColumn(ctx context.Context, table string, col schema.Column) (*Snapshot, error) {
	t, err := s.writableTable(ctx, table)
	if err != nil {
		return nil, err
	}
	col = col.Normalized()
	if t.HasColumn(col.Name) {
		return nil, errs.Coded(errs.CodeColumnAlreadyExists, col.Name)
	}
	if err := validateColumns(&col); err != nil {
		return nil, err
	}

	steps := []Step{step("add", s.builder.AddColumn(table, col))}
	if col.Fk != "" {
		fk, err := s.addForeignKey(ctx, table, col)
		if err != nil {
			return nil, err
		}
		steps = append(steps, fk)
	}
	if col.Pk {
		steps = append(steps, s.builder.AddPrimaryKey(table, col)...)
	}
	err = s.run(ctx, "add column "+table+"."+col.Name, steps...)
	return s.refreshTable(ctx, table, err)
}

// RemoveColumn drops its keys first, then the column.
func (s *Service) RemoveColumn(ctx context.Context, table, column string) (*Snapshot, error) {
	t, err := s.writableTable(ctx, table)
	if err != nil {
		return nil, err
	}
	col := t.Column(column)
	if col == nil {
		return nil, errs.Coded(errs.CodeColumnNotFound, column)
	}

	var steps []Step
	if col.Pk {
		steps = append(steps, s.builder.DropPrimaryKey(table, *col)...)
	}
	if col.Fk != "" {
		steps = append(steps, step("drop foreign key", s.builder.DropForeignKey(table, column)))
	}
	steps = append(steps, step("drop", s.builder.DropColumn(table, column)))
	err = s.run(ctx, "remove column "+table+"."+column, steps...)
	return s.refreshTable(ctx, table, err)
}

// UpdateColumn applies changes to column. Keys on the column are dropped
// and recreated around the rename, retype and nullability changes; giving
// the column the primary key first drops it from the column holding it.
func (s *Service) UpdateColumn(ctx context.Context, table, column string, changes ColumnChanges) (*Snapshot, error) {
	t, err := s.writableTable(ctx, table)
	if err != nil {
		return nil, err
	}
	old := t.Column(column)
	if old == nil {
		return nil, errs.Coded(errs.CodeColumnNotFound, column)
	}
	updated := changes.Apply(*old)
	if updated.Name != column && t.HasColumn(updated.Name) {
		return nil, errs.Coded(errs.CodeColumnAlreadyExists, updated.Name)
	}
	if err := validateColumns(&updated); err != nil {
		return nil, err
	}

	var steps []Step
	if updated.Pk && !old.Pk && t.HasPk() {
		steps = append(steps, s.builder.DropPrimaryKey(table, *t.Pk())...)
	}
	if old.Pk {
		steps = append(steps, s.builder.DropPrimaryKey(table, *old)...)
	}
	if old.Fk != "" {
		steps = append(steps, step("drop foreign key", s.builder.DropForeignKey(table, column)))
	}

	plain := updated
	plain.Pk, plain.Fk = false, ""
	if plain.Name != old.Name {
		steps = append(steps, step("rename", s.builder.RenameColumn(table, column, plain)))
	}
	if plain.Type != old.Type || plain.Length != old.Length || plain.Precision != old.Precision || plain.Scale != old.Scale {
		steps = append(steps, step("retype", s.builder.RetypeColumn(table, plain.Name, plain)))
	}
	if plain.Nullable != old.Nullable {
		steps = append(steps, step("nullable", s.builder.SetNullable(table, plain)))
	}

	if updated.Fk != "" {
		fk, err := s.addForeignKey(ctx, table, updated)
		if err != nil {
			return nil, err
		}
		steps = append(steps, fk)
	}
	if updated.Pk {
		steps = append(steps, s.builder.AddPrimaryKey(table, updated)...)
	}
	err = s.run(ctx, "update column "+table+"."+column, steps...)
	return s.refreshTable(ctx, table, err)
}

// --- helpers ---

func (s *Service) table(ctx context.Context, name string) (*schema.Table, error) {
	return s.schema.Table(ctx, name)
}

// writableTable is table, refusing views.
func (s *Service) writableTable(ctx context.Context, name string) (*schema.Table, error) {
	t, err := s.table(ctx, name)
	if err != nil {
		return nil, err
	}
	if t.Kind() != schema.KindTable {
		return nil, errs.Coded(errs.CodeOperationNotSupported, "alter view "+name)
	}
	return t, nil
}

func (s *Service) referencedKey(ctx context.Context, table string) (string, error) {
	ref, err := s.table(ctx, table)
	if err != nil {
		return "", err
	}
	if !ref.HasPk() {
		return "", errs.Coded(errs.CodeInputValidationFailed, table).
			WithDetails(map[string]any{"fk": "referenced table has no primary key"})
	}
	return ref.Pk().Name, nil
}

func (s *Service) addForeignKey(ctx context.Context, table string, col schema.Column) (Step, error) {
	pk, err := s.referencedKey(ctx, col.Fk)
	if err != nil {
		return Step{}, err
	}
	return step("add foreign key", s.builder.AddForeignKey(table, col.Name, col.Fk, pk)), nil
}

func validateColumns(cols ...*schema.Column) error {
	details := make(map[string]any)
	for _, c := range cols {
		switch {
		case c.Name == "":
			details["name"] = "column name is empty"
		case !schema.IsValidType(c.Type):
			details[c.Name] = "unknown type " + c.Type
		}
	}
	if len(details) > 0 {
		return errs.Coded(errs.CodeInputValidationFailed, "columns").WithDetails(details)
	}
	return nil
}

// run executes steps in order and stops at the first failure.
func (s *Service) run(ctx context.Context, change string, steps ...Step) error {
	log := s.log.With().Str("change", change).Logger()
	for _, st := range steps {
		statements := st.Statements
		if st.Build != nil {
			var v any
			if st.Probe != "" {
				var err error
				if v, err = s.db.QueryValue(ctx, st.Probe); err != nil {
					return fmt.Errorf("%s: step %s: %w", change, st.Name, err)
				}
			}
			statements = st.Build(v)
		}
		for _, stmt := range statements {
			log.With().Str("step", st.Name).Str("sql", stmt.SQL).Logger().Info("executing ddl")
			if _, err := s.db.ExecStatement(ctx, stmt); err != nil {
				return fmt.Errorf("%s: step %s: %w", change, st.Name, err)
			}
		}
	}
	return nil
}

// refreshTables reflects the table list again and, if it still exists,
// table. A refresh failure is only returned when the change succeeded.
func (s *Service) refreshTables(ctx context.Context, table string, changeErr error) (*Snapshot, error) {
	db, err := s.schema.RefreshTables(ctx)
	if err != nil {
		return nil, firstError(changeErr, err)
	}
	snap := &Snapshot{Database: db}
	if table != "" && db.HasTable(table) {
		if snap.Table, err = s.schema.RefreshTable(ctx, table); err != nil {
			return snap, firstError(changeErr, err)
		}
	}
	return snap, changeErr
}

func (s *Service) refreshTable(ctx context.Context, table string, changeErr error) (*Snapshot, error) {
	db, err := s.schema.Database(ctx)
	if err != nil {
		return nil, firstError(changeErr, err)
	}
	t, err := s.schema.RefreshTable(ctx, table)
	if err != nil {
		return &Snapshot{Database: db}, firstError(changeErr, err)
	}
	return &Snapshot{Database: db, Table: t}, changeErr
}

func firstError(list ...error) error {
	for _, err := range list {
		if err != nil {
			return err
		}
	}
	return nil
}
