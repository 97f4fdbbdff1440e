package record

import (
	"context"
	"strconv"
	"strings"

	"github.com/koustreak/restdb/internal/condition"
	"github.com/koustreak/restdb/internal/database"
	"github.com/koustreak/restdb/internal/errs"
	"github.com/koustreak/restdb/internal/schema"
	"github.com/koustreak/restdb/internal/sqlgen"
)

// Store runs single table record statements. Every statement that reads or
// changes existing rows also carries the restrictions of the QueryContext
// in ctx.
type Store struct {
	db        *database.DB
	sql       *sqlgen.Builder
	converter DataConverter
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db, sql: sqlgen.New(db.Dialect())}
}

func (s *Store) scoped(ctx context.Context, table *schema.Table, c condition.Condition) condition.Condition {
	if c == nil {
		c = condition.NoCondition{}
	}
	return c.And(FromContext(ctx).Condition(table))
}

func pkCondition(table *schema.Table, op, value string) (condition.Condition, error) {
	pk := table.Pk()
	if pk == nil {
		return nil, errs.Coded(errs.CodeOperationNotSupported, "primary key lookup on "+table.Name())
	}
	return condition.ColumnCondition{Column: pk, Operator: op, Value: value}, nil
}

// columnValues orders values by table column order, dropping unknown columns.
func columnValues(table *schema.Table, values Record) []sqlgen.ColumnValue {
	out := make([]sqlgen.ColumnValue, 0, len(values))
	for _, name := range table.ColumnNames() {
		if v, ok := values[name]; ok {
			out = append(out, sqlgen.ColumnValue{Column: name, Value: v})
		}
	}
	return out
}

// --- reads ---

// SelectSingle returns the row with primary key id, or nil.
func (s *Store) SelectSingle(ctx context.Context, table *schema.Table, columns []string, id string) (Record, error) {
	c, err := pkCondition(table, "eq", id)
	if err != nil {
		return nil, err
	}
	records, err := s.query(ctx, table, columns, s.sql.SelectAll(table, columns, s.scoped(ctx, table, c), nil, -1, -1))
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

// SelectMultiple returns the rows whose primary key is in ids, in no
// particular order.
func (s *Store) SelectMultiple(ctx context.Context, table *schema.Table, columns []string, ids []string) ([]Record, error) {
	if len(ids) == 0 {
		return []Record{}, nil
	}
	c, err := pkCondition(table, "in", strings.Join(ids, ","))
	if err != nil {
		return nil, err
	}
	return s.query(ctx, table, columns, s.sql.SelectAll(table, columns, s.scoped(ctx, table, c), nil, -1, -1))
}

// SelectCount counts the rows matching c.
func (s *Store) SelectCount(ctx context.Context, table *schema.Table, c condition.Condition) (int, error) {
	st := s.sql.SelectCount(table, s.scoped(ctx, table, c))
	v, err := s.db.QueryValue(ctx, st.SQL, st.Args...)
	if err != nil {
		return 0, err
	}
	return database.Int(v), nil
}

// SelectAll returns the matching rows. A limit of 0 returns nothing without
// querying; -1 for offset or limit leaves the result unbounded.
func (s *Store) SelectAll(ctx context.Context, table *schema.Table, columns []string, c condition.Condition, ordering []sqlgen.Ordering, offset, limit int) ([]Record, error) {
	if limit == 0 {
		return []Record{}, nil
	}
	return s.query(ctx, table, columns, s.sql.SelectAll(table, columns, s.scoped(ctx, table, c), ordering, offset, limit))
}

func (s *Store) query(ctx context.Context, table *schema.Table, columns []string, st database.Statement) ([]Record, error) {
	rows, err := s.db.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, err
	}
	s.converter.ConvertRecords(table, columns, rows)
	return rows, nil
}

// --- writes ---

// CreateSingle inserts one row and returns its primary key: the value given
// in values when there is one, otherwise the key the engine generated.
func (s *Store) CreateSingle(ctx context.Context, table *schema.Table, values Record) (any, error) {
	s.converter.ConvertValues(table, values)
	st := s.sql.Insert(table, columnValues(table, values))

	pk := table.Pk()
	if pk == nil {
		_, err := s.db.ExecStatement(ctx, st)
		return nil, err
	}
	if v, ok := values[pk.Name]; ok && v != nil {
		if _, err := s.db.ExecStatement(ctx, st); err != nil {
			return nil, err
		}
		return v, nil
	}

	var id any
	var err error
	if q := s.db.Dialect().LastInsertIDQuery(); q != "" {
		id, err = s.db.ExecThenQueryValue(ctx, st, q)
	} else {
		id, err = s.db.QueryValue(ctx, st.SQL, st.Args...)
	}
	if err != nil {
		return nil, err
	}
	if pk.Type == schema.TypeInteger || pk.Type == schema.TypeBigint {
		if n, perr := strconv.ParseInt(database.String(id), 10, 64); perr == nil {
			return n, nil
		}
	}
	return id, nil
}

// UpdateSingle assigns values to the row with primary key id and returns
// the number of rows changed.
func (s *Store) UpdateSingle(ctx context.Context, table *schema.Table, values Record, id string) (int64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	c, err := pkCondition(table, "eq", id)
	if err != nil {
		return 0, err
	}
	s.converter.ConvertValues(table, values)
	st, ok := s.sql.Update(table, columnValues(table, values), s.scoped(ctx, table, c))
	if !ok {
		return 0, nil
	}
	return s.db.ExecStatement(ctx, st)
}

// IncrementSingle adds the numeric values to the row with primary key id.
func (s *Store) IncrementSingle(ctx context.Context, table *schema.Table, values Record, id string) (int64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	c, err := pkCondition(table, "eq", id)
	if err != nil {
		return 0, err
	}
	s.converter.ConvertValues(table, values)
	st, ok := s.sql.Increment(table, columnValues(table, values), s.scoped(ctx, table, c))
	if !ok {
		return 0, nil
	}
	return s.db.ExecStatement(ctx, st)
}

// DeleteSingle deletes the row with primary key id.
func (s *Store) DeleteSingle(ctx context.Context, table *schema.Table, id string) (int64, error) {
	c, err := pkCondition(table, "eq", id)
	if err != nil {
		return 0, err
	}
	return s.db.ExecStatement(ctx, s.sql.Delete(table, s.scoped(ctx, table, c)))
}
