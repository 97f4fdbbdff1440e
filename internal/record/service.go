// Package record serves the rows of reflected tables: listing with filters,
// ordering, pagination, column selection and joins, and reading and
// writing by primary key, singly or in batches.
//
// Request scoped restrictions (row level access, tenancy) travel in a
// QueryContext attached to the context.Context of each call.
//
// Usage:
//
//	svc := record.NewService(db, schemaService, record.WithJoinLimit(100))
//	doc, err := svc.List(ctx, "posts", record.Params(r.URL.Query()))
//	id, err := svc.Create(ctx, "posts", record.Record{"title": "hello"}, nil)
package record

import (
	"context"
	"strings"

	"github.com/koustreak/restdb/internal/database"
	"github.com/koustreak/restdb/internal/errs"
	"github.com/koustreak/restdb/internal/schema"
)

// ListDocument is the result of List. Results is the total number of
// matching rows and only set when a page was requested.
type ListDocument struct {
	Records []Record `json:"records"`
	Results *int     `json:"results,omitempty"`
}

// Service implements the record operations on top of Store and Joiner.
type Service struct {
	schema Schema
	store  *Store
	joiner *Joiner
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	joinLimit int
}

// WithJoinLimit bounds the rows fetched per join level; -1 is unbounded.
func WithJoinLimit(n int) Option {
	return func(o *serviceOptions) { o.joinLimit = n }
}

func NewService(db *database.DB, s Schema, opts ...Option) *Service {
	o := serviceOptions{joinLimit: -1}
	for _, opt := range opts {
		opt(&o)
	}
	store := NewStore(db)
	return &Service{
		schema: s,
		store:  store,
		joiner: NewJoiner(s, store, o.joinLimit),
	}
}

// SplitIDs splits a comma separated id list.
func SplitIDs(id string) []string {
	return strings.Split(id, ",")
}

// --- reads ---

// List returns the rows of table matching params.
func (s *Service) List(ctx context.Context, tableName string, params Params) (*ListDocument, error) {
	table, err := s.schema.Table(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if params, err = s.joiner.MandatoryColumns(ctx, table, params); err != nil {
		return nil, err
	}
	columns := params.ColumnNames(table, true)
	cond := params.Condition(table)
	ordering := params.Ordering(table)

	doc := &ListDocument{}
	offset, limit := 0, params.Limit()
	if params.HasPage() {
		offset = params.Offset()
		count, err := s.store.SelectCount(ctx, table, cond)
		if err != nil {
			return nil, err
		}
		doc.Results = &count
	}

	if doc.Records, err = s.store.SelectAll(ctx, table, columns, cond, ordering, offset, limit); err != nil {
		return nil, err
	}
	if err := s.joiner.AddJoins(ctx, table, doc.Records, params); err != nil {
		return nil, err
	}
	return doc, nil
}

// Read returns the row with primary key id; RecordNotFound when there is none.
func (s *Service) Read(ctx context.Context, tableName, id string, params Params) (Record, error) {
	table, err := s.schema.Table(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if params, err = s.joiner.MandatoryColumns(ctx, table, params); err != nil {
		return nil, err
	}
	r, err := s.store.SelectSingle(ctx, table, params.ColumnNames(table, true), id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, errs.Coded(errs.CodeRecordNotFound, id)
	}
	if err := s.joiner.AddJoins(ctx, table, []Record{r}, params); err != nil {
		return nil, err
	}
	return r, nil
}

// ReadAll reads each id in turn. A missing row is a nil entry rather than
// an error.
func (s *Service) ReadAll(ctx context.Context, tableName string, ids []string, params Params) ([]Record, error) {
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		r, err := s.Read(ctx, tableName, id, params)
		switch {
		case errs.HasCode(err, errs.CodeRecordNotFound):
			out = append(out, nil)
		case err != nil:
			return out, err
		default:
			out = append(out, r)
		}
	}
	return out, nil
}

// --- writes ---

// writable returns table, refusing anything but base tables.
func (s *Service) writable(ctx context.Context, tableName, operation string) (*schema.Table, error) {
	table, err := s.schema.Table(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if table.Kind() != schema.KindTable {
		return nil, errs.Coded(errs.CodeOperationNotSupported, operation)
	}
	return table, nil
}

// values keeps the properties of r that are columns of table and selected
// by params. withPk false drops the primary key.
func values(table *schema.Table, r Record, params Params, withPk bool) Record {
	out := make(Record, len(r))
	for _, name := range params.ColumnNames(table, true) {
		if pk := table.Pk(); !withPk && pk != nil && pk.Name == name {
			continue
		}
		if v, ok := r[name]; ok {
			out[name] = v
		}
	}
	return out
}

// Create inserts r and returns its primary key.
func (s *Service) Create(ctx context.Context, tableName string, r Record, params Params) (any, error) {
	table, err := s.writable(ctx, tableName, "create")
	if err != nil {
		return nil, err
	}
	v := values(table, r, params, true)
	for column, forced := range FromContext(ctx).Values(table) {
		v[column] = forced
	}
	return s.store.CreateSingle(ctx, table, v)
}

// CreateAll inserts records one by one. The batch is not atomic: on
// failure the keys created so far are returned with the error.
func (s *Service) CreateAll(ctx context.Context, tableName string, records []Record, params Params) ([]any, error) {
	out := make([]any, 0, len(records))
	for _, r := range records {
		id, err := s.Create(ctx, tableName, r, params)
		if err != nil {
			return out, err
		}
		out = append(out, id)
	}
	return out, nil
}

// Update assigns the properties of r to the row with primary key id and
// returns the number of rows changed. The primary key cannot be changed.
func (s *Service) Update(ctx context.Context, tableName, id string, r Record, params Params) (int64, error) {
	table, err := s.writable(ctx, tableName, "update")
	if err != nil {
		return 0, err
	}
	return s.store.UpdateSingle(ctx, table, values(table, r, params, false), id)
}

// UpdateAll updates ids[i] with records[i].
func (s *Service) UpdateAll(ctx context.Context, tableName string, ids []string, records []Record, params Params) ([]int64, error) {
	if len(ids) != len(records) {
		return nil, errs.Coded(errs.CodeArgumentCountMismatch, strings.Join(ids, ","))
	}
	out := make([]int64, 0, len(ids))
	for i, id := range ids {
		n, err := s.Update(ctx, tableName, id, records[i], params)
		if err != nil {
			return out, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Increment adds the numeric properties of r to the row with primary key id.
func (s *Service) Increment(ctx context.Context, tableName, id string, r Record, params Params) (int64, error) {
	table, err := s.writable(ctx, tableName, "increment")
	if err != nil {
		return 0, err
	}
	return s.store.IncrementSingle(ctx, table, values(table, r, params, false), id)
}

// IncrementAll increments ids[i] by records[i].
func (s *Service) IncrementAll(ctx context.Context, tableName string, ids []string, records []Record, params Params) ([]int64, error) {
	if len(ids) != len(records) {
		return nil, errs.Coded(errs.CodeArgumentCountMismatch, strings.Join(ids, ","))
	}
	out := make([]int64, 0, len(ids))
	for i, id := range ids {
		n, err := s.Increment(ctx, tableName, id, records[i], params)
		if err != nil {
			return out, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Delete deletes the row with primary key id.
func (s *Service) Delete(ctx context.Context, tableName, id string) (int64, error) {
	table, err := s.writable(ctx, tableName, "delete")
	if err != nil {
		return 0, err
	}
	return s.store.DeleteSingle(ctx, table, id)
}

func (s *Service) DeleteAll(ctx context.Context, tableName string, ids []string) ([]int64, error) {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		n, err := s.Delete(ctx, tableName, id)
		if err != nil {
			return out, err
		}
		out = append(out, n)
	}
	return out, nil
}
