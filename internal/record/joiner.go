package record

import (
	"context"
	"strings"

	"github.com/koustreak/restdb/internal/condition"
	"github.com/koustreak/restdb/internal/database"
	"github.com/koustreak/restdb/internal/pathtree"
	"github.com/koustreak/restdb/internal/schema"
	"github.com/koustreak/restdb/internal/sqlgen"
)

// Schema is the part of schema.Service records are served from.
type Schema interface {
	Database(ctx context.Context) (*schema.Database, error)
	Table(ctx context.Context, name string) (*schema.Table, error)
}

var _ Schema = (*schema.Service)(nil)

// Joiner nests related records into a page of records. The relation
// between two tables is taken from their foreign keys, in this order:
//
//	belongs-to    the parent references the child: child object under the child's table name
//	has-many      the child references the parent: array of children
//	many-to-many  a third table references both: array of children
//
// Each relation costs one batched query per level however many parents
// there are (two for many-to-many), and deeper levels are resolved on the
// fetched children before they are attached.
type Joiner struct {
	schema Schema
	store  *Store
	// maxRecords bounds the rows fetched per has-many or junction query;
	// -1 is unbounded.
	maxRecords int
}

func NewJoiner(s Schema, store *Store, maxRecords int) *Joiner {
	if maxRecords < 0 {
		maxRecords = -1
	}
	return &Joiner{schema: s, store: store, maxRecords: maxRecords}
}

// joinTree turns the join paths into a tree of table names; unknown tables
// are left out of their path.
func (j *Joiner) joinTree(ctx context.Context, params Params) (*pathtree.Tree[bool], error) {
	db, err := j.schema.Database(ctx)
	if err != nil {
		return nil, err
	}
	tree := pathtree.New[bool]()
	for _, path := range params.JoinPaths() {
		known := make([]string, 0, len(path))
		for _, t := range path {
			if db.HasTable(t) {
				known = append(known, t)
			}
		}
		tree = tree.Put(known, true)
	}
	return tree, nil
}

// manyToMany finds the first table, in table list order, referencing both
// t1 and t2.
func (j *Joiner) manyToMany(ctx context.Context, t1, t2 *schema.Table) (*schema.Table, error) {
	db, err := j.schema.Database(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range db.TableNames() {
		t3, err := j.schema.Table(ctx, name)
		if err != nil {
			return nil, err
		}
		if len(t3.FksTo(t1.Name())) > 0 && len(t3.FksTo(t2.Name())) > 0 {
			return t3, nil
		}
	}
	return nil, nil
}

// relationKind is how a parent table relates to a joined table.
type relationKind int

const (
	relNone relationKind = iota
	relBelongsTo
	relHasMany
	relManyToMany
)

// relation decides how t1 relates to t2, taking the first of belongs-to,
// has-many and many-to-many that applies. t3 is the junction table of a
// many-to-many relation.
func (j *Joiner) relation(ctx context.Context, t1, t2 *schema.Table) (kind relationKind, t3 *schema.Table, err error) {
	switch {
	case len(t1.FksTo(t2.Name())) > 0 && t2.HasPk():
		return relBelongsTo, nil, nil
	case len(t2.FksTo(t1.Name())) > 0 && t1.HasPk():
		return relHasMany, nil, nil
	case !t1.HasPk() || !t2.HasPk():
		return relNone, nil, nil
	}
	if t3, err = j.manyToMany(ctx, t1, t2); err != nil || t3 == nil {
		return relNone, nil, err
	}
	return relManyToMany, t3, nil
}

// MandatoryColumns sets the mandatory parameter to the key columns joins
// need, so that include cannot select them away. Any mandatory value
// already in params is dropped.
func (j *Joiner) MandatoryColumns(ctx context.Context, table *schema.Table, params Params) (Params, error) {
	params = params.Without(mandatoryParam)
	if !params.Has("join") || !params.Has("include") {
		return params, nil
	}
	db, err := j.schema.Database(ctx)
	if err != nil {
		return nil, err
	}

	var mandatory []string
	addPk := func(t *schema.Table) {
		mandatory = append(mandatory, t.Name()+"."+t.Pk().Name)
	}
	addFks := func(from, to *schema.Table) {
		for _, fk := range from.FksTo(to.Name()) {
			mandatory = append(mandatory, from.Name()+"."+fk.Name)
		}
	}
	for _, path := range params.JoinPaths() {
		t1 := table
		for _, name := range path {
			if !db.HasTable(name) {
				continue
			}
			t2, err := j.schema.Table(ctx, name)
			if err != nil {
				return nil, err
			}
			kind, _, err := j.relation(ctx, t1, t2)
			if err != nil {
				return nil, err
			}
			switch kind {
			case relBelongsTo:
				addPk(t2)
				addFks(t1, t2)
			case relHasMany:
				addPk(t1)
				addFks(t2, t1)
			case relManyToMany:
				addPk(t2)
				addPk(t1)
			}
			t1 = t2
		}
	}
	return params.With(mandatoryParam, mandatory...), nil
}

// AddJoins nests the joins requested in params into records.
func (j *Joiner) AddJoins(ctx context.Context, table *schema.Table, records []Record, params Params) error {
	if !params.Has("join") || len(records) == 0 {
		return nil
	}
	tree, err := j.joinTree(ctx, params)
	if err != nil {
		return err
	}
	return j.join(ctx, table, tree, records, params)
}

func (j *Joiner) join(ctx context.Context, t1 *schema.Table, joins *pathtree.Tree[bool], records []Record, params Params) error {
	for _, name := range joins.Keys() {
		t2, err := j.schema.Table(ctx, name)
		if err != nil {
			return err
		}
		kind, t3, err := j.relation(ctx, t1, t2)
		if err != nil {
			return err
		}

		columns := params.ColumnNames(t2, false)
		var children []Record
		var links map[string][]string
		switch kind {
		case relBelongsTo:
			children, err = j.store.SelectMultiple(ctx, t2, columns, fkValues(t1, t2, records).keys)
		case relHasMany:
			children, err = j.hasMany(ctx, t1, t2, records, params)
		case relManyToMany:
			var targets *keySet
			if targets, links, err = j.junction(ctx, t1, t2, t3, records); err == nil {
				children, err = j.store.SelectMultiple(ctx, t2, columns, targets.keys)
			}
		default:
			continue
		}
		if err != nil {
			return err
		}

		if err := j.join(ctx, t2, joins.Get(name), children, params); err != nil {
			return err
		}

		switch kind {
		case relBelongsTo:
			setBelongsTo(t1, t2, records, byKey(children, t2.Pk().Name))
		case relHasMany:
			setHasMany(t1, t2, records, children)
		case relManyToMany:
			setManyToMany(t1, t2, records, links, byKey(children, t2.Pk().Name))
		}
	}
	return nil
}

// hasMany fetches the children of all records in one query.
func (j *Joiner) hasMany(ctx context.Context, t1, t2 *schema.Table, records []Record, params Params) ([]Record, error) {
	pks := pkValues(t1, records)
	if len(pks.keys) == 0 {
		return nil, nil
	}
	ids := strings.Join(pks.keys, ",")
	var c condition.Condition = condition.NoCondition{}
	for _, fk := range t2.FksTo(t1.Name()) {
		c = c.Or(condition.ColumnCondition{Column: fk, Operator: "in", Value: ids})
	}
	return j.store.SelectAll(ctx, t2, params.ColumnNames(t2, false), c, j.ordering(t2), 0, j.maxRecords)
}

// junction reads the link rows of t3 for all records and returns the t2
// keys they reference plus, per t1 key, the linked t2 keys in order.
func (j *Joiner) junction(ctx context.Context, t1, t2, t3 *schema.Table, records []Record) (*keySet, map[string][]string, error) {
	targets := newKeySet()
	links := make(map[string][]string)
	pks := pkValues(t1, records)
	if len(pks.keys) == 0 {
		return targets, links, nil
	}
	fk1 := t3.FksTo(t1.Name())[0]
	fk2 := t3.FksTo(t2.Name())[0]
	if fks := t3.FksTo(t2.Name()); t1 == t2 && len(fks) > 1 {
		fk2 = fks[1]
	}
	c := condition.ColumnCondition{Column: fk1, Operator: "in", Value: strings.Join(pks.keys, ",")}

	rows, err := j.store.SelectAll(ctx, t3, []string{fk1.Name, fk2.Name}, c, j.ordering(t3), 0, j.maxRecords)
	if err != nil {
		return nil, nil, err
	}
	for _, row := range rows {
		if row[fk1.Name] == nil || row[fk2.Name] == nil {
			continue
		}
		from, to := key(row[fk1.Name]), key(row[fk2.Name])
		links[from] = append(links[from], to)
		targets.add(to)
	}
	return targets, links, nil
}

// ordering keeps truncated results deterministic; unbounded fetches need none.
func (j *Joiner) ordering(t *schema.Table) []sqlgen.Ordering {
	if j.maxRecords < 0 {
		return nil
	}
	return sqlgen.DefaultOrdering(t)
}

// --- keys ---

// key is the comparison form of a key value: drivers return integer keys
// as int64 where clients send strings.
func key(v any) string { return database.String(v) }

// keySet is an insertion ordered set of keys.
type keySet struct {
	keys []string
	seen map[string]bool
}

func newKeySet() *keySet { return &keySet{seen: make(map[string]bool)} }

func (s *keySet) add(k string) {
	if !s.seen[k] {
		s.seen[k] = true
		s.keys = append(s.keys, k)
	}
}

func fkValues(t1, t2 *schema.Table, records []Record) *keySet {
	set := newKeySet()
	for _, fk := range t1.FksTo(t2.Name()) {
		for _, r := range records {
			if v := r[fk.Name]; v != nil {
				set.add(key(v))
			}
		}
	}
	return set
}

func pkValues(t *schema.Table, records []Record) *keySet {
	set := newKeySet()
	pk := t.Pk().Name
	for _, r := range records {
		if v := r[pk]; v != nil {
			set.add(key(v))
		}
	}
	return set
}

func byKey(records []Record, column string) map[string]Record {
	out := make(map[string]Record, len(records))
	for _, r := range records {
		if v := r[column]; v != nil {
			out[key(v)] = r
		}
	}
	return out
}

// --- splicing ---

// setBelongsTo puts the referenced t2 record under t2's name, following the
// first foreign key that holds a value.
func setBelongsTo(t1, t2 *schema.Table, records []Record, children map[string]Record) {
	fks := t1.FksTo(t2.Name())
	for _, r := range records {
		var child Record
		for _, fk := range fks {
			if v := r[fk.Name]; v != nil {
				child = children[key(v)]
				break
			}
		}
		if child == nil {
			r[t2.Name()] = nil
			continue
		}
		r[t2.Name()] = child
	}
}

// setHasMany puts under t2's name the children referencing each record.
// A child referencing the same record through several foreign keys is
// listed once.
func setHasMany(t1, t2 *schema.Table, records []Record, children []Record) {
	pk := t1.Pk().Name
	fks := t2.FksTo(t1.Name())
	grouped := make(map[string][]Record)
	for _, child := range children {
		parents := newKeySet()
		for _, fk := range fks {
			if v := child[fk.Name]; v != nil {
				parents.add(key(v))
			}
		}
		for _, k := range parents.keys {
			grouped[k] = append(grouped[k], child)
		}
	}
	for _, r := range records {
		list := grouped[key(r[pk])]
		if list == nil {
			list = []Record{}
		}
		r[t2.Name()] = list
	}
}

func setManyToMany(t1, t2 *schema.Table, records []Record, links map[string][]string, children map[string]Record) {
	pk := t1.Pk().Name
	for _, r := range records {
		list := []Record{}
		for _, k := range links[key(r[pk])] {
			if child, ok := children[k]; ok {
				list = append(list, child)
			}
		}
		r[t2.Name()] = list
	}
}
