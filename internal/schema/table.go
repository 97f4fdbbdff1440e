package schema

import (
	"encoding/json"
	"fmt"
)

// Table kinds as exposed by ReflectedDatabase.
const (
	KindTable = "table"
	KindView  = "view"
)

// Table is an immutable reflected table: its columns in catalog order, the
// single-column primary key if any and the foreign keys derived from the
// columns.
type Table struct {
	name    string
	kind    string
	columns []*Column
	index   map[string]int
	pk      *Column
	fks     map[string]string
}

// NewTable builds a table from columns in catalog order. At most one column
// is kept as primary key: if several claim it, none does.
func NewTable(name, kind string, columns []Column) *Table {
	t := &Table{
		name:    name,
		kind:    kind,
		columns: make([]*Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	pks := 0
	for _, c := range columns {
		c := c.Normalized()
		if c.Pk {
			pks++
		}
		t.index[c.Name] = len(t.columns)
		t.columns = append(t.columns, &c)
	}
	for _, c := range t.columns {
		if c.Pk && pks != 1 {
			c.Pk = false
		}
		if c.Pk {
			t.pk = c
		}
	}
	t.rebuildFks()
	return t
}

func (t *Table) rebuildFks() {
	t.fks = make(map[string]string)
	for _, c := range t.columns {
		if c.Fk != "" {
			t.fks[c.Name] = c.Fk
		}
	}
}

func (t *Table) Name() string { return t.name }
func (t *Table) Kind() string { return t.kind }

// Pk returns the primary key column, or nil.
func (t *Table) Pk() *Column { return t.pk }

func (t *Table) HasPk() bool { return t.pk != nil }

func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	i, ok := t.index[name]
	if !ok {
		return nil
	}
	return t.columns[i]
}

// Columns returns the columns in catalog order.
func (t *Table) Columns() []*Column {
	return append([]*Column(nil), t.columns...)
}

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Fks maps column name to referenced table.
func (t *Table) Fks() map[string]string {
	out := make(map[string]string, len(t.fks))
	for k, v := range t.fks {
		out[k] = v
	}
	return out
}

// FksTo returns the columns referencing table, in column order.
func (t *Table) FksTo(table string) []*Column {
	var out []*Column
	for _, c := range t.columns {
		if c.Fk == table {
			out = append(out, c)
		}
	}
	return out
}

// --- JSON ---

type tableJSON struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Columns []Column `json:"columns"`
}

func (t *Table) MarshalJSON() ([]byte, error) {
	cols := make([]Column, len(t.columns))
	for i, c := range t.columns {
		cols[i] = *c
	}
	return json.Marshal(tableJSON{Name: t.name, Type: t.kind, Columns: cols})
}

func (t *Table) UnmarshalJSON(b []byte) error {
	var v tableJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v.Name == "" {
		return fmt.Errorf("table without name")
	}
	*t = *NewTable(v.Name, v.Type, v.Columns)
	return nil
}
