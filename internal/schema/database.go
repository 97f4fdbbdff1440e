package schema

import "encoding/json"

// Database lists the reflected tables and views in catalog order.
type Database struct {
	names []string
	kinds map[string]string
}

// TableRef names one table and its kind.
type TableRef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func NewDatabase(tables []TableRef) *Database {
	d := &Database{kinds: make(map[string]string, len(tables))}
	for _, t := range tables {
		if _, dup := d.kinds[t.Name]; dup {
			continue
		}
		d.names = append(d.names, t.Name)
		d.kinds[t.Name] = t.Type
	}
	return d
}

func (d *Database) HasTable(name string) bool {
	_, ok := d.kinds[name]
	return ok
}

// Kind returns "table", "view" or "" for an unknown table.
func (d *Database) Kind(name string) string { return d.kinds[name] }

func (d *Database) TableNames() []string {
	return append([]string(nil), d.names...)
}

func (d *Database) refs() []TableRef {
	refs := make([]TableRef, len(d.names))
	for i, n := range d.names {
		refs[i] = TableRef{Name: n, Type: d.kinds[n]}
	}
	return refs
}

type databaseJSON struct {
	Tables []TableRef `json:"tables"`
}

func (d *Database) MarshalJSON() ([]byte, error) {
	return json.Marshal(databaseJSON{Tables: d.refs()})
}

func (d *Database) UnmarshalJSON(b []byte) error {
	var v databaseJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*d = *NewDatabase(v.Tables)
	return nil
}
