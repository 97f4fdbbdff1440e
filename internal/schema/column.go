package schema

// Defaults applied when the catalog reports no size for a sized type.
const (
	DefaultLength    = 255
	DefaultPrecision = 19
	DefaultScale     = 4
)

// Column is a reflected column. Values obtained from a Table are shared
// with the schema cache and must not be modified.
type Column struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Length    int    `json:"length,omitempty"`
	Precision int    `json:"precision,omitempty"`
	Scale     int    `json:"scale,omitempty"`
	Nullable  bool   `json:"nullable,omitempty"`
	Pk        bool   `json:"pk,omitempty"`
	Fk        string `json:"fk,omitempty"`
}

// Normalized returns c with sizes that do not apply to its type cleared and
// missing sizes replaced by their defaults.
func (c Column) Normalized() Column {
	if c.HasLength() {
		if c.Length == 0 {
			c.Length = DefaultLength
		}
	} else {
		c.Length = 0
	}
	if c.HasPrecision() {
		if c.Precision == 0 {
			c.Precision = DefaultPrecision
		}
	} else {
		c.Precision = 0
	}
	if c.HasScale() {
		if c.Scale == 0 {
			c.Scale = DefaultScale
		}
	} else {
		c.Scale = 0
	}
	return c
}

func (c Column) HasLength() bool    { return c.Type == TypeVarchar || c.Type == TypeVarbinary }
func (c Column) HasPrecision() bool { return c.Type == TypeDecimal }
func (c Column) HasScale() bool     { return c.Type == TypeDecimal }

func (c Column) IsBinary() bool   { return c.Type == TypeBlob || c.Type == TypeVarbinary }
func (c Column) IsBoolean() bool  { return c.Type == TypeBoolean }
func (c Column) IsGeometry() bool { return c.Type == TypeGeometry }
