package schema

import (
	"strconv"
	"strings"

	"github.com/koustreak/restdb/internal/database"
	"github.com/koustreak/restdb/internal/errs"
)

// Portable type names. A reflected column always carries one of the types
// in validTypes; the engine-specific spelling only appears in catalogs and DDL.
const (
	TypeBigint    = "bigint"
	TypeBlob      = "blob"
	TypeBoolean   = "boolean"
	TypeClob      = "clob"
	TypeDate      = "date"
	TypeDecimal   = "decimal"
	TypeDouble    = "double"
	TypeFloat     = "float"
	TypeGeometry  = "geometry"
	TypeInteger   = "integer"
	TypeTime      = "time"
	TypeTimestamp = "timestamp"
	TypeVarbinary = "varbinary"
	TypeVarchar   = "varchar"
)

var validTypes = map[string]bool{
	"bigint": true, "binary": true, "bit": true, "blob": true, "boolean": true,
	"char": true, "clob": true, "date": true, "decimal": true, "distinct": true,
	"double": true, "float": true, "integer": true, "longnvarchar": true, "longvarbinary": true,
	"longvarchar": true, "nchar": true, "nclob": true, "numeric": true, "nvarchar": true,
	"real": true, "smallint": true, "time": true, "time_with_timezone": true, "timestamp": true,
	"timestamp_with_timezone": true, "tinyint": true, "varbinary": true, "varchar": true, "geometry": true,
}

// simplifiedTypes folds synonyms of the portable set into one name each.
var simplifiedTypes = map[string]string{
	"char":                    "varchar",
	"longvarchar":             "clob",
	"nchar":                   "varchar",
	"nvarchar":                "varchar",
	"longnvarchar":            "clob",
	"binary":                  "varbinary",
	"longvarbinary":           "blob",
	"tinyint":                 "integer",
	"smallint":                "integer",
	"real":                    "float",
	"numeric":                 "decimal",
	"nclob":                   "clob",
	"time_with_timezone":      "time",
	"timestamp_with_timezone": "timestamp",
}

// IsValidType reports whether t is a portable type name.
func IsValidType(t string) bool {
	return validTypes[t]
}

// TypeConverter maps between native and portable column types for one engine.
type TypeConverter struct {
	native   map[string]string
	portable map[string]string
}

func NewTypeConverter(d database.ReflectionDialect) *TypeConverter {
	return &TypeConverter{native: d.NativeTypes(), portable: d.PortableTypes()}
}

// ToPortable resolves a native type name. The sized spelling "type(size)"
// is looked up first, then the bare name, then the engine independent
// simplifications. A zero size looks up "type()".
func (c *TypeConverter) ToPortable(nativeType string, size int) (string, error) {
	t := strings.ToLower(strings.TrimSpace(nativeType))

	sized := t + "()"
	if size != 0 {
		sized = t + "(" + strconv.Itoa(size) + ")"
	}
	if v, ok := c.native[sized]; ok {
		t = v
	}
	if v, ok := c.native[t]; ok {
		t = v
	}
	if v, ok := simplifiedTypes[t]; ok {
		t = v
	}

	if !validTypes[t] {
		return "", errs.Coded(errs.CodeUnsupportedType, nativeType)
	}
	return t, nil
}

// ToNative returns the engine's spelling of a portable type for DDL.
func (c *TypeConverter) ToNative(portableType string) string {
	t := strings.ToLower(portableType)
	if v, ok := c.portable[t]; ok {
		return v
	}
	return t
}
