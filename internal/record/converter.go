package record

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/koustreak/restdb/internal/database"
	"github.com/koustreak/restdb/internal/schema"
)

// Record is one row as exchanged with clients: column name to value, plus
// joined tables under their table name.
type Record = map[string]any

// DataConverter coerces values between what drivers return or accept and
// what clients see. Engines disagree on how booleans, integers and binary
// data come back; clients always get JSON booleans, numbers and URL-safe
// base64.
type DataConverter struct{}

// --- output ---

// ConvertRecords rewrites the values of columns in records in place.
func (DataConverter) ConvertRecords(table *schema.Table, columns []string, records []Record) {
	for _, name := range columns {
		col := table.Column(name)
		if col == nil {
			continue
		}
		convert := outputConversion(col)
		if convert == nil {
			continue
		}
		for _, r := range records {
			if v, ok := r[name]; ok && v != nil {
				r[name] = convert(v)
			}
		}
	}
}

func outputConversion(col *schema.Column) func(any) any {
	switch {
	case col.IsBoolean():
		return toBool
	case col.Type == schema.TypeInteger || col.Type == schema.TypeBigint:
		return toInt
	case col.Type == schema.TypeFloat || col.Type == schema.TypeDouble:
		return toFloat
	case col.IsBinary():
		return toBase64URL
	}
	return nil
}

func toBool(v any) any {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		t = strings.ToLower(strings.TrimSpace(t))
		return t != "" && t != "0" && t != "f" && t != "false"
	default:
		return database.Int(v) != 0
	}
}

func toInt(v any) any {
	switch t := v.(type) {
	case int64:
		return t
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return n
		}
		return v
	default:
		return int64(database.Int(v))
	}
}

func toFloat(v any) any {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
		return v
	default:
		f, err := strconv.ParseFloat(database.String(v), 64)
		if err != nil {
			return v
		}
		return f
	}
}

var base64URLReplacer = strings.NewReplacer("+", "-", "/", "_", "=", "", "\n", "", "\r", "")

// toBase64URL turns the engine's standard base64, line wrapped by some,
// into unpadded URL-safe base64.
func toBase64URL(v any) any {
	return base64URLReplacer.Replace(database.String(v))
}

// --- input ---

// ConvertValues rewrites client values in place for binding: booleans
// become bool, URL-safe base64 becomes padded standard base64 and JSON
// numbers, objects and arrays become plain Go values.
func (DataConverter) ConvertValues(table *schema.Table, values Record) {
	for name, v := range values {
		col := table.Column(name)
		if col == nil || v == nil {
			continue
		}
		switch {
		case col.IsBoolean():
			values[name] = truthy(v)
		case col.IsBinary():
			values[name] = FromBase64URL(database.String(v))
		default:
			values[name] = plain(v)
		}
	}
}

var base64StdReplacer = strings.NewReplacer("-", "+", "_", "/")

// FromBase64URL translates URL-safe base64 to standard base64 and restores
// the padding.
func FromBase64URL(s string) string {
	s = base64StdReplacer.Replace(s)
	if pad := len(s) % 4; pad != 0 {
		s += strings.Repeat("=", 4-pad)
	}
	return s
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	case string:
		t = strings.ToLower(strings.TrimSpace(t))
		return t != "" && t != "0" && t != "false"
	default:
		return database.Int(v) != 0
	}
}

func plain(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return v
		}
		return string(b)
	}
	return v
}
