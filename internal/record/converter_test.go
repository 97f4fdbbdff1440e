package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/koustreak/restdb/internal/schema"
)

var kitchenSink = schema.NewTable("sink", schema.KindTable, []schema.Column{
	{Name: "id", Type: "bigint", Pk: true},
	{Name: "flag", Type: "boolean"},
	{Name: "ratio", Type: "double"},
	{Name: "icon", Type: "blob", Nullable: true},
	{Name: "meta", Type: "clob", Nullable: true},
	{Name: "label", Type: "varchar"},
})

func TestDataConverter_ConvertRecords(t *testing.T) {
	records := []Record{
		{"id": "12", "flag": int64(1), "ratio": "0.5", "icon": "YWJj+/8=\n", "label": "x"},
		{"id": []byte("13"), "flag": "f", "ratio": float32(2), "icon": nil, "label": "y"},
	}
	DataConverter{}.ConvertRecords(kitchenSink, []string{"id", "flag", "ratio", "icon", "label"}, records)

	assert.Equal(t, Record{"id": int64(12), "flag": true, "ratio": 0.5, "icon": "YWJj-_8", "label": "x"}, records[0])
	assert.Equal(t, Record{"id": int64(13), "flag": false, "ratio": float64(2), "icon": nil, "label": "y"}, records[1])
}

func TestDataConverter_ConvertRecordsSkipsUnselected(t *testing.T) {
	records := []Record{{"flag": "1"}}
	DataConverter{}.ConvertRecords(kitchenSink, []string{"id"}, records)
	assert.Equal(t, "1", records[0]["flag"])
}

func TestDataConverter_ConvertValues(t *testing.T) {
	values := Record{
		"id":    json.Number("7"),
		"flag":  "false",
		"ratio": json.Number("1.25"),
		"icon":  "YQ-_",
		"meta":  map[string]any{"a": 1.0},
		"label": []any{"x"},
		"other": "kept",
	}
	DataConverter{}.ConvertValues(kitchenSink, values)

	assert.Equal(t, int64(7), values["id"])
	assert.Equal(t, false, values["flag"])
	assert.Equal(t, 1.25, values["ratio"])
	assert.Equal(t, "YQ+/", values["icon"])
	assert.Equal(t, `{"a":1}`, values["meta"])
	assert.Equal(t, `["x"]`, values["label"])
	assert.Equal(t, "kept", values["other"])
}

func TestFromBase64URL(t *testing.T) {
	tests := map[string]string{
		"":       "",
		"YQ":     "YQ==",
		"YWI":    "YWI=",
		"YWJj":   "YWJj",
		"-_-_":   "+/+/",
		"YWJj-w": "YWJj+w==",
	}
	for in, want := range tests {
		assert.Equal(t, want, FromBase64URL(in), in)
	}
}

func TestTruthy(t *testing.T) {
	for _, v := range []any{true, "1", "yes", json.Number("2"), int64(1)} {
		assert.True(t, truthy(v), "%v", v)
	}
	for _, v := range []any{false, "", "0", "FALSE", json.Number("0"), 0} {
		assert.False(t, truthy(v), "%v", v)
	}
}
