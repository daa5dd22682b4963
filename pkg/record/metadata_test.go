package record_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/finmem-go/pkg/record"
)

func TestValueJSON(t *testing.T) {
	tests := []struct {
		name  string
		value record.Value
		json  string
	}{
		{name: "null", value: record.Null(), json: `null`},
		{name: "string", value: record.String("momentum"), json: `"momentum"`},
		{name: "number", value: record.Number(61.5), json: `61.5`},
		{name: "bool", value: record.Bool(true), json: `true`},
		{name: "empty list", value: record.List(), json: `[]`},
		{
			name:  "nested list",
			value: record.List(record.String("a"), record.Number(2), record.List(record.Bool(false))),
			json:  `["a", 2, [false]]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.value)
			require.NoError(t, err)
			assert.JSONEq(t, tt.json, string(data))

			var decoded record.Value
			require.NoError(t, json.Unmarshal([]byte(tt.json), &decoded))
			assert.True(t, tt.value.Equal(decoded), "decoded %s", data)
			assert.Equal(t, tt.value.Kind(), decoded.Kind())
		})
	}
}

func TestValueJSON_ObjectBecomesCompactText(t *testing.T) {
	var v record.Value
	require.NoError(t, json.Unmarshal([]byte(`{ "stop_loss" : 0.05,  "target": [1, 2] }`), &v))

	s, ok := v.AsString()
	require.True(t, ok)
	assert.Equal(t, `{"stop_loss":0.05,"target":[1,2]}`, s)
}

func TestValueJSON_Invalid(t *testing.T) {
	var v record.Value
	assert.Error(t, json.Unmarshal([]byte(`"unterminated`), &v))
	assert.Error(t, json.Unmarshal([]byte(`tru`), &v))
	assert.Error(t, v.UnmarshalJSON([]byte("  ")))
}

func TestValueEqual(t *testing.T) {
	assert.True(t, record.Null().Equal(record.Null()))
	assert.True(t, record.Number(1).Equal(record.Number(1)))
	assert.False(t, record.Number(1).Equal(record.String("1")))
	assert.False(t, record.Bool(true).Equal(record.Bool(false)))

	short := record.List(record.String("a"))
	long := record.List(record.String("a"), record.String("b"))
	assert.False(t, short.Equal(long))
	assert.False(t, long.Equal(short))
	assert.False(t, long.Equal(record.List(record.String("a"), record.String("c"))))
	assert.True(t, long.Equal(record.List(record.String("a"), record.String("b"))))
}

func TestValueText(t *testing.T) {
	assert.Equal(t, "", record.Null().Text())
	assert.Equal(t, "0.25", record.Number(0.25).Text())
	assert.Equal(t, "false", record.Bool(false).Text())
	assert.Equal(t, "up 3", record.List(record.String("up"), record.Number(3)).Text())
}

func TestValueAsList_ReturnsCopy(t *testing.T) {
	v := record.List(record.String("a"))
	items, ok := v.AsList()
	require.True(t, ok)
	items[0] = record.String("changed")

	again, _ := v.AsList()
	assert.True(t, again[0].Equal(record.String("a")))

	_, ok = record.String("a").AsList()
	assert.False(t, ok)
}

func TestMetadataFrom(t *testing.T) {
	md := record.MetadataFrom(map[string]interface{}{
		"strategy": "momentum",
		"weight":   3,
		"live":     true,
		"tags":     []string{"tech", "large-cap"},
		"extra":    nil,
	})

	s, _ := md["strategy"].AsString()
	assert.Equal(t, "momentum", s)
	n, _ := md["weight"].AsNumber()
	assert.Equal(t, 3.0, n)
	b, _ := md["live"].AsBool()
	assert.True(t, b)
	tags, ok := md["tags"].AsList()
	require.True(t, ok)
	assert.Len(t, tags, 2)
	assert.True(t, md["extra"].IsNull())

	assert.Nil(t, record.MetadataFrom(nil))
}

func TestMetadataMatches(t *testing.T) {
	md := record.MetadataFrom(map[string]interface{}{
		"strategy": "momentum",
		"weight":   0.4,
	})

	assert.True(t, md.Matches(nil))
	assert.True(t, md.Matches(record.MetadataFrom(map[string]interface{}{"strategy": "momentum"})))
	assert.False(t, md.Matches(record.MetadataFrom(map[string]interface{}{"strategy": "value"})))
	assert.False(t, md.Matches(record.MetadataFrom(map[string]interface{}{"desk": "equities"})))
	assert.False(t, md.Matches(record.MetadataFrom(map[string]interface{}{"weight": "0.4"})))
}

func TestMetadataJSON(t *testing.T) {
	md := record.MetadataFrom(map[string]interface{}{
		"strategy": "momentum",
		"levels":   []interface{}{1.5, "two", nil},
	})

	data, err := json.Marshal(md)
	require.NoError(t, err)
	assert.JSONEq(t, `{"strategy":"momentum","levels":[1.5,"two",null]}`, string(data))

	var decoded record.Metadata
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Matches(md))
	assert.True(t, md.Matches(decoded))
}

func TestMetadataCloneAndKeys(t *testing.T) {
	md := record.Metadata{
		"b":    record.String("x"),
		"a":    record.List(record.Number(1)),
		"Desk": record.String("Equities"),
	}
	cp := md.Clone()
	cp["b"] = record.String("y")

	s, _ := md["b"].AsString()
	assert.Equal(t, "x", s)
	assert.Equal(t, []string{"Desk", "a", "b"}, md.Keys())
	assert.True(t, md.ContainsText("equities"))
	assert.True(t, md.ContainsText("desk"))
	assert.False(t, md.ContainsText("bonds"))
	assert.Nil(t, record.Metadata(nil).Clone())
}
