package dbtypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Row   int    `json:"row"`
	Field string `json:"field"`
}

func TestJSONScanAcceptsStringAndBytes(t *testing.T) {
	var fromString JSON[[]sample]
	require.NoError(t, fromString.Scan(`[{"row":2,"field":"name"}]`))
	assert.Equal(t, []sample{{Row: 2, Field: "name"}}, fromString.Val)

	var fromBytes JSON[map[string]string]
	require.NoError(t, fromBytes.Scan([]byte(`{"partNumber":"Indeks"}`)))
	assert.Equal(t, "Indeks", fromBytes.Val["partNumber"])
}

func TestJSONScanNilResetsValue(t *testing.T) {
	j := NewJSON([]sample{{Row: 1}})
	require.NoError(t, j.Scan(nil))
	assert.Nil(t, j.Val)
}

func TestJSONScanRejectsUnknownType(t *testing.T) {
	var j JSON[[]sample]
	assert.Error(t, j.Scan(42))
}

func TestJSONValue(t *testing.T) {
	v, err := NewJSON(map[string]string{"name": "Nazwa"}).Value()
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Nazwa"}`, v)
}
