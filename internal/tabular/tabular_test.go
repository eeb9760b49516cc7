package tabular

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/materials-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/materials-ledger/pkg/errors"
)

func TestReadCSVStripsBOMAndNumbersRows(t *testing.T) {
	input := "\xEF\xBB\xBFIndeks; Nazwa ;Stan\nCAB-1;Kabel;10\n\n;;\nCAB-2;Wtyk\n"

	table, err := ReadCSV(strings.NewReader(input), ';')
	require.NoError(t, err)

	assert.Equal(t, []string{"Indeks", "Nazwa", "Stan"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, 1, table.Rows[0].Line)
	assert.Equal(t, "CAB-1", table.Rows[0].Get("Indeks"))
	assert.Equal(t, "10", table.Rows[0].Get("Stan"))

	assert.Equal(t, 4, table.Rows[1].Line)
	assert.Equal(t, "", table.Rows[1].Get("Stan"), "ragged rows are padded")
}

func TestReadCSVEmptyFileIsStructural(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""), ',')
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStructural))

	_, err = ReadCSV(strings.NewReader("\xEF\xBB\xBF"), ',')
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStructural))

	_, err = ReadCSV(strings.NewReader(" , ,\n1,2,3\n"), ',')
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStructural))
}

func TestReadCSVNumbersFromHeaderLine(t *testing.T) {
	table, err := ReadCSV(strings.NewReader("\n\nKAT,Nazwa\nKAT-1,Kabel\nKAT-2,\nKAT-3,Wtyk\n"), ',')
	require.NoError(t, err)
	require.Len(t, table.Rows, 3)
	for i, row := range table.Rows {
		assert.Equal(t, i+1, row.Line)
	}
}

func TestReadCSVBrokenStreamKeepsEarlierRows(t *testing.T) {
	cause := errors.New("connection reset")
	input := io.MultiReader(strings.NewReader("Indeks;Nazwa\nCAB-1;Kabel\nCAB-2;Wtyk\n"), iotest.ErrReader(cause))

	table, err := ReadCSV(input, ';')
	require.Error(t, err)
	assert.False(t, pkgerrors.Is(err, pkgerrors.CodeStructural))
	assert.ErrorIs(t, err, cause)

	var malformed *MalformedError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, 3, malformed.Row)
	require.NotNil(t, table)
	assert.Equal(t, []string{"Indeks", "Nazwa"}, table.Headers)
	assert.Len(t, table.Rows, 2)

	_, err = ReadCSV(iotest.ErrReader(cause), ';')
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStructural))
}

func TestReadCSVHeaderOnly(t *testing.T) {
	table, err := ReadCSV(strings.NewReader("catalog_number,name,unit\n"), ',')
	require.NoError(t, err)
	assert.Empty(t, table.Rows)
	assert.Empty(t, table.MissingHeaders("CATALOG_NUMBER", "Name", "unit"))
	assert.Equal(t, []string{"category"}, table.MissingHeaders("unit", "category"))
}

func TestExcelRoundTrip(t *testing.T) {
	data, err := WriteExcel("Stock", []string{"Indeks", "Nazwa", "Cena"},
		[]string{"CAB-1", "Kabel", "25,50"},
		[]string{"", "", ""},
		[]string{"CAB-2", "Wtyk", "3"},
	)
	require.NoError(t, err)

	table, err := ReadExcel(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"Indeks", "Nazwa", "Cena"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, 1, table.Rows[0].Line)
	assert.Equal(t, "25,50", table.Rows[0].Get("Cena"))
	assert.Equal(t, 3, table.Rows[1].Line)
}

func TestReadExcelRejectsGarbage(t *testing.T) {
	_, err := ReadExcel(strings.NewReader("not a workbook"))
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStructural))
}

func TestReadDispatchesOnExtension(t *testing.T) {
	table, fileType, err := Read("stock.CSV", strings.NewReader("a;b\n1;2\n"), ';')
	require.NoError(t, err)
	assert.Equal(t, enums.FileTypeCSV, fileType)
	assert.Len(t, table.Rows, 1)

	_, _, err = Read("stock.pdf", strings.NewReader(""), ';')
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestParseDecimal(t *testing.T) {
	cases := map[string]string{
		"25,50":      "25.5",
		"25.50":      "25.5",
		" 1 234,5 ":  "1234.5",
		"1\u00a0234": "1234",
		"1.234,56":   "1234.56",
		"1,234.56":   "1234.56",
		"-3":         "-3",
	}
	for raw, want := range cases {
		got, err := ParseDecimal(raw)
		require.NoError(t, err, raw)
		assert.True(t, got.Equal(decimal.RequireFromString(want)), "%q -> %s", raw, got)
	}

	_, err := ParseDecimal("   ")
	assert.ErrorIs(t, err, ErrEmptyNumber)
	_, err = ParseDecimal("abc")
	assert.Error(t, err)
}

func TestParseOptionalDecimal(t *testing.T) {
	got, err := ParseOptionalDecimal("")
	require.NoError(t, err)
	assert.False(t, got.Valid)

	got, err = ParseOptionalDecimal("7,5")
	require.NoError(t, err)
	assert.True(t, got.Valid)
	assert.Equal(t, "7.5", got.Decimal.String())

	_, err = ParseOptionalDecimal("x")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ';', []string{"Indeks", "Nazwa"}, []string{"CAB-1", "Kabel; czarny"}))
	assert.Equal(t, "Indeks;Nazwa\nCAB-1;\"Kabel; czarny\"\n", buf.String())
}
