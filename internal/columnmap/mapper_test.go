package columnmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/materials-ledger/pkg/errors"
)

func TestMapTemplateHeaders(t *testing.T) {
	m := New(DefaultConfig())
	headers := []string{"Indeks", "Nazwa", "Stan", "JM", "Cena", "Magazyn", "Dostawca", "KodKreskowy", "EAN"}

	got := m.Map(headers)

	assert.Equal(t, Mapping{
		FieldPartNumber:        "Indeks",
		FieldName:              "Nazwa",
		FieldQuantity:          "Stan",
		FieldUnit:              "JM",
		FieldUnitPrice:         "Cena",
		FieldWarehouseLocation: "Magazyn",
		FieldSupplier:          "Dostawca",
		FieldBarcode:           "KodKreskowy",
		FieldEANCode:           "EAN",
	}, got)
	_, ok := got.Header(FieldDescription)
	assert.False(t, ok, "unmapped fields must be absent")
}

func TestMapPrefersExactOverSubstring(t *testing.T) {
	m := New(DefaultConfig())
	got := m.Map([]string{"Cena zakupu", "cena"})
	assert.Equal(t, "cena", got[FieldUnitPrice])
}

func TestMapFallsBackToSubstring(t *testing.T) {
	m := New(DefaultConfig())
	got := m.Map([]string{"Nazwa produktu", "Stan magazynowy", "Unit of measure"})
	assert.Equal(t, "Nazwa produktu", got[FieldName])
	assert.Equal(t, "Stan magazynowy", got[FieldQuantity])
	assert.Equal(t, "Unit of measure", got[FieldUnit])
}

func TestMapSynonymOrderWinsOverHeaderOrder(t *testing.T) {
	m := New(Config{
		Fields:   []Field{FieldPartNumber},
		Synonyms: map[Field][]string{FieldPartNumber: {"sku", "code"}},
	})
	got := m.Map([]string{"Code", "SKU"})
	assert.Equal(t, "SKU", got[FieldPartNumber])
}

func TestMapIsDeterministic(t *testing.T) {
	m := New(DefaultConfig())
	headers := []string{"Part Number", "Product Name", "Qty", "Price", "Warehouse", "Vendor"}
	first := m.Map(headers)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, m.Map(headers))
	}
}

func TestSynonymsReturnsCopy(t *testing.T) {
	m := New(DefaultConfig())
	syns := m.Synonyms()
	syns[FieldName][0] = "mutated"
	delete(syns, FieldQuantity)

	again := m.Synonyms()
	assert.Equal(t, "nazwa", again[FieldName][0])
	assert.Contains(t, again, FieldQuantity)
}

func TestConfigIsCopiedOnNew(t *testing.T) {
	cfg := DefaultConfig()
	m := New(cfg)
	cfg.Synonyms[FieldName] = []string{"other"}

	assert.Equal(t, "Nazwa", m.Map([]string{"Nazwa"})[FieldName])
}

func TestValidateReportsMissingHeaders(t *testing.T) {
	m := New(DefaultConfig())
	err := m.Validate(Mapping{FieldPartNumber: "Kod", FieldName: "nazwa"}, []string{"Nazwa", "Ilosc"})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStructural))

	require.NoError(t, m.Validate(Mapping{FieldName: "NAZWA"}, []string{"Nazwa"}))
}

func TestParseExplicit(t *testing.T) {
	m := New(DefaultConfig())
	got, err := m.ParseExplicit(map[string]string{"partNumber": "Kod", "name": "Opis", "unit": " "})
	require.NoError(t, err)
	assert.Equal(t, Mapping{FieldPartNumber: "Kod", FieldName: "Opis"}, got)

	_, err = m.ParseExplicit(map[string]string{"colour": "Kolor"})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestResolveUsesFileSpelling(t *testing.T) {
	got := Resolve(Mapping{FieldName: "nazwa"}, []string{"NAZWA"})
	assert.Equal(t, "NAZWA", got[FieldName])
	assert.Equal(t, "Kabel", got.Value(map[string]string{"NAZWA": " Kabel "}, FieldName))
}
