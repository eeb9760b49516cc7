package columnmap

// Field is a canonical stock ledger field that an import column can feed.
type Field string

const (
	FieldPartNumber        Field = "partNumber"
	FieldName              Field = "name"
	FieldQuantity          Field = "quantity"
	FieldUnit              Field = "unit"
	FieldUnitPrice         Field = "unitPrice"
	FieldWarehouseLocation Field = "warehouseLocation"
	FieldSupplier          Field = "supplier"
	FieldBarcode           Field = "barcode"
	FieldEANCode           Field = "eanCode"
	FieldExternalID        Field = "externalId"
	FieldDescription       Field = "description"
)

// Config holds the ordered synonym list for every field the mapper resolves.
// Earlier synonyms win over later ones.
type Config struct {
	Fields   []Field
	Synonyms map[Field][]string
}

// DefaultConfig returns the Polish/English synonym table used by warehouse
// and supplier exports.
func DefaultConfig() Config {
	return Config{
		Fields: []Field{
			FieldPartNumber,
			FieldName,
			FieldQuantity,
			FieldUnit,
			FieldUnitPrice,
			FieldWarehouseLocation,
			FieldSupplier,
			FieldBarcode,
			FieldEANCode,
			FieldExternalID,
			FieldDescription,
		},
		Synonyms: map[Field][]string{
			FieldPartNumber:        {"indeks", "index", "part number", "part_number", "partnumber", "part no", "numer katalogowy", "sku", "symbol"},
			FieldName:              {"nazwa", "name", "nazwa towaru", "product name", "towar", "produkt"},
			FieldQuantity:          {"stan", "ilość", "ilosc", "quantity", "qty", "stock"},
			FieldUnit:              {"jm", "j.m.", "jednostka", "unit", "uom"},
			FieldUnitPrice:         {"cena", "cena netto", "unit price", "unit_price", "price"},
			FieldWarehouseLocation: {"magazyn", "lokalizacja", "warehouse", "location"},
			FieldSupplier:          {"dostawca", "supplier", "vendor", "producent"},
			FieldBarcode:           {"kodkreskowy", "kod kreskowy", "barcode"},
			FieldEANCode:           {"ean", "ean13", "gtin"},
			FieldExternalID:        {"external id", "external_id", "id zewnętrzne", "zewnetrzne id"},
			FieldDescription:       {"opis", "description"},
		},
	}
}

// IsKnown reports whether f is configured.
func (c Config) IsKnown(f Field) bool {
	_, ok := c.Synonyms[f]
	return ok
}

// Clone returns a deep copy so callers cannot mutate a shared table.
func (c Config) Clone() Config {
	out := Config{
		Fields:   append([]Field(nil), c.Fields...),
		Synonyms: make(map[Field][]string, len(c.Synonyms)),
	}
	for f, syns := range c.Synonyms {
		out.Synonyms[f] = append([]string(nil), syns...)
	}
	return out
}
