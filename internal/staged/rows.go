package staged

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/materials-ledger/internal/tabular"
	"github.com/angelmondragon/materials-ledger/pkg/db/models"
)

type catalogRow struct {
	line            int
	catalogNumber   string
	name            string
	unit            string
	defaultQuantity decimal.NullDecimal
	category        string
	supplier        string
	unitPrice       decimal.NullDecimal
}

func (r catalogRow) classified() models.ClassifiedRow {
	return models.ClassifiedRow{
		Row:             r.line,
		CatalogNumber:   r.catalogNumber,
		Name:            r.name,
		Unit:            r.unit,
		DefaultQuantity: r.defaultQuantity,
		Category:        r.category,
		Supplier:        r.supplier,
		UnitPrice:       r.unitPrice,
	}
}

// parseCatalogRow reads a row through headers, the lower-cased header index
// of the file.
func parseCatalogRow(row tabular.Row, headers map[string]string) (catalogRow, []models.RowError) {
	get := func(name string) string {
		h, ok := headers[name]
		if !ok {
			return ""
		}
		return row.Get(h)
	}
	out := catalogRow{
		line:          row.Line,
		catalogNumber: get("catalog_number"),
		name:          get("name"),
		unit:          get("unit"),
		category:      get("category"),
		supplier:      get("supplier"),
	}

	var errs []models.RowError
	for _, field := range RequiredHeaders {
		if get(field) == "" {
			errs = append(errs, models.RowError{Row: row.Line, Field: field, Message: field + " is required"})
		}
	}
	for _, numeric := range []struct {
		field string
		dst   *decimal.NullDecimal
	}{
		{"default_quantity", &out.defaultQuantity},
		{"unit_price", &out.unitPrice},
	} {
		raw := get(numeric.field)
		v, err := tabular.ParseOptionalDecimal(raw)
		switch {
		case err != nil:
			errs = append(errs, models.RowError{Row: row.Line, Field: numeric.field, Value: raw, Message: numeric.field + " is not a number"})
		case v.Valid && v.Decimal.IsNegative():
			errs = append(errs, models.RowError{Row: row.Line, Field: numeric.field, Value: raw, Message: numeric.field + " must not be negative"})
		default:
			*numeric.dst = v
		}
	}
	return out, errs
}
