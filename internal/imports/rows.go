package imports

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/materials-ledger/internal/columnmap"
	"github.com/angelmondragon/materials-ledger/internal/tabular"
	"github.com/angelmondragon/materials-ledger/pkg/db/models"
	"github.com/angelmondragon/materials-ledger/pkg/enums"
)

// stockRow is one parsed line of a direct import.
type stockRow struct {
	line              int
	partNumber        string
	name              string
	quantity          decimal.NullDecimal
	rawQuantity       string
	unit              string
	unitPrice         decimal.NullDecimal
	warehouseLocation string
	supplier          string
	barcode           string
	eanCode           string
	externalID        string
	description       string
}

// parseStockRow extracts the mapped fields of row. Every problem found is
// reported; a row with any error must be skipped.
func parseStockRow(row tabular.Row, mapping columnmap.Mapping) (stockRow, []models.RowError) {
	get := func(f columnmap.Field) string { return mapping.Value(row.Values, f) }
	out := stockRow{
		line:              row.Line,
		partNumber:        get(columnmap.FieldPartNumber),
		name:              get(columnmap.FieldName),
		rawQuantity:       get(columnmap.FieldQuantity),
		unit:              get(columnmap.FieldUnit),
		warehouseLocation: get(columnmap.FieldWarehouseLocation),
		supplier:          get(columnmap.FieldSupplier),
		barcode:           get(columnmap.FieldBarcode),
		eanCode:           get(columnmap.FieldEANCode),
		externalID:        get(columnmap.FieldExternalID),
		description:       get(columnmap.FieldDescription),
	}

	var errs []models.RowError
	if out.partNumber == "" {
		errs = append(errs, models.RowError{Row: row.Line, Field: string(columnmap.FieldPartNumber), Message: "part number is required"})
	}
	if out.name == "" {
		errs = append(errs, models.RowError{Row: row.Line, Field: string(columnmap.FieldName), Message: "name is required"})
	}

	qty, err := tabular.ParseOptionalDecimal(out.rawQuantity)
	switch {
	case err != nil:
		errs = append(errs, models.RowError{Row: row.Line, Field: string(columnmap.FieldQuantity), Value: out.rawQuantity, Message: "quantity is not a number"})
	case qty.Valid && qty.Decimal.IsNegative():
		errs = append(errs, models.RowError{Row: row.Line, Field: string(columnmap.FieldQuantity), Value: out.rawQuantity, Message: "quantity must not be negative"})
	default:
		out.quantity = qty
	}

	rawPrice := get(columnmap.FieldUnitPrice)
	price, err := tabular.ParseOptionalDecimal(rawPrice)
	switch {
	case err != nil:
		errs = append(errs, models.RowError{Row: row.Line, Field: string(columnmap.FieldUnitPrice), Value: rawPrice, Message: "unit price is not a number"})
	case price.Valid && price.Decimal.IsNegative():
		errs = append(errs, models.RowError{Row: row.Line, Field: string(columnmap.FieldUnitPrice), Value: rawPrice, Message: "unit price must not be negative"})
	default:
		out.unitPrice = price
	}
	return out, errs
}

// stamp records which import last touched an item.
type stamp struct {
	source   enums.StockSource
	filename string
	at       time.Time
}

func sourceFor(fileType enums.FileType) enums.StockSource {
	if fileType == enums.FileTypeXLSX {
		return enums.StockSourceExcelImport
	}
	return enums.StockSourceCSVImport
}

func (s stamp) newItem(row stockRow) *models.StockItem {
	item := &models.StockItem{
		PartNumber:        row.partNumber,
		Name:              row.name,
		QuantityAvailable: decimal.Zero,
		QuantityReserved:  decimal.Zero,
		Unit:              models.DefaultUnit,
		UnitPrice:         row.unitPrice,
		Currency:          enums.DefaultCurrency,
		WarehouseLocation: optional(row.warehouseLocation),
		Supplier:          optional(row.supplier),
		Barcode:           optional(row.barcode),
		EANCode:           optional(row.eanCode),
		ExternalID:        optional(row.externalID),
		Description:       optional(row.description),
		Active:            true,
	}
	if row.quantity.Valid {
		item.QuantityAvailable = row.quantity.Decimal
	}
	if row.unit != "" {
		item.Unit = row.unit
	}
	s.apply(item)
	return item
}

// merge copies the non-empty fields of row onto item. Blank cells keep the
// stored value. The reservation counter is never touched.
func (s stamp) merge(item *models.StockItem, row stockRow) error {
	if row.quantity.Valid && row.quantity.Decimal.LessThan(item.QuantityReserved) {
		return belowReserved(row, item.QuantityReserved)
	}

	item.Name = row.name
	if row.quantity.Valid {
		item.QuantityAvailable = row.quantity.Decimal
	}
	if row.unit != "" {
		item.Unit = row.unit
	}
	if row.unitPrice.Valid {
		item.UnitPrice = row.unitPrice
	}
	assign(&item.WarehouseLocation, row.warehouseLocation)
	assign(&item.Supplier, row.supplier)
	assign(&item.Barcode, row.barcode)
	assign(&item.EANCode, row.eanCode)
	assign(&item.ExternalID, row.externalID)
	assign(&item.Description, row.description)
	s.apply(item)
	return nil
}

func (s stamp) apply(item *models.StockItem) {
	at := s.at
	file := s.filename
	item.Source = s.source
	item.LastImportAt = &at
	item.LastImportFile = &file
}

func belowReserved(row stockRow, reserved decimal.Decimal) *rowError {
	return &rowError{models.RowError{
		Row:     row.line,
		Field:   string(columnmap.FieldQuantity),
		Value:   row.rawQuantity,
		Message: fmt.Sprintf("quantity below reserved amount %s", reserved.String()),
	}}
}

// rowError carries a row-level rejection out of the reconciler.
type rowError struct {
	models.RowError
}

func (e *rowError) Error() string {
	return fmt.Sprintf("row %d %s: %s", e.Row, e.Field, e.Message)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func assign(dst **string, v string) {
	if v != "" {
		*dst = &v
	}
}
