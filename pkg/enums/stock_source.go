package enums

import "fmt"

// StockSource records how a stock item entered the ledger.
type StockSource string

const (
	StockSourceManual      StockSource = "manual"
	StockSourceCSVImport   StockSource = "csv_import"
	StockSourceExcelImport StockSource = "excel_import"
	StockSourceExternalAPI StockSource = "external_api"
)

var validStockSources = []StockSource{
	StockSourceManual,
	StockSourceCSVImport,
	StockSourceExcelImport,
	StockSourceExternalAPI,
}

// String implements fmt.Stringer.
func (s StockSource) String() string {
	return string(s)
}

// IsValid reports whether the value is a known stock source.
func (s StockSource) IsValid() bool {
	for _, candidate := range validStockSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockSource converts raw input into StockSource.
func ParseStockSource(value string) (StockSource, error) {
	for _, candidate := range validStockSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock source %q", value)
}
