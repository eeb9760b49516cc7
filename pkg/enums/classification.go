package enums

import "fmt"

// RowClassification is the bucket a staged import row is sorted into.
type RowClassification string

const (
	RowNew      RowClassification = "new"
	RowExisting RowClassification = "existing"
	RowError    RowClassification = "error"
)

var validRowClassifications = []RowClassification{
	RowNew,
	RowExisting,
	RowError,
}

// IsValid reports whether the value is a known row classification.
func (r RowClassification) IsValid() bool {
	for _, candidate := range validRowClassifications {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRowClassification converts raw input into RowClassification.
func ParseRowClassification(value string) (RowClassification, error) {
	for _, candidate := range validRowClassifications {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid row classification %q", value)
}
