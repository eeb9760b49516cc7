package tabular

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrEmptyNumber is returned for cells that hold no digits at all.
var ErrEmptyNumber = errors.New("empty number")

var numberSpaces = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "\t", "")

// ParseDecimal reads spreadsheet numbers written with either decimal
// separator: "25,50" and "25.50" both yield 25.50, and "1 234,5" or
// "1.234,5" yield 1234.5.
func ParseDecimal(raw string) (decimal.Decimal, error) {
	s := numberSpaces.Replace(strings.TrimSpace(raw))
	if s == "" {
		return decimal.Decimal{}, ErrEmptyNumber
	}

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}
	return decimal.NewFromString(s)
}

// ParseOptionalDecimal treats an empty cell as absent rather than invalid.
func ParseOptionalDecimal(raw string) (decimal.NullDecimal, error) {
	d, err := ParseDecimal(raw)
	if errors.Is(err, ErrEmptyNumber) {
		return decimal.NullDecimal{}, nil
	}
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}
