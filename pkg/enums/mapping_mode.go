package enums

import "fmt"

// MappingMode selects how import headers are bound to ledger fields.
type MappingMode string

const (
	MappingModeAuto     MappingMode = "auto"
	MappingModeExplicit MappingMode = "explicit"
)

var validMappingModes = []MappingMode{
	MappingModeAuto,
	MappingModeExplicit,
}

// String implements fmt.Stringer.
func (m MappingMode) String() string {
	return string(m)
}

// IsValid reports whether the value is a known mapping mode.
func (m MappingMode) IsValid() bool {
	for _, candidate := range validMappingModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMappingMode converts raw input into MappingMode.
func ParseMappingMode(value string) (MappingMode, error) {
	for _, candidate := range validMappingModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid mapping mode %q", value)
}
