package enums

import "fmt"

// ImportKind names an ingestion pipeline.
type ImportKind string

const (
	ImportKindDirect ImportKind = "direct"
	ImportKindStaged ImportKind = "staged"
)

var validImportKinds = []ImportKind{
	ImportKindDirect,
	ImportKindStaged,
}

// String implements fmt.Stringer.
func (i ImportKind) String() string {
	return string(i)
}

// IsValid reports whether the value is a known import kind.
func (i ImportKind) IsValid() bool {
	for _, candidate := range validImportKinds {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseImportKind converts raw input into ImportKind.
func ParseImportKind(value string) (ImportKind, error) {
	for _, candidate := range validImportKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid import kind %q", value)
}
