package enums

import "fmt"

// FileType is the tabular format of an uploaded import file.
type FileType string

const (
	FileTypeCSV  FileType = "csv"
	FileTypeXLSX FileType = "xlsx"
)

var validFileTypes = []FileType{
	FileTypeCSV,
	FileTypeXLSX,
}

// String implements fmt.Stringer.
func (f FileType) String() string {
	return string(f)
}

// IsValid reports whether the value is a known file type.
func (f FileType) IsValid() bool {
	for _, candidate := range validFileTypes {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFileType converts raw input into FileType.
func ParseFileType(value string) (FileType, error) {
	for _, candidate := range validFileTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid file type %q", value)
}
