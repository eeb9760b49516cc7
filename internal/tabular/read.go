package tabular

import (
	"io"

	"github.com/angelmondragon/materials-ledger/pkg/enums"
)

// Read dispatches on the filename extension. A *MalformedError comes back
// with the rows parsed before it.
func Read(filename string, r io.Reader, delimiter rune) (*Table, enums.FileType, error) {
	fileType, err := DetectFileType(filename)
	if err != nil {
		return nil, "", err
	}
	var table *Table
	switch fileType {
	case enums.FileTypeXLSX:
		table, err = ReadExcel(r)
	default:
		table, err = ReadCSV(r, delimiter)
	}
	return table, fileType, err
}
