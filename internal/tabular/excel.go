package tabular

import (
	"bytes"
	"io"

	"github.com/xuri/excelize/v2"

	pkgerrors "github.com/angelmondragon/materials-ledger/pkg/errors"
)

// ReadExcel parses the first worksheet of a workbook; row 1 is the header.
func ReadExcel(r io.Reader) (*Table, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStructural, err, "cannot open workbook")
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStructural, "workbook has no worksheets")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStructural, err, "cannot read worksheet")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStructural, "file is empty")
	}

	lines := make([]int, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		lines = append(lines, i)
	}
	return buildTable(rows[0], rows[1:], lines)
}

// WriteExcel renders headers plus rows into a single-sheet workbook.
func WriteExcel(sheet string, headers []string, rows ...[]string) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := file.SetSheetName(file.GetSheetName(0), sheet); err != nil {
		return nil, err
	}

	all := append([][]string{headers}, rows...)
	for i, row := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := file.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
