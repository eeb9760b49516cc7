package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	pkgerrors "github.com/angelmondragon/materials-ledger/pkg/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// MalformedError reports a data record the CSV reader could not parse.
// ReadCSV returns it together with the rows read before it.
type MalformedError struct {
	Row int
	Err error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed csv at row %d: %v", e.Row, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// ReadCSV parses a delimited file with a mandatory header row. A leading
// UTF-8 BOM is dropped, ragged rows are tolerated and blank lines skipped.
// Only an empty file or an unreadable header is structural; a bad record
// further down yields the partial table and a *MalformedError.
func ReadCSV(r io.Reader, delimiter rune) (*Table, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, err
		}
	}

	reader := csv.NewReader(br)
	if delimiter != 0 {
		reader.Comma = delimiter
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, pkgerrors.New(pkgerrors.CodeStructural, "file is empty")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStructural, err, "cannot read header row")
	}
	headerLine, _ := reader.FieldPos(0)

	var (
		records [][]string
		lines   []int
		last    = headerLine
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			table, buildErr := buildTable(header, records, lines)
			if buildErr != nil {
				return nil, buildErr
			}
			return table, &MalformedError{Row: failedLine(err, last) - headerLine, Err: err}
		}
		last, _ = reader.FieldPos(0)
		records = append(records, record)
		lines = append(lines, last-headerLine)
	}
	return buildTable(header, records, lines)
}

// failedLine is the physical line a read error belongs to. Errors from the
// underlying reader carry no position and are pinned after the last record.
func failedLine(err error, last int) int {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) && parseErr.StartLine > 0 {
		return parseErr.StartLine
	}
	return last + 1
}

// WriteCSV renders headers plus rows with the given delimiter.
func WriteCSV(w io.Writer, delimiter rune, headers []string, rows ...[]string) error {
	writer := csv.NewWriter(w)
	if delimiter != 0 {
		writer.Comma = delimiter
	}
	if err := writer.Write(headers); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
