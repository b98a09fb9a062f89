package source

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// spreadsheetReader serves rows decoded from the first sheet of an xlsx
// workbook. The zip container forces a whole-file decode; that cost is
// bounded by the upload size ceiling enforced at the HTTP boundary.
type spreadsheetReader struct {
	headers []string
	rows    [][]string
	pos     int
}

// NewSpreadsheetReader decodes the workbook and takes the first sheet's
// first row as headers. Fewer than a header row plus one data row fails
// with ErrInvalidFormat.
func NewSpreadsheetReader(r io.Reader) (Reader, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrInvalidFormat)
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: spreadsheet needs a header row and at least one data row", ErrInvalidFormat)
	}

	return &spreadsheetReader{headers: rows[0], rows: rows[1:]}, nil
}

func (s *spreadsheetReader) Headers() []string { return s.headers }

// Next pads short rows with empty strings so every row spans the header.
func (s *spreadsheetReader) Next() ([]string, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}

	row := s.rows[s.pos]
	s.pos++

	if len(row) < len(s.headers) {
		padded := make([]string, len(s.headers))
		copy(padded, row)
		row = padded
	}
	return row, nil
}

func (s *spreadsheetReader) Close() error { return nil }
