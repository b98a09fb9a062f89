package source

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
)

// sniffWindow is how many leading bytes are inspected to pick the
// delimiter.
const sniffWindow = 4096

// delimitedReader streams rows from a csv/tsv/txt file. Rows are decoded
// chunk by chunk; the file is never held in memory.
type delimitedReader struct {
	csv     *csv.Reader
	closer  io.Closer
	headers []string
}

// NewDelimitedReader wraps r with BOM stripping and UTF-8 sanitization,
// sniffs the delimiter from the first line, and consumes the header row.
// A file with no header row at all fails with ErrInvalidFormat; a
// header-only file is valid and yields zero rows.
func NewDelimitedReader(r io.Reader) (Reader, error) {
	buf := bufio.NewReader(wrapReader(r))

	delim, err := sniffDelimiter(buf)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(buf)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	headers, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: file has no header row", ErrInvalidFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable header row: %v", ErrInvalidFormat, err)
	}

	dr := &delimitedReader{csv: cr, headers: headers}
	if c, ok := r.(io.Closer); ok {
		dr.closer = c
	}
	return dr, nil
}

func (d *delimitedReader) Headers() []string { return d.headers }

func (d *delimitedReader) Next() ([]string, error) {
	return d.csv.Read()
}

func (d *delimitedReader) Close() error {
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}

// sniffDelimiter picks comma, semicolon, or tab by counting occurrences in
// the first line of the peeked window. Quoted fields are skipped so commas
// inside values do not vote. Defaults to comma.
func sniffDelimiter(buf *bufio.Reader) (rune, error) {
	window, err := buf.Peek(sniffWindow)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	counts := map[byte]int{',': 0, ';': 0, '\t': 0}
	inQuotes := false
	for _, b := range window {
		switch {
		case b == '"':
			inQuotes = !inQuotes
		case b == '\n' && !inQuotes:
			return pickDelimiter(counts), nil
		case !inQuotes:
			if _, tracked := counts[b]; tracked {
				counts[b]++
			}
		}
	}
	return pickDelimiter(counts), nil
}

func pickDelimiter(counts map[byte]int) rune {
	best := byte(',')
	for _, c := range []byte{';', '\t'} {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return rune(best)
}
