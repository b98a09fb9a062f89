// Package source turns a raw upload into a uniform sequence of rows.
//
// Two formats are recognized: delimited text (csv/tsv/txt), streamed row by
// row without materializing the file, and spreadsheets (xlsx/xls), decoded
// whole because the zip container cannot be streamed. Values are kept as
// raw strings so leading zeros and formatting survive.
package source

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrInvalidFormat aborts an import before any row is read: the file type
// is unrecognized, or a spreadsheet has fewer than a header plus one data
// row.
var ErrInvalidFormat = errors.New("invalid file format")

// Format identifies how the upload is decoded.
type Format int

const (
	FormatDelimited Format = iota
	FormatSpreadsheet
)

// Reader is a lazy, finite, non-restartable row sequence. Headers is valid
// once the Reader is constructed; Next returns io.EOF at stream end.
type Reader interface {
	Headers() []string
	Next() ([]string, error)
	Close() error
}

var delimitedExts = map[string]bool{
	".csv": true,
	".tsv": true,
	".txt": true,
}

var spreadsheetExts = map[string]bool{
	".xlsx": true,
	".xls":  true,
}

var delimitedTypes = map[string]bool{
	"text/csv":                  true,
	"text/tab-separated-values": true,
	"text/plain":                true,
	"application/csv":           true,
}

var spreadsheetTypes = map[string]bool{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.ms-excel":                                          true,
}

// Detect resolves the format from the file name, falling back to the
// declared media type. Unrecognized inputs fail with ErrInvalidFormat
// before any row is read.
func Detect(filename, contentType string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case delimitedExts[ext]:
		return FormatDelimited, nil
	case spreadsheetExts[ext]:
		return FormatSpreadsheet, nil
	}

	mediaType := contentType
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = mediaType[:i]
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	switch {
	case delimitedTypes[mediaType]:
		return FormatDelimited, nil
	case spreadsheetTypes[mediaType]:
		return FormatSpreadsheet, nil
	}

	return 0, fmt.Errorf("%w: unrecognized file type %q (%s)", ErrInvalidFormat, filename, contentType)
}

// Open detects the format and returns the matching row reader.
func Open(filename, contentType string, r io.Reader) (Reader, error) {
	format, err := Detect(filename, contentType)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatSpreadsheet:
		return NewSpreadsheetReader(r)
	default:
		return NewDelimitedReader(r)
	}
}
