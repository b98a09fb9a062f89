// Package mapping resolves the caller-supplied header-to-field mapping
// used to project raw file columns onto contact fields.
package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Field is a recognized contact target field.
type Field string

const (
	FieldClientNumber Field = "clientNumber"
	FieldLastName     Field = "lastName"
	FieldFirstName    Field = "firstName"
	FieldCompanyName  Field = "companyName"
	FieldRole         Field = "role"
	FieldEmail        Field = "email"
	FieldPhone        Field = "phone"
	FieldProfile      Field = "profile"
	FieldStatus       Field = "status"
)

// Fields lists every recognized target field.
var Fields = []Field{
	FieldClientNumber,
	FieldLastName,
	FieldFirstName,
	FieldCompanyName,
	FieldRole,
	FieldEmail,
	FieldPhone,
	FieldProfile,
	FieldStatus,
}

// ErrMissingMapping is returned when the mapping cannot be parsed or a
// mandatory target field has no source column assigned. It aborts the
// import before any row is read.
var ErrMissingMapping = errors.New("column mapping missing or incomplete")

// Mapping maps a target field to the source column header that feeds it.
type Mapping map[Field]string

// Parse decodes a pre-serialized JSON mapping, e.g.
// {"clientNumber":"ClientID","phone":"Phone"}.
func Parse(raw string) (Mapping, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrMissingMapping)
	}

	var m Mapping
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingMapping, err)
	}
	return m, nil
}

// Validate checks that every mandatory target field has a non-empty source
// column assigned. Client number is always mandatory; phone only in strict
// mode. Runs once, before any row is processed.
func (m Mapping) Validate(strict bool) error {
	mandatory := []Field{FieldClientNumber}
	if strict {
		mandatory = append(mandatory, FieldPhone)
	}

	for _, f := range mandatory {
		if strings.TrimSpace(m[f]) == "" {
			return fmt.Errorf("%w: no source column for mandatory field %q", ErrMissingMapping, f)
		}
	}
	return nil
}

// Resolved binds a validated mapping to the column positions of a concrete
// header row.
type Resolved struct {
	idx map[Field]int
}

// Resolve matches each mapped source column against the header row,
// case-insensitively. A source column absent from the header resolves to no
// position; rows then yield an empty value for that field.
func (m Mapping) Resolve(headers []string) *Resolved {
	r := &Resolved{idx: make(map[Field]int, len(m))}

	for field, col := range m {
		col = strings.TrimSpace(col)
		if col == "" {
			continue
		}
		for i, h := range headers {
			if strings.EqualFold(strings.TrimSpace(h), col) {
				r.idx[field] = i
				break
			}
		}
	}
	return r
}

// Value extracts the trimmed value for a target field from a raw row.
// Returns "" when the field is unmapped or the row is short.
func (r *Resolved) Value(row []string, f Field) string {
	i, ok := r.idx[f]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// mapped reports whether the field resolved to a header column.
func (r *Resolved) mapped(f Field) bool {
	_, ok := r.idx[f]
	return ok
}
