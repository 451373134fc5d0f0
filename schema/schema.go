// Package schema describes the fixed-width row layout of a database.
//
// A Schema is an ordered list of column types. Every row stores the raw
// bytes of its columns back to back in schema order, so the byte offset
// of a column inside a row is the sum of the widths of the columns
// before it.
package schema

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNoColumns is returned when a schema is built without columns.
	ErrNoColumns = errors.New("schema: no columns")

	// ErrTooManyColumns is returned when the column count does not fit in 16 bits.
	ErrTooManyColumns = errors.New("schema: too many columns")

	// ErrInvalidColumnType is returned for an unknown column type.
	ErrInvalidColumnType = errors.New("schema: invalid column type")
)

// MaxColumns is the largest number of columns a schema can hold.
const MaxColumns = math.MaxUint16

// Schema is an immutable ordered list of column types.
type Schema struct {
	types   []ColumnType
	offsets []int
	width   int
}

// New builds a schema from the given column types.
func New(types ...ColumnType) (*Schema, error) {
	if len(types) == 0 {
		return nil, ErrNoColumns
	}
	if len(types) > MaxColumns {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyColumns, len(types), MaxColumns)
	}

	s := &Schema{
		types:   make([]ColumnType, len(types)),
		offsets: make([]int, len(types)),
	}
	for i, t := range types {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: column %d has tag %d", ErrInvalidColumnType, i, uint8(t))
		}
		s.types[i] = t
		s.offsets[i] = s.width
		s.width += t.Size()
	}
	return s, nil
}

// Columns returns the number of columns.
func (s *Schema) Columns() int { return len(s.types) }

// Type returns the type of column i. It panics if i is out of range.
func (s *Schema) Type(i int) ColumnType { return s.types[i] }

// Types returns a copy of the column types in schema order.
func (s *Schema) Types() []ColumnType {
	out := make([]ColumnType, len(s.types))
	copy(out, s.types)
	return out
}

// Size returns the byte width of column i.
func (s *Schema) Size(i int) int { return s.types[i].Size() }

// Offset returns the byte offset of column i within a row.
func (s *Schema) Offset(i int) int { return s.offsets[i] }

// RowWidth returns the number of bytes occupied by one row.
func (s *Schema) RowWidth() int { return s.width }

// Has reports whether i is a valid column index.
func (s *Schema) Has(i int) bool { return i >= 0 && i < len(s.types) }

func (s *Schema) String() string {
	return fmt.Sprintf("schema%v", s.types)
}
