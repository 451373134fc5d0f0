package schema

import "fmt"

// ColumnType identifies the fixed-width encoding of a column.
//
// The ordinal values are persisted as single-byte tags in database files.
// Reordering or inserting values is a breaking change to the file format.
type ColumnType uint8

const (
	Bool ColumnType = iota
	UI8
	I8
	UI16
	I16
	UI32
	I32
	UI64
	I64
	F32
	F64
	// String columns hold an 8-byte handle into the string pool.
	String

	numColumnTypes
)

var columnTypeNames = [...]string{
	Bool:   "bool",
	UI8:    "ui8",
	I8:     "i8",
	UI16:   "ui16",
	I16:    "i16",
	UI32:   "ui32",
	I32:    "i32",
	UI64:   "ui64",
	I64:    "i64",
	F32:    "f32",
	F64:    "f64",
	String: "string",
}

// Valid reports whether t is a known column type.
func (t ColumnType) Valid() bool {
	return t < numColumnTypes
}

// Size returns the number of bytes a column of type t occupies in a row.
// It returns 0 for unknown types.
func (t ColumnType) Size() int {
	switch t {
	case Bool, UI8, I8:
		return 1
	case UI16, I16:
		return 2
	case UI32, I32, F32:
		return 4
	case UI64, I64, F64, String:
		return 8
	default:
		return 0
	}
}

func (t ColumnType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("ColumnType(%d)", uint8(t))
	}
	return columnTypeNames[t]
}

// ParseColumnType returns the column type with the given name.
func ParseColumnType(name string) (ColumnType, error) {
	for i, n := range columnTypeNames {
		if n == name {
			return ColumnType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidColumnType, name)
}
