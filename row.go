package rowdb

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/rowdb/internal/strpool"
	"github.com/hupe1980/rowdb/schema"
)

// AbsentHandle is the string handle of a String column that holds no value.
const AbsentHandle = strpool.FreeLink

// Value is the set of Go types that map one-to-one onto column types.
type Value interface {
	bool | uint8 | int8 | uint16 | int16 | uint32 | int32 | uint64 | int64 | float32 | float64 | string
}

// Row is a handle to one row of a DB.
//
// A Row stays valid across row creation. Any deletion shifts rows, so every
// Row obtained before it fails with ErrStaleRow afterwards.
type Row struct {
	db         *DB
	offset     int
	generation uint64
}

// Offset returns the byte offset of the row in the row table.
func (r Row) Offset() int { return r.offset }

// Index returns the position of the row in the table.
func (r Row) Index() int {
	if r.db == nil || r.db.schema == nil {
		return 0
	}
	return r.offset / r.db.schema.RowWidth()
}

// Get reads column i of r as T. T must be the Go type of the column's type:
// Get[uint32] for UI32, Get[string] for String and so on. An absent string
// reads as "".
func Get[T Value](r Row, i int) (T, error) {
	var zero T
	v, err := r.Value(i)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, mismatch(i, r.db.schema.Type(i), fmt.Sprintf("%T", zero))
	}
	return t, nil
}

// Set writes v to column i of r. T must be the Go type of the column's type.
func Set[T Value](r Row, i int, v T) error {
	return r.set(i, any(v), false)
}

// Value returns column i as its Go type.
func (r Row) Value(i int) (any, error) {
	b, ct, err := r.column(i)
	if err != nil {
		return nil, err
	}
	if ct != schema.String {
		return decode(ct, b), nil
	}

	h := binary.LittleEndian.Uint64(b)
	if h == AbsentHandle {
		return "", nil
	}
	s, err := r.db.pool.Get(h)
	if err != nil {
		return nil, translateError(err)
	}
	return s, nil
}

// SetValue writes v to column i. Besides the column's exact Go type it
// accepts int and float64, converted when the value fits the column.
func (r Row) SetValue(i int, v any) error {
	return r.set(i, v, true)
}

// Values returns every column of the row.
func (r Row) Values() ([]any, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	out := make([]any, r.db.schema.Columns())
	for i := range out {
		v, err := r.Value(i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Handle returns the raw string handle stored in String column i.
func (r Row) Handle(i int) (uint64, error) {
	b, ct, err := r.column(i)
	if err != nil {
		return 0, err
	}
	if ct != schema.String {
		return 0, mismatch(i, ct, "string handle")
	}
	return binary.LittleEndian.Uint64(b), nil
}

// IsAbsent reports whether String column i holds no value.
func (r Row) IsAbsent(i int) (bool, error) {
	h, err := r.Handle(i)
	if err != nil {
		return false, err
	}
	return h == AbsentHandle, nil
}

// Clear frees the string in String column i and marks it absent.
func (r Row) Clear(i int) error {
	b, ct, err := r.column(i)
	if err != nil {
		return err
	}
	if ct != schema.String {
		return mismatch(i, ct, "absent string")
	}
	return translateError(r.db.releaseString(b))
}

func (r Row) set(i int, v any, loose bool) error {
	b, ct, err := r.column(i)
	if err != nil {
		return err
	}

	v, err = convert(i, ct, v, loose)
	if err != nil {
		return err
	}

	if ct != schema.String {
		encode(ct, b, v)
		return nil
	}
	return translateError(r.db.storeString(b, v.(string)))
}

// check reports whether the row still addresses live data.
func (r Row) check() error {
	if r.db == nil {
		return ErrStaleRow
	}
	if err := r.db.checkOpen(); err != nil {
		return err
	}
	if r.generation != r.db.generation {
		return ErrStaleRow
	}
	if _, err := r.db.rows.Row(r.offset); err != nil {
		return fmt.Errorf("%w: %w", ErrStaleRow, err)
	}
	return nil
}

// column returns the bytes of column i.
func (r Row) column(i int) ([]byte, schema.ColumnType, error) {
	if err := r.check(); err != nil {
		return nil, 0, err
	}
	s := r.db.schema
	if !s.Has(i) {
		return nil, 0, outOfRange(i)
	}
	row, err := r.db.rows.Row(r.offset)
	if err != nil {
		return nil, 0, err
	}
	off := s.Offset(i)
	return row[off : off+s.Size(i)], s.Type(i), nil
}

// convert checks v against ct and returns it as the column's exact Go type.
// Loose conversion also accepts int and float64 values that fit.
func convert(i int, ct schema.ColumnType, v any, loose bool) (any, error) {
	if exact(ct, v) {
		return v, nil
	}
	if !loose {
		return nil, mismatch(i, ct, fmt.Sprintf("%T", v))
	}

	switch x := v.(type) {
	case int:
		if out, ok := fromInt(ct, x); ok {
			return out, nil
		}
		return nil, mismatch(i, ct, fmt.Sprintf("int(%d)", x))
	case float64:
		if ct == schema.F32 {
			return float32(x), nil
		}
	}
	return nil, mismatch(i, ct, fmt.Sprintf("%T", v))
}

func exact(ct schema.ColumnType, v any) bool {
	switch v.(type) {
	case bool:
		return ct == schema.Bool
	case uint8:
		return ct == schema.UI8
	case int8:
		return ct == schema.I8
	case uint16:
		return ct == schema.UI16
	case int16:
		return ct == schema.I16
	case uint32:
		return ct == schema.UI32
	case int32:
		return ct == schema.I32
	case uint64:
		return ct == schema.UI64
	case int64:
		return ct == schema.I64
	case float32:
		return ct == schema.F32
	case float64:
		return ct == schema.F64
	case string:
		return ct == schema.String
	default:
		return false
	}
}

func fromInt(ct schema.ColumnType, x int) (any, bool) {
	switch ct {
	case schema.UI8:
		return uint8(x), x >= 0 && x <= math.MaxUint8
	case schema.I8:
		return int8(x), x >= math.MinInt8 && x <= math.MaxInt8
	case schema.UI16:
		return uint16(x), x >= 0 && x <= math.MaxUint16
	case schema.I16:
		return int16(x), x >= math.MinInt16 && x <= math.MaxInt16
	case schema.UI32:
		return uint32(x), x >= 0 && uint64(x) <= math.MaxUint32
	case schema.I32:
		return int32(x), x >= math.MinInt32 && x <= math.MaxInt32
	case schema.UI64:
		return uint64(x), x >= 0
	case schema.I64:
		return int64(x), true
	case schema.F32:
		return float32(x), true
	case schema.F64:
		return float64(x), true
	default:
		return nil, false
	}
}

// decode reads a fixed-width column value.
func decode(ct schema.ColumnType, b []byte) any {
	switch ct {
	case schema.Bool:
		return b[0] != 0
	case schema.UI8:
		return b[0]
	case schema.I8:
		return int8(b[0])
	case schema.UI16:
		return binary.LittleEndian.Uint16(b)
	case schema.I16:
		return int16(binary.LittleEndian.Uint16(b))
	case schema.UI32:
		return binary.LittleEndian.Uint32(b)
	case schema.I32:
		return int32(binary.LittleEndian.Uint32(b))
	case schema.UI64:
		return binary.LittleEndian.Uint64(b)
	case schema.I64:
		return int64(binary.LittleEndian.Uint64(b))
	case schema.F32:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	case schema.F64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	default:
		return nil
	}
}

// encode writes a fixed-width column value. v must already be converted.
func encode(ct schema.ColumnType, b []byte, v any) {
	switch ct {
	case schema.Bool:
		b[0] = 0
		if v.(bool) {
			b[0] = 1
		}
	case schema.UI8:
		b[0] = v.(uint8)
	case schema.I8:
		b[0] = uint8(v.(int8))
	case schema.UI16:
		binary.LittleEndian.PutUint16(b, v.(uint16))
	case schema.I16:
		binary.LittleEndian.PutUint16(b, uint16(v.(int16)))
	case schema.UI32:
		binary.LittleEndian.PutUint32(b, v.(uint32))
	case schema.I32:
		binary.LittleEndian.PutUint32(b, uint32(v.(int32)))
	case schema.UI64:
		binary.LittleEndian.PutUint64(b, v.(uint64))
	case schema.I64:
		binary.LittleEndian.PutUint64(b, uint64(v.(int64)))
	case schema.F32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(v.(float32)))
	case schema.F64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v.(float64)))
	}
}
