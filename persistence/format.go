package persistence

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/rowdb/internal/strpool"
	"github.com/hupe1980/rowdb/schema"
)

const (
	// columnCountSize is the size of the leading column count.
	columnCountSize = 2
	// stringTableSizeSize is the size of the string table length field.
	stringTableSizeSize = 8
)

// ErrMalformed is returned when a file's declared sizes or tags are
// inconsistent with its contents.
var ErrMalformed = errors.New("malformed database file")

// Image is the decoded content of a database file.
type Image struct {
	Types   []schema.ColumnType
	Strings []byte
	Rows    []byte
}

// MetadataSize returns the size of the header for the given column count.
func MetadataSize(columns int) int {
	return columnCountSize + columns + stringTableSizeSize
}

// Size returns the encoded size of img.
func (img *Image) Size() int {
	return MetadataSize(len(img.Types)) + len(img.Strings) + len(img.Rows)
}

// StringTableOffset returns the file offset of the string pool.
func (img *Image) StringTableOffset() int {
	return MetadataSize(len(img.Types))
}

// RowTableOffset returns the file offset of the row table.
func (img *Image) RowTableOffset() int {
	return MetadataSize(len(img.Types)) + len(img.Strings)
}

// Encode writes img to w in the rowdb file format.
func Encode(w io.Writer, img *Image) (int64, error) {
	if len(img.Types) > schema.MaxColumns {
		return 0, fmt.Errorf("%w: %d columns", schema.ErrTooManyColumns, len(img.Types))
	}

	header := make([]byte, MetadataSize(len(img.Types)))
	binary.LittleEndian.PutUint16(header, uint16(len(img.Types)))
	for i, t := range img.Types {
		header[columnCountSize+i] = byte(t)
	}
	binary.LittleEndian.PutUint64(header[columnCountSize+len(img.Types):], uint64(len(img.Strings)))

	var written int64
	for _, part := range [][]byte{header, img.Strings, img.Rows} {
		if len(part) == 0 {
			continue
		}
		n, err := w.Write(part)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// Marshal returns the encoded bytes of img.
func Marshal(img *Image) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(img.Size())
	if _, err := Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a raw (uncompressed) database file. The returned image owns
// copies of the pool and row bytes, so data may be released afterwards.
func Decode(data []byte) (*Image, error) {
	if len(data) < columnCountSize {
		return nil, fmt.Errorf("%w: %d bytes is too short for a header", ErrMalformed, len(data))
	}

	columns := int(binary.LittleEndian.Uint16(data))
	if columns == 0 {
		return nil, fmt.Errorf("%w: zero columns", ErrMalformed)
	}

	metaSize := MetadataSize(columns)
	if len(data) < metaSize {
		return nil, fmt.Errorf("%w: %d bytes is too short for %d columns", ErrMalformed, len(data), columns)
	}

	img := &Image{Types: make([]schema.ColumnType, columns)}
	width := 0
	for i := range columns {
		t := schema.ColumnType(data[columnCountSize+i])
		if !t.Valid() {
			return nil, fmt.Errorf("%w: column %d has unknown type tag %d", ErrMalformed, i, uint8(t))
		}
		img.Types[i] = t
		width += t.Size()
	}

	stringTableSize := binary.LittleEndian.Uint64(data[columnCountSize+columns:])
	remaining := uint64(len(data) - metaSize)
	if stringTableSize > remaining {
		return nil, fmt.Errorf("%w: string table of %d bytes exceeds the %d bytes after the header",
			ErrMalformed, stringTableSize, remaining)
	}
	if stringTableSize%strpool.ChunkSize != 0 {
		return nil, fmt.Errorf("%w: string table size %d is not a multiple of %d",
			ErrMalformed, stringTableSize, strpool.ChunkSize)
	}

	rowStart := metaSize + int(stringTableSize)
	rowTableSize := len(data) - rowStart
	if rowTableSize%width != 0 {
		return nil, fmt.Errorf("%w: row table size %d is not a multiple of row width %d",
			ErrMalformed, rowTableSize, width)
	}

	img.Strings = bytes.Clone(data[metaSize:rowStart])
	img.Rows = bytes.Clone(data[rowStart:])
	return img, nil
}
