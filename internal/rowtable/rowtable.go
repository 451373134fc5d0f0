// Package rowtable implements the flat row buffer.
//
// Rows are fixed-width byte spans stored back to back. A row is identified
// only by its byte offset, which shifts when an earlier row is deleted.
package rowtable

import (
	"errors"
	"fmt"
)

var (
	// ErrMisaligned is returned when a buffer is not a whole number of rows.
	ErrMisaligned = errors.New("rowtable: size is not a multiple of the row width")

	// ErrOutOfRange is returned for offsets that do not address a row.
	ErrOutOfRange = errors.New("rowtable: offset out of range")

	// ErrInvalidWidth is returned for a non-positive row width.
	ErrInvalidWidth = errors.New("rowtable: invalid row width")
)

// MemoryAccountant is charged for table growth.
type MemoryAccountant interface {
	AcquireMemory(bytes int64) error
	ReleaseMemory(bytes int64)
}

// Table is a growable buffer of fixed-width rows. It is not safe for
// concurrent use.
type Table struct {
	buf   []byte
	width int
	acct  MemoryAccountant
	// charged tracks the capacity reported to acct.
	charged int
}

// New returns an empty table of rows width bytes wide. acct may be nil.
func New(width int, acct MemoryAccountant) (*Table, error) {
	if width <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWidth, width)
	}
	return &Table{width: width, acct: acct}, nil
}

// FromBytes adopts b as the row buffer. The table takes ownership of b.
func FromBytes(width int, b []byte, acct MemoryAccountant) (*Table, error) {
	t, err := New(width, acct)
	if err != nil {
		return nil, err
	}
	if len(b)%width != 0 {
		return nil, fmt.Errorf("%w: %d bytes, width %d", ErrMisaligned, len(b), width)
	}
	if err := t.charge(len(b)); err != nil {
		return nil, err
	}
	t.buf = b[:len(b):len(b)]
	return t, nil
}

// Width returns the row width in bytes.
func (t *Table) Width() int { return t.width }

// Size returns the table size in bytes.
func (t *Table) Size() int { return len(t.buf) }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.buf) / t.width }

// Bytes returns the row buffer. It is only valid until the next mutation.
func (t *Table) Bytes() []byte { return t.buf }

// Append adds a zeroed row at the end and returns its offset.
func (t *Table) Append() (int, error) {
	off := len(t.buf)
	if cap(t.buf)-off < t.width {
		// Mirror append's growth so accounting sees the real capacity.
		newCap := max(2*cap(t.buf), off+t.width)
		if err := t.charge(newCap - t.charged); err != nil {
			// Fall back to exact growth near the memory limit.
			newCap = off + t.width
			if err := t.charge(newCap - t.charged); err != nil {
				return 0, err
			}
		}
		grown := make([]byte, off, newCap)
		copy(grown, t.buf)
		t.buf = grown
	}
	t.buf = t.buf[:off+t.width]
	clear(t.buf[off:])
	return off, nil
}

// Row returns the bytes of the row at off.
func (t *Table) Row(off int) ([]byte, error) {
	if err := t.check(off); err != nil {
		return nil, err
	}
	return t.buf[off : off+t.width : off+t.width], nil
}

// Delete removes the row at off and shifts every later row down by one row
// width. Offsets of later rows are invalidated.
func (t *Table) Delete(off int) error {
	if err := t.check(off); err != nil {
		return err
	}
	n := copy(t.buf[off:], t.buf[off+t.width:])
	t.buf = t.buf[:off+n]
	return nil
}

// Compact shrinks the backing store to the current size.
func (t *Table) Compact() {
	if cap(t.buf) == len(t.buf) {
		return
	}
	shrunk := make([]byte, len(t.buf))
	copy(shrunk, t.buf)
	t.buf = shrunk
	t.uncharge(t.charged - len(shrunk))
}

// Release returns all memory to the accountant and empties the table.
func (t *Table) Release() {
	t.uncharge(t.charged)
	t.buf = nil
}

func (t *Table) check(off int) error {
	if off < 0 || off%t.width != 0 || off+t.width > len(t.buf) {
		return fmt.Errorf("%w: %d (size %d, width %d)", ErrOutOfRange, off, len(t.buf), t.width)
	}
	return nil
}

func (t *Table) charge(n int) error {
	if n <= 0 {
		return nil
	}
	if t.acct != nil {
		if err := t.acct.AcquireMemory(int64(n)); err != nil {
			return err
		}
	}
	t.charged += n
	return nil
}

func (t *Table) uncharge(n int) {
	if n <= 0 {
		return
	}
	if t.acct != nil {
		t.acct.ReleaseMemory(int64(n))
	}
	t.charged -= n
}
