package rowdb

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/hupe1980/rowdb/blobstore"
	"github.com/hupe1980/rowdb/internal/resource"
	"github.com/hupe1980/rowdb/internal/rowtable"
	"github.com/hupe1980/rowdb/internal/strpool"
	"github.com/hupe1980/rowdb/persistence"
	"github.com/hupe1980/rowdb/schema"
)

var (
	// ErrNotFound is returned when a database file does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMalformed is returned when a database file's declared sizes, tags or
	// string handles are inconsistent with its contents.
	ErrMalformed = persistence.ErrMalformed

	// ErrColumnOutOfRange is returned for a column index outside the schema.
	ErrColumnOutOfRange = errors.New("column index out of range")

	// ErrTypeMismatch is returned when a value's type does not match the
	// column's declared type.
	ErrTypeMismatch = errors.New("column type mismatch")

	// ErrRowOutOfRange is returned for a row index outside the table.
	ErrRowOutOfRange = errors.New("row index out of range")

	// ErrStaleRow is returned when a Row or Query is used after a deletion
	// shifted the rows it refers to.
	ErrStaleRow = errors.New("stale row view")

	// ErrClosed is returned by operations on a closed database.
	ErrClosed = errors.New("database is closed")

	// ErrInvalidText is returned when a string value contains a NUL byte.
	ErrInvalidText = errors.New("text contains NUL byte")

	// ErrMemoryLimitExceeded is returned when row or string storage would
	// grow past the limit set with WithMemoryLimit.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded
)

// ColumnError describes an invalid column access.
//
// It unwraps to ErrColumnOutOfRange or ErrTypeMismatch.
type ColumnError struct {
	Index int
	// Expected is the column's declared type. Unset for out-of-range errors.
	Expected schema.ColumnType
	// Actual describes the Go value that was supplied or requested.
	Actual string
	Err    error
}

func (e *ColumnError) Error() string {
	if errors.Is(e.Err, ErrColumnOutOfRange) {
		return fmt.Sprintf("column %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("column %d: %v: expected %s, got %s", e.Index, e.Err, e.Expected, e.Actual)
}

func (e *ColumnError) Unwrap() error { return e.Err }

func outOfRange(i int) error {
	return &ColumnError{Index: i, Err: ErrColumnOutOfRange}
}

func mismatch(i int, expected schema.ColumnType, actual string) error {
	return &ColumnError{Index: i, Expected: expected, Actual: actual, Err: ErrTypeMismatch}
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Already in the public taxonomy.
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrMalformed) || errors.Is(err, ErrInvalidText) {
		return err
	}

	if errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, strpool.ErrInvalidText) {
		return fmt.Errorf("%w: %w", ErrInvalidText, err)
	}

	// Structural damage in a loaded file.
	if errors.Is(err, strpool.ErrCorruptChain) ||
		errors.Is(err, strpool.ErrLeakedChunk) ||
		errors.Is(err, strpool.ErrMisaligned) ||
		errors.Is(err, rowtable.ErrMisaligned) {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return err
}

// translateOpenError is translateError for loading a file: a file that
// cannot be opened at all, for lack of permission or because the name is
// not a file, is reported as ErrNotFound.
func translateOpenError(err error) error {
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, blobstore.ErrNotBlob) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return translateError(err)
}
