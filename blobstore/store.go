package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// ErrNotBlob is returned when a name resolves to something that is not a
// blob, such as a directory.
var ErrNotBlob = errors.New("blobstore: not a blob")

// BlobStore is an abstraction for storing whole database files by name.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Put writes a blob atomically, replacing any existing blob.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names of all blobs with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	// ReadAt reads len(p) bytes starting at off. It follows io.ReaderAt
	// semantics: a short read returns io.EOF.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
}

// Mappable is an optional interface for Blobs that support memory mapping.
type Mappable interface {
	// Bytes returns the underlying byte slice.
	// The slice is valid until the Blob is closed.
	Bytes() ([]byte, error)
}

// ReadAll opens name and returns its full content.
func ReadAll(ctx context.Context, store BlobStore, name string) ([]byte, error) {
	var out []byte
	err := View(ctx, store, name, func(data []byte) error {
		out = append([]byte(nil), data...)
		return nil
	})
	return out, err
}

// View opens name and calls fn with its full content. For Mappable blobs
// the slice aliases the mapping, so fn must not retain it.
func View(ctx context.Context, store BlobStore, name string, fn func(data []byte) error) error {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return err
	}
	defer func() { _ = blob.Close() }()

	if m, ok := blob.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return err
		}
		return fn(data)
	}

	data := make([]byte, blob.Size())
	if len(data) > 0 {
		n, err := blob.ReadAt(ctx, data, 0)
		if err != nil && !(errors.Is(err, io.EOF) && n == len(data)) {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if n != len(data) {
			return fmt.Errorf("read %s: %w", name, io.ErrUnexpectedEOF)
		}
	}
	return fn(data)
}
