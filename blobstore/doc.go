// Package blobstore provides the storage abstraction for rowdb database files.
//
// A database is saved as one immutable blob and loaded by reading that
// blob in full. BlobStore implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem with mmap reads and atomic rename writes
//   - MemoryStore: in-process map, for tests
//   - MirrorStore: replicates writes from a primary to replicas
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible servers
//
// # Custom Implementations
//
// Implement the BlobStore interface to support custom storage backends:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)   // Open for reading
//	    Put(ctx, name, data) error      // Atomic write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Blobs that can expose their content without copying implement Mappable;
// View uses it to hand the decoder the mapped bytes directly.
package blobstore
