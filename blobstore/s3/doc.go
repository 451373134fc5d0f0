// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("tables/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	db, err := rowdb.Open(ctx, "people.rdb", rowdb.WithBlobStore(store))
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads with CRC32C checksums for large files
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
