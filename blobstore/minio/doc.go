// Package minio provides a BlobStore implementation using the MinIO client.
//
// MinIO is an S3-compatible object storage system. This package uses the
// official MinIO Go client, so it also works with other S3-compatible
// servers such as Ceph, SeaweedFS and Garage.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "my-bucket", "tables/")
//	db, err := rowdb.Open(ctx, "people.rdb", rowdb.WithBlobStore(store))
//
// Database files are written with a single PutObject call of known size;
// reads use ranged GetObject requests.
package minio
