// Package rowdb provides a small embedded row store for Go.
//
// A database is a single table whose schema is an ordered list of column
// types. Rows are fixed-width records stored back to back; String columns
// hold an 8-byte handle into a chunked string pool. The whole database
// saves to and loads from one binary file.
//
// # Quick Start
//
//	db, _ := rowdb.New([]schema.ColumnType{schema.UI32, schema.String})
//
//	row, _ := db.CreateRow()
//	_ = rowdb.Set(row, 0, uint32(2))
//	_ = rowdb.Set(row, 1, "Hello there :)")
//
//	for r := range db.Rows() {
//	    id, _ := rowdb.Get[uint32](r, 0)
//	    text, _ := rowdb.Get[string](r, 1)
//	    fmt.Println(id, text)
//	}
//
//	_ = db.Save(ctx, "people.rdb")
//	db, _ = rowdb.Open(ctx, "people.rdb")
//
// # Queries
//
// Queries select rows by single-column equality and can delete the
// selection:
//
//	removed, err := db.Query().Where(0, 2).With(1, "Hello there :)").RemoveSelection()
//
// # Row Handles
//
// A Row is an offset into the row table, not a pointer. Creating rows never
// moves existing rows. Deleting rows does, so every Row and Query taken
// before a deletion reports ErrStaleRow afterwards.
//
// # File Format
//
// All integers are little endian:
//
//	u16  column_count
//	u8   column_type[column_count]
//	u64  string_table_size
//	     string pool (string_table_size bytes, 40-byte chunks)
//	     row table (the rest of the file)
//
// Saved files may be wrapped in an LZ4 or Zstandard frame (WithCompression);
// loading detects the framing.
//
// # Storage
//
// Open and Save go through a blobstore.BlobStore: the local filesystem by
// default, or S3, MinIO and in-memory stores via WithBlobStore.
package rowdb
