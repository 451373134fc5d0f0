// Package persistence encodes and decodes the rowdb file format.
//
// A database file is laid out as follows (all integers little endian):
//
//	offset              size                 field
//	0                   2                    column_count (uint16)
//	2                   column_count         column type tags, one byte each
//	2+column_count      8                    string_table_size (uint64)
//	10+column_count     string_table_size    string pool, verbatim chunks
//	...                 remainder            row table, verbatim rows
//
// The row table size is implied: file size minus metadata size minus
// string table size. There is no version header and no checksum;
// compatibility depends on the stability of the column type ordinals.
//
// Files may optionally be wrapped in an LZ4 or Zstandard frame. Frames are
// recognised by their magic number, which can never begin a raw file
// because its third byte would be an invalid column tag.
package persistence
