// Package mmap provides read-only memory-mapped file access.
//
// Database files are loaded in one sequential pass. Mapping the file lets
// the decoder copy the string pool and row table straight out of the page
// cache without an intermediate read buffer.
//
//	m, err := mmap.Open("people.rdb", mmap.AccessSequential)
//	if err != nil { ... }
//	defer m.Close()
//
//	data := m.Bytes() // valid until Close
//
// Unix uses mmap(2) and madvise(2); Windows uses CreateFileMapping and
// MapViewOfFile, where access hints are a no-op.
package mmap
