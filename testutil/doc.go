// Package testutil provides testing utilities for rowdb.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, thread-safe RNG and helpers for generating random
// text and column values.
//
// # Random Data
//
//	rng := testutil.NewRNG(seed)
//	s := rng.Text(40)                 // printable ASCII, no NUL
//	v := rng.Value(schema.UI32)       // uint32
//	row := rng.Values(db.Schema().Types())
//
// # Skewed Keys
//
//	key := rng.Zipf(100, 1.5) // a few keys dominate, as in real tables
package testutil
