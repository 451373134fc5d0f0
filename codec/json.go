package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// Exported rows are arrays of column values; strings, numbers and booleans
// round-trip, but all numbers decode as float64 unless the target is typed.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the default codec used by the library.
var Default Codec = GoJSON{}
