// Package data implements the Data descriptor tree described in spec.md
// section 4.B: a recursive mapping from arbitrary user record types onto
// the backend's column trees, dispatched by reflection over a small closed
// set of shapes (primitive, user aggregate, sequence, associative
// container) rather than by generated code per type, per the "small closed
// set of descriptor variants" option in spec.md section 9's design notes.
//
// Grounded on grafana-tempo's friggdb/encoding (explicit marshal/unmarshal
// of a fixed record shape) generalized to arbitrary Go struct shapes the
// way encoding/json's reflective encoder generalizes a fixed-field encoder.
package data

// Config carries the atomic-backend knobs every leaf column is created
// with: chunk length, compression level, and the optional byte-shuffle
// filter. One Config applies to an entire product's tree.
type Config struct {
	ChunkSize        int
	CompressionLevel int
	Shuffle          bool
}

// DefaultConfig matches backend's own default chunk size with no
// compression and no shuffle, used where a caller doesn't care.
var DefaultConfig = Config{ChunkSize: 1024, CompressionLevel: 0, Shuffle: false}
