// Package backend implements the Atomic I/O backend described in spec.md
// section 4.A: chunked, compressed, appendable 1-D columns of primitive
// values, plus scalar attributes on groups and columns. It has no notion of
// aggregates, containers, or products — that mapping is data.Tree's job.
//
// The on-disk layout is grounded on grafana-tempo's friggdb local backend
// (friggdb/backend/local): one flat file per leaf, a root directory per
// fire file, and a sidecar attribute store, rather than a single monolithic
// container format.
package backend

import "fmt"

// Mode selects how Open treats the backing file.
type Mode int

const (
	ModeReadOnly Mode = iota
	ModeTruncateWrite
)

// PrimType is the closed set of primitive column element types, per
// spec.md section 3 ("bool, integer widths, float, double, string").
type PrimType string

const (
	Bool    PrimType = "bool"
	Int8    PrimType = "int8"
	Int16   PrimType = "int16"
	Int32   PrimType = "int32"
	Int64   PrimType = "int64"
	Uint8   PrimType = "uint8"
	Uint16  PrimType = "uint16"
	Uint32  PrimType = "uint32"
	Uint64  PrimType = "uint64" // also used for the reserved "size" prefix column
	Float32 PrimType = "float32"
	Float64 PrimType = "float64"
	String  PrimType = "string"
)

func (t PrimType) valid() bool {
	switch t {
	case Bool, Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64, Float32, Float64, String:
		return true
	}
	return false
}

// boolSymbol normalizes the two symbolic boolean values across backends, per
// spec.md section 4.A ("Booleans are stored as an enumerated type").
type boolSymbol byte

const (
	symFalse boolSymbol = 0
	symTrue  boolSymbol = 1
)

func (t PrimType) String() string { return string(t) }

func invalidType(t PrimType) error {
	return fmt.Errorf("backend: invalid primitive type %q", t)
}
