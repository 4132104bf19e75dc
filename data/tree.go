package data

import (
	"fmt"
	"reflect"
)

// Tree is the per-product descriptor handle described in spec.md section
// 4.B: it associates an in-memory value (reached through ptr, a pointer to
// the product's storage) with a root path and exposes Load/Save/Declare/Clear.
type Tree struct {
	path string
	ptr  interface{}
	rv   reflect.Value
	cfg  Config
}

// New builds a descriptor rooted at path for the value pointed to by ptr.
// ptr must be a non-nil pointer; its pointee may be a primitive, a type
// implementing Aggregate, a slice, or a map, recursively.
func New(path string, ptr interface{}, cfg Config) (*Tree, error) {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return nil, fmt.Errorf("data: New requires a non-nil pointer, got %T", ptr)
	}
	return &Tree{path: path, ptr: ptr, rv: rv.Elem(), cfg: cfg}, nil
}

// Path is the root path this descriptor is attached to.
func (t *Tree) Path() string { return t.path }

// Declare implements spec.md section 4.B declare(writer). Every product
// group carries type/version attributes (spec.md section 3 invariants),
// including non-aggregate-shaped products (sequences, maps, bare
// primitives) whose own recursive declare doesn't otherwise attach them.
func (t *Tree) Declare(w Writer) error {
	if err := declareValue(t.path, t.rv, t.cfg, w); err != nil {
		return err
	}
	if _, ok := asAggregateValue(t.rv); ok {
		return nil // declareAggregate already wrote type/version at t.path
	}
	if t.rv.Kind() == reflect.Slice || t.rv.Kind() == reflect.Map {
		if err := w.DeclareGroup(t.path); err != nil {
			return err
		}
	}
	if err := w.SetAttr(t.path, "type", t.TypeName()); err != nil {
		return err
	}
	return w.SetAttr(t.path, "version", t.Version())
}

// Save implements spec.md section 4.B save(writer).
func (t *Tree) Save(w Writer) error {
	return saveValue(t.path, t.rv, t.cfg, w)
}

// Load implements spec.md section 4.B load(reader).
func (t *Tree) Load(r Reader) error {
	return loadValue(t.path, t.rv, t.cfg, r)
}

// Clear implements spec.md section 4.B clear().
func (t *Tree) Clear() {
	clearValue(t.rv)
}

// TypeName returns the demangled type name that will be written to the
// "type" attribute on the product's root group (or, for a bare primitive or
// container product, the type description a mirror copy would record).
func (t *Tree) TypeName() string {
	return t.rv.Type().String()
}

// Version returns the compiled schema version of the product's value, 1 if
// it does not implement Versioned.
func (t *Tree) Version() int {
	if agg, ok := asAggregateValue(t.rv); ok {
		return versionOf(agg)
	}
	return 1
}
