package data

import "reflect"

// fieldSpec is one member an Aggregate.Attach call registered: a name, a
// live pointer to the field's storage, and — if registered via Rename — the
// legacy name it replaces.
type fieldSpec struct {
	name   string
	legacy string // "" unless registered via Rename
	value  reflect.Value
}

// Builder collects the member list an Aggregate.Attach implementation
// declares. One Builder is built fresh on every descriptor traversal; it is
// cheap (pointer bookkeeping only) and has no side effects of its own,
// matching spec.md's description of attach as a pure registration step.
type Builder struct {
	path   string
	fields []fieldSpec
	err    error
}

// Add registers member name as backed by ptr, a pointer to the field
// (e.g. &x.Foo). The reserved name "size" is rejected.
func (b *Builder) Add(name string, ptr interface{}) {
	if b.err != nil {
		return
	}
	if name == "size" {
		b.err = newBadNameError(b.path, name)
		return
	}
	b.fields = append(b.fields, fieldSpec{name: name, value: reflect.ValueOf(ptr).Elem()})
}

// Rename registers member newName as the current home of a field that used
// to be stored under oldName, per spec.md section 4.B schema evolution.
// When the stored group's version attribute is behind the type's compiled
// version and newName's column is absent, the tree reads oldName's column
// into this field instead.
func (b *Builder) Rename(oldName, newName string, ptr interface{}) {
	if b.err != nil {
		return
	}
	if newName == "size" {
		b.err = newBadNameError(b.path, newName)
		return
	}
	b.fields = append(b.fields, fieldSpec{name: newName, legacy: oldName, value: reflect.ValueOf(ptr).Elem()})
}

func newBuilder(path string, agg Aggregate) (*Builder, error) {
	b := &Builder{path: path}
	agg.Attach(b)
	if b.err != nil {
		return nil, b.err
	}
	return b, nil
}
