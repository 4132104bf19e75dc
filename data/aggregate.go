package data

import "github.com/fire-hep/fire/internal/xerrors"

// Aggregate is the contract every user record type (and every nested member
// of struct kind) must satisfy, per spec.md section 4.B: a default
// constructor (ordinary Go zero value / pointer construction), Clear, and
// Attach. It is checked via a type assertion whenever the tree reaches a
// struct value (declare, save, load, clear), since Go has no compile-time
// way to require it only of struct fields reached through reflection; New
// itself does not check it, and a struct that lacks it fails to declare as
// an unsupported type.
type Aggregate interface {
	// Clear resets the receiver to its default/empty state. The tree calls
	// only Clear for an aggregate value; it does not clear the registered
	// members itself, so Clear resets every member it wants reset.
	Clear()
	// Attach registers each persisted member by calling b.Add (or b.Rename
	// for a member that replaces a differently-named legacy column).
	Attach(b *Builder)
}

// Versioned is an optional extension of Aggregate: a type that has gone
// through schema evolution reports its current compiled version. Types
// that don't implement it are treated as version 1.
type Versioned interface {
	Version() int
}

func versionOf(v interface{}) int {
	if vv, ok := v.(Versioned); ok {
		return vv.Version()
	}
	return 1
}

func asAggregate(v interface{}) (Aggregate, bool) {
	agg, ok := v.(Aggregate)
	return agg, ok
}

// BadNameError reports use of the reserved "size" member name, per
// spec.md section 4.B ("A member named size is rejected at declare time
// with BadName"). It wraps an *xerrors.Error so it participates in the
// unified xerrors.Is(err, xerrors.BadName) taxonomy like every other
// fatal kind, while still carrying the path/name detail callers may want.
type BadNameError struct {
	Err  *xerrors.Error
	Path string
	Name string
}

func newBadNameError(path, name string) *BadNameError {
	return &BadNameError{
		Err:  xerrors.New(xerrors.BadName, "data: member name %q is reserved (path %s)", name, path),
		Path: path,
		Name: name,
	}
}

func (e *BadNameError) Error() string { return e.Err.Error() }

// Unwrap returns the wrapped *xerrors.Error itself (not its cause), so
// errors.As and xerrors.Is can recover the BadName kind.
func (e *BadNameError) Unwrap() error { return e.Err }
