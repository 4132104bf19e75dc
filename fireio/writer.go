// Package fireio implements the Reader/Writer facade described in spec.md
// section 4.C: file lifecycle, product declaration, and mirror-copy of
// untouched products between an input and the output file. It is the only
// package above backend/data that knows about whole files rather than
// single columns or single products.
//
// Grounded on grafana-tempo's friggdb/friggdb.go BlockStore facade, which
// plays the same role (a thin object combining a backend, a WAL, and a
// compactor behind one lifecycle-owning type).
package fireio

import (
	"reflect"

	"github.com/fire-hep/fire/backend"
	"github.com/fire-hep/fire/data"
	"github.com/fire-hep/fire/internal/xerrors"
)

// Writer owns the output file's backend handle, chunk/compression
// configuration, and per-product declaration bookkeeping.
type Writer struct {
	f        *backend.File
	cfg      data.Config
	declared map[string]reflect.Type
}

// NewWriter opens path in truncate-write mode. A missing path is reported
// as NoOutputFile per spec.md section 4.C.
func NewWriter(path string, cfg data.Config) (*Writer, error) {
	if path == "" {
		return nil, xerrors.New(xerrors.NoOutputFile, "output_file.name is required")
	}
	f, err := backend.Open(path, backend.ModeTruncateWrite)
	if err != nil {
		return nil, err
	}
	return &Writer{f: f, cfg: cfg, declared: map[string]reflect.Type{}}, nil
}

// Save implements spec.md section 4.C Writer.save(path, value): lazily
// declares the column tree on first call, then appends the current value.
// A second call at the same path with a different concrete type is
// reported as BadType.
func (w *Writer) Save(path string, ptr interface{}) error {
	t := reflect.TypeOf(ptr)
	tree, err := data.New(path, ptr, w.cfg)
	if err != nil {
		return err
	}
	if existing, ok := w.declared[path]; ok {
		if existing != t {
			return xerrors.New(xerrors.BadType, "product %s: writing %s, previously declared as %s", path, t, existing)
		}
	} else {
		if err := tree.Declare(w.f); err != nil {
			return err
		}
		w.declared[path] = t
	}
	return tree.Save(w.f)
}

// DeclareGroup implements spec.md section 4.C Writer.declare_group(path,
// type, version): creates the group at path if it does not exist yet and
// stamps its type and version attributes, without materializing a Go
// value. Neither the bus nor mirror-copy calls it; mirror-copy sets group
// attributes through Backend directly.
func (w *Writer) DeclareGroup(path, typeName string, version int) error {
	if !w.f.Exists(path) {
		if err := w.f.DeclareGroup(path); err != nil {
			return err
		}
	}
	if err := w.f.SetAttr(path, "type", typeName); err != nil {
		return err
	}
	return w.f.SetAttr(path, "version", version)
}

// Flush implements spec.md section 4.C flush().
func (w *Writer) Flush() error { return w.f.Flush() }

// Close flushes and releases the output file. Per spec.md section 4.C,
// destruction flushes; Close is the explicit equivalent in a language
// without destructors.
func (w *Writer) Close() error { return w.f.Close() }

// Backend exposes the underlying column backend for components (the process
// driver, mirror-copy) that need paths outside the per-product Save/DeclareGroup
// surface, e.g. the fixed events/EventHeader and runs/* paths.
func (w *Writer) Backend() *backend.File { return w.f }
