package fireio

import (
	"fmt"
	"sort"

	"github.com/facette/natsort"

	"github.com/fire-hep/fire/backend"
	"github.com/fire-hep/fire/data"
)

// ProductTag identifies one discoverable product in an input file, per
// spec.md section 4.C list_available_products().
type ProductTag struct {
	Name    string
	Pass    string
	Type    string
	Version int
}

// eventHeaderPath and runsGroupPath are the fixed paths spec.md
// section 3 reserves: the event count and run count are derived from their
// lengths, and EventHeader is not itself a discoverable "product" returned
// by ListAvailableProducts (it is always present, unconditionally).
const (
	eventHeaderPath = "events/EventHeader"
	runsGroupPath   = "runs"
)

// Reader opens a fire file read-only and exposes entry/run counts, product
// discovery, typed loads, and mirror-copy of untouched products.
type Reader struct {
	name string
	f    *backend.File
	cfg  data.Config

	// offsets tracks, per container column path (one with a "size" child),
	// the next absolute row to read from its "data"/"keys"/"vals" subtree
	// during mirror-copy, and under "<path>/size" the next size row it
	// has accounted for. Rows skipped between two copies (entries that
	// were not copied, e.g. dropped events) are summed in before the next
	// expansion. Valid because Copy is always called with strictly
	// increasing entry indices within one Reader's lifetime (spec.md
	// section 5: single-threaded, event n fully processed before event
	// n+1 begins).
	offsets map[string]int
}

// NewReader opens path in read-only mode.
func NewReader(path string, cfg data.Config) (*Reader, error) {
	f, err := backend.Open(path, backend.ModeReadOnly)
	if err != nil {
		return nil, err
	}
	return &Reader{name: path, f: f, cfg: cfg, offsets: map[string]int{}}, nil
}

func (r *Reader) Name() string { return r.name }

// Entries implements spec.md section 4.C entries(): the file's total event
// count, the length of events/EventHeader/number.
func (r *Reader) Entries() int {
	n, err := r.f.Dims(eventHeaderPath + "/number")
	if err != nil {
		return 0
	}
	return n
}

// Runs implements spec.md section 4.C runs(): the length of runs/number.
func (r *Reader) Runs() int {
	n, err := r.f.Dims(runsGroupPath + "/number")
	if err != nil {
		return 0
	}
	return n
}

// Close releases the underlying backend handle.
func (r *Reader) Close() error { return r.f.Close() }

// Backend exposes the underlying column backend, used by the event bus and
// the process driver for fixed paths outside the per-product surface.
func (r *Reader) Backend() *backend.File { return r.f }

// ListAvailableProducts implements spec.md section 4.C
// list_available_products(): walks events/*/* and reports every discovered
// product's (name, pass, type, version), naturally sorted for a
// deterministic, human-friendly listing.
func (r *Reader) ListAvailableProducts() []ProductTag {
	var out []ProductTag
	for _, pass := range r.f.List("events") {
		if pass == "EventHeader" {
			continue
		}
		passPath := "events/" + pass
		for _, name := range r.f.List(passPath) {
			path := passPath + "/" + name
			typ, _ := r.f.GetAttr(path, "type")
			ver, _ := r.f.GetAttr(path, "version")
			out = append(out, ProductTag{
				Name:    name,
				Pass:    pass,
				Type:    fmt.Sprint(typ),
				Version: toIntAttr(ver),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return natsort.Compare(out[i].Pass+"/"+out[i].Name, out[j].Pass+"/"+out[j].Name)
	})
	return out
}

func toIntAttr(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// LoadInto implements spec.md section 4.C load_into(data): dispatches to
// the descriptor at its own path, advancing that product's sequential read
// cursor by one event.
func (r *Reader) LoadInto(path string, ptr interface{}) error {
	tree, err := data.New(path, ptr, r.cfg)
	if err != nil {
		return err
	}
	return tree.Load(r.f)
}

// Copy implements spec.md section 4.C copy(i_entry, product-path, writer):
// bulk pass-through of the i-th entry of one product, recursing over
// subgroups using only the manifest's structural shape (group vs. column,
// "size"-prefixed container vs. plain aggregate) — the caller's Go type for
// the product need not be registered or even known.
func (r *Reader) Copy(iEntry int, productPath string, w *Writer) error {
	return r.copyRows(productPath, iEntry, 1, w)
}

// copyRows copies the [start, start+count) row range at path from r to w,
// recursing into children per spec.md section 4.C's mirror-descriptor rule.
func (r *Reader) copyRows(path string, start, count int, w *Writer) error {
	r.copyAttrs(path, w)

	children := r.f.List(path)
	if len(children) == 0 {
		// leaf column
		return backend.Copy(r.f, path, start, count, w.Backend())
	}

	if !w.Backend().Exists(path) {
		if err := w.Backend().DeclareGroup(path); err != nil {
			return err
		}
	}

	if !contains(children, "size") {
		// plain aggregate group: every child is row-aligned with this node
		for _, c := range children {
			if err := r.copyRows(path+"/"+c, start, count, w); err != nil {
				return err
			}
		}
		return nil
	}

	// size-prefixed container: copy the size column itself, then expand
	// into the element subtree(s) using the running cumulative offset.
	if err := backend.Copy(r.f, path+"/size", start, count, w.Backend()); err != nil {
		return err
	}
	elemPaths := elementSubtreeNames(children)
	sizePath := path + "/size"
	for row := r.offsets[sizePath]; row < start; row++ {
		raw, err := backend.ReadAt(r.f, sizePath, row)
		if err != nil {
			return err
		}
		r.offsets[path] += int(raw.(uint64))
	}
	r.offsets[sizePath] = start + count
	for i := 0; i < count; i++ {
		raw, err := backend.ReadAt(r.f, path+"/size", start+i)
		if err != nil {
			return err
		}
		n := int(raw.(uint64))
		offset := r.offsets[path]
		if n > 0 {
			for _, ep := range elemPaths {
				if err := r.copyRows(path+"/"+ep, offset, n, w); err != nil {
					return err
				}
			}
		}
		r.offsets[path] = offset + n
	}
	return nil
}

func (r *Reader) copyAttrs(path string, w *Writer) {
	if typ, ok := r.f.GetAttr(path, "type"); ok {
		_ = w.Backend().SetAttr(path, "type", typ)
	}
	if ver, ok := r.f.GetAttr(path, "version"); ok {
		_ = w.Backend().SetAttr(path, "version", ver)
	}
}

func elementSubtreeNames(children []string) []string {
	if contains(children, "keys") && contains(children, "vals") {
		return []string{"keys", "vals"}
	}
	return []string{"data"}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
