// Package header implements the fixed-schema Run and Event headers and
// their embedded dynamic parameter map, per spec.md section 4.E.
//
// Grounded on grafana-tempo's friggdb/backend/block_meta.go (a small,
// fixed-field metadata record with a start/end lifecycle) for the header
// shapes themselves; the parameter map has no teacher analogue (friggdb's
// BlockMeta carries no dynamic map) and is original engineering following
// spec.md's own description of "sibling columns, types introspected on
// load".
package header

import (
	"math"
	"sort"

	"github.com/fire-hep/fire/backend"
	"github.com/fire-hep/fire/internal/xerrors"
)

// ParamValue is the closed set of types a parameter may hold, per spec.md
// section 4.E ("int, float, string. Other types are rejected statically").
type ParamValue interface {
	~int | ~float64 | ~string
}

// ParameterMap is the dynamic, per-instance string-keyed map embedded in
// both EventHeader and RunHeader (spec.md section 3). Keys preserve
// insertion order; persisted sibling columns are created in sorted key order.
type ParameterMap struct {
	keys []string
	vals map[string]interface{}
}

// NewParameterMap returns an empty, ready-to-use map.
func NewParameterMap() ParameterMap {
	return ParameterMap{vals: map[string]interface{}{}}
}

// Set implements spec.md section 4.E set<T>(name, value).
func Set[T ParamValue](p *ParameterMap, name string, v T) {
	if p.vals == nil {
		p.vals = map[string]interface{}{}
	}
	if _, exists := p.vals[name]; !exists {
		p.keys = append(p.keys, name)
	}
	p.vals[name] = interface{}(v)
}

// Get implements spec.md section 4.E get<T>(name). A missing key is
// NotFound; a key present under a different concrete type is BadType (the
// "writing int then reading as string fails with BadType" boundary
// behavior in spec.md section 8).
func Get[T ParamValue](p *ParameterMap, name string) (T, error) {
	var zero T
	raw, ok := p.vals[name]
	if !ok {
		return zero, xerrors.New(xerrors.NotFound, "parameter %q not found", name)
	}
	v, ok := raw.(T)
	if !ok {
		return zero, xerrors.New(xerrors.BadType, "parameter %q is not a %T", name, zero)
	}
	return v, nil
}

// Keys returns the parameter names in insertion order.
func (p *ParameterMap) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Clear implements spec.md section 4.E clear(): "clears the parameter
// values (keeping their keys)" — each existing key's value resets to its
// type's sentinel (matching data.Tree's clearPrimitive policy for
// consistency across the codebase), the key list itself survives.
func (p *ParameterMap) Clear() {
	for k, v := range p.vals {
		switch v.(type) {
		case int:
			p.vals[k] = math.MinInt
		case float64:
			p.vals[k] = 0.0
		case string:
			p.vals[k] = ""
		}
	}
}

const paramChunkSize = 256

// declareAndSaveParameters lazily creates one column per known key (in
// sorted key order) the first time it is seen, then appends the current
// value — mirroring spec.md's "auxiliary per-instance map... persisted as
// sibling columns".
func declareAndSaveParameters(w *backend.File, basePath string, p *ParameterMap) error {
	keys := make([]string, len(p.keys))
	copy(keys, p.keys)
	sort.Strings(keys) // deterministic column declaration order across runs
	for _, name := range keys {
		path := basePath + "/" + name
		v := p.vals[name]
		if !w.Exists(path) {
			typ, err := primTypeForParam(v)
			if err != nil {
				return err
			}
			if err := w.CreateColumn(path, typ, paramChunkSize, 0, false); err != nil {
				return err
			}
		}
		if err := w.Append(path, normalizeParamValue(v)); err != nil {
			return err
		}
	}
	return nil
}

// loadParameters discovers parameter columns by introspecting the types
// already present under basePath, per spec.md section 4.E.
func loadParameters(r *backend.File, basePath string, p *ParameterMap) error {
	for _, name := range r.List(basePath) {
		path := basePath + "/" + name
		typ, ok := r.TypeOf(path)
		if !ok {
			continue
		}
		v, err := r.Read(path)
		if err != nil {
			return err
		}
		switch typ {
		case backend.Int64:
			Set(p, name, int(v.(int64)))
		case backend.Float64:
			Set(p, name, v.(float64))
		case backend.String:
			Set(p, name, v.(string))
		default:
			return xerrors.New(xerrors.BadType, "parameter %q has unsupported stored type %s", name, typ)
		}
	}
	return nil
}

func primTypeForParam(v interface{}) (backend.PrimType, error) {
	switch v.(type) {
	case int:
		return backend.Int64, nil
	case float64:
		return backend.Float64, nil
	case string:
		return backend.String, nil
	default:
		return "", xerrors.New(xerrors.BadType, "unsupported parameter value type %T", v)
	}
}

func normalizeParamValue(v interface{}) interface{} {
	if n, ok := v.(int); ok {
		return int64(n)
	}
	return v
}
