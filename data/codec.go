package data

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/fire-hep/fire/backend"
)

// Reader is the subset of backend.File a descriptor needs to load from.
type Reader interface {
	Read(path string) (interface{}, error)
	GetAttr(path, name string) (interface{}, bool)
	Exists(path string) bool
}

// Writer is the subset of backend.File a descriptor needs to write to.
type Writer interface {
	CreateColumn(path string, typ backend.PrimType, chunkSize, compressionLevel int, shuffle bool) error
	Append(path string, value interface{}) error
	SetAttr(path, name string, value interface{}) error
	DeclareGroup(path string) error
}

var _ Reader = (*backend.File)(nil)
var _ Writer = (*backend.File)(nil)

func primTypeOf(kind reflect.Kind) (backend.PrimType, bool) {
	switch kind {
	case reflect.Bool:
		return backend.Bool, true
	case reflect.Int8:
		return backend.Int8, true
	case reflect.Int16:
		return backend.Int16, true
	case reflect.Int32:
		return backend.Int32, true
	case reflect.Int, reflect.Int64:
		return backend.Int64, true
	case reflect.Uint8:
		return backend.Uint8, true
	case reflect.Uint16:
		return backend.Uint16, true
	case reflect.Uint32:
		return backend.Uint32, true
	case reflect.Uint, reflect.Uint64:
		return backend.Uint64, true
	case reflect.Float32:
		return backend.Float32, true
	case reflect.Float64:
		return backend.Float64, true
	case reflect.String:
		return backend.String, true
	default:
		return "", false
	}
}

// declareValue, saveValue, loadValue, clearValue implement the four
// recursive operations of spec.md section 4.B over an addressable
// reflect.Value rv living at path. They dispatch on rv's shape: primitive,
// Aggregate (struct implementing the Aggregate contract), slice, or map.

func declareValue(path string, rv reflect.Value, cfg Config, w Writer) error {
	if agg, ok := asAggregateValue(rv); ok {
		return declareAggregate(path, rv, agg, cfg, w)
	}
	switch rv.Kind() {
	case reflect.Slice:
		return declareSeq(path, rv, cfg, w)
	case reflect.Map:
		return declareMap(path, rv, cfg, w)
	default:
		pt, ok := primTypeOf(rv.Kind())
		if !ok {
			return fmt.Errorf("data: unsupported type %s at %s", rv.Type(), path)
		}
		return w.CreateColumn(path, pt, cfg.ChunkSize, cfg.CompressionLevel, cfg.Shuffle)
	}
}

func saveValue(path string, rv reflect.Value, cfg Config, w Writer) error {
	if agg, ok := asAggregateValue(rv); ok {
		return saveAggregate(path, rv, agg, cfg, w)
	}
	switch rv.Kind() {
	case reflect.Slice:
		return saveSeq(path, rv, cfg, w)
	case reflect.Map:
		return saveMap(path, rv, cfg, w)
	case reflect.Int:
		return w.Append(path, rv.Int())
	case reflect.Uint:
		return w.Append(path, rv.Uint())
	default:
		return w.Append(path, rv.Interface())
	}
}

func loadValue(path string, rv reflect.Value, cfg Config, r Reader) error {
	if agg, ok := asAggregateValue(rv); ok {
		return loadAggregate(path, rv, agg, cfg, r)
	}
	switch rv.Kind() {
	case reflect.Slice:
		return loadSeq(path, rv, cfg, r)
	case reflect.Map:
		return loadMap(path, rv, cfg, r)
	default:
		v, err := r.Read(path)
		if err != nil {
			return err
		}
		rv.Set(reflect.ValueOf(v).Convert(rv.Type()))
		return nil
	}
}

func clearValue(rv reflect.Value) {
	if agg, ok := asAggregateValue(rv); ok {
		agg.Clear()
		return
	}
	switch rv.Kind() {
	case reflect.Slice:
		rv.Set(reflect.MakeSlice(rv.Type(), 0, 0))
	case reflect.Map:
		rv.Set(reflect.MakeMap(rv.Type()))
	default:
		clearPrimitive(rv)
	}
}

// clearPrimitive sets signed integer fields to their type's minimum value
// and unsigned integer, float, bool and string fields to the zero value,
// per spec.md section 4.B clear().
func clearPrimitive(rv reflect.Value) {
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		rv.SetInt(minIntFor(rv.Kind()))
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		rv.SetUint(0)
	case reflect.Float32, reflect.Float64:
		rv.SetFloat(0)
	case reflect.Bool:
		rv.SetBool(false)
	case reflect.String:
		rv.SetString("")
	}
}

func minIntFor(kind reflect.Kind) int64 {
	switch kind {
	case reflect.Int8:
		return -1 << 7
	case reflect.Int16:
		return -1 << 15
	case reflect.Int32:
		return -1 << 31
	default:
		return -1 << 63
	}
}

func asAggregateValue(rv reflect.Value) (Aggregate, bool) {
	if rv.Kind() != reflect.Struct || !rv.CanAddr() {
		return nil, false
	}
	return asAggregate(rv.Addr().Interface())
}

// ---- aggregate ----

func declareAggregate(path string, rv reflect.Value, agg Aggregate, cfg Config, w Writer) error {
	b, err := newBuilder(path, agg)
	if err != nil {
		return err
	}
	if err := w.DeclareGroup(path); err != nil {
		return err
	}
	if err := w.SetAttr(path, "type", typeNameOf(agg)); err != nil {
		return err
	}
	if err := w.SetAttr(path, "version", versionOf(agg)); err != nil {
		return err
	}
	for _, f := range b.fields {
		if err := declareValue(path+"/"+f.name, f.value, cfg, w); err != nil {
			return err
		}
	}
	return nil
}

func saveAggregate(path string, rv reflect.Value, agg Aggregate, cfg Config, w Writer) error {
	b, err := newBuilder(path, agg)
	if err != nil {
		return err
	}
	for _, f := range b.fields {
		if err := saveValue(path+"/"+f.name, f.value, cfg, w); err != nil {
			return err
		}
	}
	return nil
}

func loadAggregate(path string, rv reflect.Value, agg Aggregate, cfg Config, r Reader) error {
	b, err := newBuilder(path, agg)
	if err != nil {
		return err
	}
	storedVersion := versionOf(agg)
	if v, ok := r.GetAttr(path, "version"); ok {
		storedVersion = toInt(v)
	}
	current := versionOf(agg)
	for _, f := range b.fields {
		fieldPath := path + "/" + f.name
		if storedVersion < current && f.legacy != "" && !r.Exists(fieldPath) {
			legacyPath := path + "/" + f.legacy
			if r.Exists(legacyPath) {
				fieldPath = legacyPath
			}
		}
		if err := loadValue(fieldPath, f.value, cfg, r); err != nil {
			return err
		}
	}
	return nil
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func typeNameOf(v interface{}) string {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.String()
}

// ---- sequence (slice) ----

func declareSeq(path string, rv reflect.Value, cfg Config, w Writer) error {
	if err := w.CreateColumn(path+"/size", backend.Uint64, cfg.ChunkSize, cfg.CompressionLevel, false); err != nil {
		return err
	}
	elem := reflect.New(rv.Type().Elem()).Elem()
	return declareValue(path+"/data", elem, cfg, w)
}

func saveSeq(path string, rv reflect.Value, cfg Config, w Writer) error {
	if err := w.Append(path+"/size", uint64(rv.Len())); err != nil {
		return err
	}
	for i := 0; i < rv.Len(); i++ {
		if err := saveValue(path+"/data", rv.Index(i), cfg, w); err != nil {
			return err
		}
	}
	return nil
}

func loadSeq(path string, rv reflect.Value, cfg Config, r Reader) error {
	sz, err := r.Read(path + "/size")
	if err != nil {
		return err
	}
	n := int(sz.(uint64))
	out := reflect.MakeSlice(rv.Type(), 0, n)
	for i := 0; i < n; i++ {
		elem := reflect.New(rv.Type().Elem()).Elem()
		if err := loadValue(path+"/data", elem, cfg, r); err != nil {
			return err
		}
		out = reflect.Append(out, elem)
	}
	rv.Set(out)
	return nil
}

// ---- associative container (map) ----

func declareMap(path string, rv reflect.Value, cfg Config, w Writer) error {
	if err := w.CreateColumn(path+"/size", backend.Uint64, cfg.ChunkSize, cfg.CompressionLevel, false); err != nil {
		return err
	}
	key := reflect.New(rv.Type().Key()).Elem()
	if err := declareValue(path+"/keys", key, cfg, w); err != nil {
		return err
	}
	val := reflect.New(rv.Type().Elem()).Elem()
	return declareValue(path+"/vals", val, cfg, w)
}

func saveMap(path string, rv reflect.Value, cfg Config, w Writer) error {
	if err := w.Append(path+"/size", uint64(rv.Len())); err != nil {
		return err
	}
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
	for _, k := range keys {
		keyCopy := reflect.New(rv.Type().Key()).Elem()
		keyCopy.Set(k)
		if err := saveValue(path+"/keys", keyCopy, cfg, w); err != nil {
			return err
		}
		valCopy := reflect.New(rv.Type().Elem()).Elem()
		valCopy.Set(rv.MapIndex(k))
		if err := saveValue(path+"/vals", valCopy, cfg, w); err != nil {
			return err
		}
	}
	return nil
}

func loadMap(path string, rv reflect.Value, cfg Config, r Reader) error {
	sz, err := r.Read(path + "/size")
	if err != nil {
		return err
	}
	n := int(sz.(uint64))
	out := reflect.MakeMapWithSize(rv.Type(), n)
	for i := 0; i < n; i++ {
		key := reflect.New(rv.Type().Key()).Elem()
		if err := loadValue(path+"/keys", key, cfg, r); err != nil {
			return err
		}
		val := reflect.New(rv.Type().Elem()).Elem()
		if err := loadValue(path+"/vals", val, cfg, r); err != nil {
			return err
		}
		out.SetMapIndex(key, val)
	}
	rv.Set(out)
	return nil
}
