// Package params implements the opaque, read-only Parameters tree described
// in spec.md section 6. The embedded configuration-scripting mechanism
// itself is out of scope (spec.md section 1); this package only supplies a
// concrete Reader so the driver, tests, and cmd/fire have something to
// construct one from without depending on a script interpreter. Any type
// satisfying Reader can stand in for this implementation.
package params

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Reader is the contract the process driver (and every component it
// constructs) depends on. It is intentionally small and read-only: nothing
// in the core ever mutates configuration.
type Reader interface {
	GetString(key string) (string, bool)
	GetInt(key string) (int, bool)
	GetFloat(key string) (float64, bool)
	GetBool(key string) (bool, bool)
	GetStringSlice(key string) ([]string, bool)
	Sub(key string) Reader
	Slice(key string) []Reader
	Decode(key string, out interface{}) error
}

// Tree is the viper-backed Reader used by cmd/fire and by tests.
type Tree struct {
	v      *viper.Viper
	prefix string
}

var _ Reader = (*Tree)(nil)

// NewFromFile loads a YAML (or JSON/TOML, by extension) configuration file
// into a root Tree.
func NewFromFile(path string) (*Tree, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("params: reading config %s: %w", path, err)
	}
	return &Tree{v: v}, nil
}

// NewFromMap builds a Tree directly from a nested map, used by tests and by
// embedders that already have a parsed configuration tree in hand.
func NewFromMap(m map[string]interface{}) *Tree {
	v := viper.New()
	for k, val := range m {
		v.Set(k, val)
	}
	return &Tree{v: v}
}

func (t *Tree) key(k string) string {
	if t.prefix == "" {
		return k
	}
	return t.prefix + "." + k
}

func (t *Tree) GetString(key string) (string, bool) {
	k := t.key(key)
	if !t.v.IsSet(k) {
		return "", false
	}
	return t.v.GetString(k), true
}

func (t *Tree) GetInt(key string) (int, bool) {
	k := t.key(key)
	if !t.v.IsSet(k) {
		return 0, false
	}
	return t.v.GetInt(k), true
}

func (t *Tree) GetFloat(key string) (float64, bool) {
	k := t.key(key)
	if !t.v.IsSet(k) {
		return 0, false
	}
	return t.v.GetFloat64(k), true
}

func (t *Tree) GetBool(key string) (bool, bool) {
	k := t.key(key)
	if !t.v.IsSet(k) {
		return false, false
	}
	return t.v.GetBool(k), true
}

func (t *Tree) GetStringSlice(key string) ([]string, bool) {
	k := t.key(key)
	if !t.v.IsSet(k) {
		return nil, false
	}
	return t.v.GetStringSlice(k), true
}

// Sub returns a Tree scoped to key, sharing the same underlying viper so
// writes (there are none post-load) and defaults still resolve.
func (t *Tree) Sub(key string) Reader {
	return &Tree{v: t.v, prefix: t.key(key)}
}

// Slice returns one Tree per element of the list found at key, used for
// sequence, conditions.providers, storage.listening_rules, and
// drop_keep_rules — every list-of-objects key in spec.md section 6.
func (t *Tree) Slice(key string) []Reader {
	raw := t.v.Get(t.key(key))
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]Reader, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			// normalize viper's map[interface{}]interface{} from some decoders
			if mi, ok2 := item.(map[interface{}]interface{}); ok2 {
				m = normalizeMap(mi)
			} else {
				continue
			}
		}
		sub := viper.New()
		for k, v := range m {
			sub.Set(k, v)
		}
		out = append(out, &Tree{v: sub})
		_ = i
	}
	return out
}

// Decode binds the subtree at key onto out using mapstructure, for the
// fixed-shape configuration blocks (cmd/fire decodes output_file this way).
func (t *Tree) Decode(key string, out interface{}) error {
	raw := t.v.Get(t.key(key))
	if raw == nil {
		return fmt.Errorf("params: %s not set", t.key(key))
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

func normalizeMap(mi map[interface{}]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(mi))
	for k, v := range mi {
		out[fmt.Sprint(k)] = v
	}
	return out
}

// JoinKey is a small helper exposed for callers building dotted keys
// programmatically; nothing in this module calls it.
func JoinKey(parts ...string) string {
	return strings.Join(parts, ".")
}
