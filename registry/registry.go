// Package registry implements the name-to-factory plugin registry of
// spec.md section 4.J: processors, producers, analyzers and conditions
// providers self-register under a class name at library-load time, and
// the process driver resolves configured instance names against it.
//
// Grounded on cmd/tempo/app/modules.go's modules.NewManager /
// mm.RegisterModule(name, initFunc) pattern: a process-wide,
// name-keyed table from a string to a constructor function, populated by
// init-time registration calls rather than reflection or a build tag.
package registry

import (
	"plugin"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/fire-hep/fire/internal/params"
	"github.com/fire-hep/fire/internal/xerrors"
)

// Factory constructs a plugin instance from its configuration block.
// What it returns is opaque to the registry; callers type-assert the
// result against the interface they expect (processor.Processor,
// conditions.Provider, ...).
type Factory func(args params.Reader) (interface{}, error)

type entry struct {
	name    string
	factory Factory
}

// Registry is the process-wide, write-once-per-name class table of
// spec.md section 4.J. The zero value is not usable; use New.
type Registry struct {
	mu     sync.Mutex
	byHash map[uint64]*entry
	loaded map[string]struct{} // idempotent load_library path set
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byHash: map[uint64]*entry{},
		loaded: map[string]struct{}{},
	}
}

// Declare implements spec.md section 4.J declare(name): registers
// factory under name. A class registering the same name twice — the
// ordinary case being two shared libraries compiled from stale copies of
// the same source — is fatal Ambiguous.
func (r *Registry) Declare(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := xxhash.Sum64String(name)
	if existing, ok := r.byHash[h]; ok {
		return xerrors.New(xerrors.Ambiguous, "plugin class %q already declared (existing: %q)", name, existing.name)
	}
	r.byHash[h] = &entry{name: name, factory: factory}
	return nil
}

// Make implements spec.md section 4.J make(name, args...): constructs a
// new instance of the named class. A name with no declared factory is
// fatal NotFound ("NotDeclared" in spec.md's vocabulary).
func (r *Registry) Make(name string, args params.Reader) (interface{}, error) {
	r.mu.Lock()
	e, ok := r.byHash[xxhash.Sum64String(name)]
	r.mu.Unlock()
	if !ok {
		return nil, xerrors.New(xerrors.NotFound, "plugin class %q was never declared", name)
	}
	return e.factory(args)
}

// Names returns every declared class name, sorted, for diagnostics.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.byHash))
	for _, e := range r.byHash {
		out = append(out, e.name)
	}
	sort.Strings(out)
	return out
}

// LoadLibrary implements spec.md section 4.J load_library(path): opens a
// Go plugin shared object, whose init() functions are expected to call
// Declare on the process-wide registry before Open returns. Loading the
// same path twice is a no-op, per spec.md's "idempotent (maintains a set
// of paths)".
func (r *Registry) LoadLibrary(path string) error {
	r.mu.Lock()
	if _, ok := r.loaded[path]; ok {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	if _, err := plugin.Open(path); err != nil {
		return xerrors.Wrap(xerrors.LibLoad, err, "load_library: "+path)
	}

	r.mu.Lock()
	r.loaded[path] = struct{}{}
	r.mu.Unlock()
	return nil
}
