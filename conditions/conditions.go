// Package conditions implements the validity-interval cache of spec.md
// section 4.H: at most one live instance per named condition per validity
// window, lazily delegated to a registered provider and released when the
// current event falls outside the cached interval.
//
// Grounded on the same name-keyed, declare-then-resolve registry shape as
// the registry package's plugin factory (component J) — conditions
// providers are themselves declared once by name, just like plugin
// classes — generalized here with a validity predicate and a release
// hook a plain factory registry doesn't need.
package conditions

import (
	"github.com/fire-hep/fire/header"
	"github.com/fire-hep/fire/internal/xerrors"
)

// IntervalOfValidity is spec.md section 3's validity interval:
// {firstRun, lastRun, forData, forMC}, -1 meaning open-ended.
type IntervalOfValidity struct {
	FirstRun int32
	LastRun  int32
	ForData  bool
	ForMC    bool
}

// ValidFor implements the union/overlap predicate against an event's
// (run, isRealData) tuple.
func (iov IntervalOfValidity) ValidFor(run int32, isRealData bool) bool {
	if isRealData && !iov.ForData {
		return false
	}
	if !isRealData && !iov.ForMC {
		return false
	}
	if iov.FirstRun != -1 && run < iov.FirstRun {
		return false
	}
	if iov.LastRun != -1 && run > iov.LastRun {
		return false
	}
	return true
}

// Provider produces a named condition object and its validity interval
// for a given event context, per spec.md section 4.H.
type Provider interface {
	Name() string
	GetCondition(eh *header.EventHeader) (interface{}, IntervalOfValidity, error)
}

// Optional hooks a Provider may additionally implement.
type (
	ProcessStarter interface{ OnProcessStart() error }
	ProcessEnder   interface{ OnProcessEnd() error }
	RunObserver    interface {
		OnNewRun(rh *header.RunHeader) error
	}
	// FileOpener and FileCloser are the conditions-provider analogue of
	// the processor package's file-transition hooks, restored from
	// original_source/ by SPEC_FULL: some calibration providers cache
	// per-file state, so the driver notifies providers of recon-mode
	// file transitions the same way it notifies processors.
	FileOpener interface{ OnFileOpen(name string) error }
	FileCloser interface{ OnFileClose(name string) error }
	// Releaser lets a provider run explicit cleanup (closing a file,
	// releasing a reference-counted resource) when its cached object is
	// superseded; the default is a no-op, since Go's garbage collector
	// already reclaims plain memory.
	Releaser interface{ Release(obj interface{}) }
)

type entry struct {
	validity IntervalOfValidity
	object   interface{}
	provider Provider
}

// Cache is the process-owned validity-interval cache. Providers are
// declared once, up front; entries are created lazily on first Get.
type Cache struct {
	providers map[string]Provider
	order     []string
	entries   map[string]*entry
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{providers: map[string]Provider{}, entries: map[string]*entry{}}
}

// Declare registers p under its own declared name. Multiple providers
// declaring the same object name is fatal, per spec.md section 4.H.
func (c *Cache) Declare(p Provider) error {
	if _, ok := c.providers[p.Name()]; ok {
		return xerrors.New(xerrors.Ambiguous, "condition %q already has a declared provider", p.Name())
	}
	c.providers[p.Name()] = p
	c.order = append(c.order, p.Name())
	return nil
}

// OnProcessStart forwards to every declared provider implementing
// ProcessStarter, in declaration order.
func (c *Cache) OnProcessStart() error {
	for _, name := range c.order {
		if s, ok := c.providers[name].(ProcessStarter); ok {
			if err := s.OnProcessStart(); err != nil {
				return err
			}
		}
	}
	return nil
}

// OnProcessEnd forwards to every declared provider implementing
// ProcessEnder, in reverse declaration order — the same start/reverse-on-
// shutdown convention spec.md section 4.I applies to the processor
// sequence as a whole.
func (c *Cache) OnProcessEnd() error {
	for i := len(c.order) - 1; i >= 0; i-- {
		if s, ok := c.providers[c.order[i]].(ProcessEnder); ok {
			if err := s.OnProcessEnd(); err != nil {
				return err
			}
		}
	}
	return nil
}

// OnNewRun forwards the run-boundary notification to every provider
// implementing RunObserver, in declaration order.
func (c *Cache) OnNewRun(rh *header.RunHeader) error {
	for _, name := range c.order {
		if s, ok := c.providers[name].(RunObserver); ok {
			if err := s.OnNewRun(rh); err != nil {
				return err
			}
		}
	}
	return nil
}

// OnFileOpen forwards a recon-mode input-file transition to every
// provider implementing FileOpener, in declaration order.
func (c *Cache) OnFileOpen(name string) error {
	for _, n := range c.order {
		if s, ok := c.providers[n].(FileOpener); ok {
			if err := s.OnFileOpen(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// OnFileClose forwards a recon-mode input-file close to every provider
// implementing FileCloser, in declaration order.
func (c *Cache) OnFileClose(name string) error {
	for _, n := range c.order {
		if s, ok := c.providers[n].(FileCloser); ok {
			if err := s.OnFileClose(name); err != nil {
				return err
			}
		}
	}
	return nil
}

func release(p Provider, obj interface{}) {
	if r, ok := p.(Releaser); ok {
		r.Release(obj)
	}
}

// Get implements spec.md section 4.H get(name, event-header): creates the
// entry on first request, returns the cached object while the event
// falls within its validity interval, and otherwise releases the stale
// object and asks the provider for a fresh one. Get is a package-level
// function (not a Cache method) because Go cannot express a generic type
// parameter on a method — the same constraint that shapes bus.Get and
// header.Get.
func Get[T any](c *Cache, name string, eh *header.EventHeader) (*T, error) {
	p, ok := c.providers[name]
	if !ok {
		return nil, xerrors.New(xerrors.NotFound, "no provider declared for condition %q", name)
	}

	e, ok := c.entries[name]
	if !ok {
		obj, iov, err := p.GetCondition(eh)
		if err != nil {
			return nil, err
		}
		if obj == nil {
			return nil, xerrors.New(xerrors.ConditionUnavailable, "condition %q: provider returned no object", name)
		}
		c.entries[name] = &entry{validity: iov, object: obj, provider: p}
		return castCondition[T](name, obj)
	}

	if e.validity.ValidFor(eh.Run, eh.IsRealData) {
		return castCondition[T](name, e.object)
	}

	release(e.provider, e.object)
	obj, iov, err := p.GetCondition(eh)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, xerrors.New(xerrors.ConditionUnavailable, "condition %q: provider returned no object on refresh", name)
	}
	e.validity = iov
	e.object = obj
	return castCondition[T](name, obj)
}

func castCondition[T any](name string, obj interface{}) (*T, error) {
	v, ok := obj.(*T)
	if !ok {
		return nil, xerrors.New(xerrors.BadType, "condition %q is not a %T", name, new(T))
	}
	return v, nil
}
