package processor

import (
	"errors"
	"fmt"

	"go.uber.org/atomic"

	"github.com/fire-hep/fire/bus"
	"github.com/fire-hep/fire/conditions"
	"github.com/fire-hep/fire/internal/xerrors"
	"github.com/fire-hep/fire/storagecontrol"
)

// Context is what process() actually receives: the event bus, plus the
// utility operations of spec.md section 4.F (abort_event, fatal_error,
// add_storage_hint, get_condition<T>) that need more than bare product
// access. The driver constructs one Context per bus and reuses it across
// events, calling SetCurrentProcessor before each processor's turn so
// AddStorageHint attributes hints to the right instance name.
type Context struct {
	Bus *bus.Bus

	voter            *storagecontrol.Voter
	conditions       *conditions.Cache
	currentProcessor string
	finishRequested  atomic.Bool
}

// NewContext returns a Context wired to the given bus, voter and
// conditions cache. voter and the conditions cache may be nil;
// AddStorageHint and GetCondition are then no-ops/NotFound respectively.
func NewContext(b *bus.Bus, voter *storagecontrol.Voter, cache *conditions.Cache) *Context {
	return &Context{Bus: b, voter: voter, conditions: cache}
}

// SetCurrentProcessor is called by the driver immediately before handing
// control to the named processor, so AddStorageHint knows who is voting.
func (ctx *Context) SetCurrentProcessor(name string) { ctx.currentProcessor = name }

// AddStorageHint implements spec.md section 4.F add_storage_hint(hint,
// purpose): forwarded to the storage-control voter under the currently
// running processor's name.
func (ctx *Context) AddStorageHint(hint storagecontrol.Hint, purpose string) {
	if ctx.voter == nil {
		return
	}
	ctx.voter.AddHint(hint, purpose, ctx.currentProcessor)
}

// GetCondition implements spec.md section 4.F get_condition<T>(name),
// resolved against the current event's header. A package-level generic
// function, not a Context method, for the same reason as bus.Get and
// conditions.Get: Go does not allow a method to introduce its own type
// parameter.
func GetCondition[T any](ctx *Context, name string) (*T, error) {
	if ctx.conditions == nil {
		return nil, xerrors.New(xerrors.NotFound, "no conditions cache configured for condition %q", name)
	}
	return conditions.Get[T](ctx.conditions, name, ctx.Bus.Header())
}

// ErrAbortEvent is the sentinel spec.md section 4.F's abort_event()
// returns to process(). Per the design note in spec.md section 9
// preferring explicit result values over exception-style control flow,
// this is a plain error value a processor returns from Process, not a
// panic or a side-channel call: the driver checks errors.Is(err,
// ErrAbortEvent) after every processor invocation.
var ErrAbortEvent = errors.New("fire: abort_event")

// AbortEvent implements spec.md section 4.F abort_event(): a processor
// calls "return processor.AbortEvent()" to signal that the current event
// should stop being processed and be retried, up to the configured
// max_tries.
func AbortEvent() error { return ErrAbortEvent }

// Fatalf implements spec.md section 4.F fatal_error(msg): it builds a
// FatalProcessor error carrying processorName, which the driver logs and
// exits non-zero on.
func Fatalf(processorName, format string, args ...interface{}) error {
	return xerrors.NewFatalProcessor(processorName, fmt.Sprintf(format, args...))
}

// RequestFinish implements the graceful early-stop operation named in
// spec.md section 5 ("a processor may raise requestFinish on the
// driver") and detailed in SPEC_FULL's supplement restoring it from
// original_source/: unlike AbortEvent, which only cuts short the current
// event's sequence, RequestFinish lets the current event finish normally
// (including its persistence decision) and stops the loop before the
// next one starts.
func (ctx *Context) RequestFinish() { ctx.finishRequested.Store(true) }

// FinishRequested reports whether any processor has called RequestFinish
// since the Context was created (the flag is never reset); the driver
// checks this once per event, after
// persistence, as its loop-continuation guard.
func (ctx *Context) FinishRequested() bool { return ctx.finishRequested.Load() }
