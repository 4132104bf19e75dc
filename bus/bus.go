// Package bus implements the event bus described in spec.md section 4.D:
// the per-event registry of named products, their save/load state, and the
// drop/keep evaluation that decides whether each product is persisted or
// mirror-copied at event end.
//
// Grounded on grafana-tempo's friggdb object lifecycle (a registry of
// objects each independently dirty/clean, flushed on a schedule) combined
// with the style of modules/distributor's fan-out registry for the
// name-keyed lookup table.
package bus

import (
	"github.com/fire-hep/fire/data"
	"github.com/fire-hep/fire/fireio"
	"github.com/fire-hep/fire/header"
	"github.com/fire-hep/fire/internal/xerrors"
)

// EventHeaderPath is the fixed path spec.md section 3 reserves for the
// always-present event header.
const EventHeaderPath = "events/EventHeader"

// descriptor is the bus's per-product bookkeeping entry: "{descriptor,
// should_save, should_load, updated-this-event}" in spec.md section 4.D.
// should_save is not stored — it is re-evaluated against the drop/keep
// rules at persist time, since rules may be reconfigured between runs of
// the same process and the spec defines it as evaluated "at write time".
type descriptor struct {
	name, pass string
	path       string
	typeName   string
	version    int

	tree *data.Tree  // nil until a value has been added or lazily loaded
	ptr  interface{} // the *T backing tree, for type-checked Get/re-Add

	fromInput bool // true iff this product is known to exist in the open input (discovered via SetReader, or previously Get-loaded)
	updated   bool // set by Add this event; cleared by ClearEvent
	loaded    bool // set by Get's reload-from-input this event; cleared by ClearEvent
}

// Bus holds the products live during one event, the current pass label,
// and the drop/keep rules that govern persistence.
type Bus struct {
	pass string
	cfg  data.Config

	reader *fireio.Reader
	writer *fireio.Writer
	rules  []DropKeepRule

	descriptors map[string]*descriptor
	order       []string // insertion order, for deterministic Search/Persist

	eventHeader *header.EventHeader
}

// New returns a bus for pass, configured with cfg for any product it
// materializes (chunk size, compression, shuffle).
func New(pass string, cfg data.Config) *Bus {
	return &Bus{
		pass:        pass,
		cfg:         cfg,
		descriptors: map[string]*descriptor{},
		eventHeader: header.NewEventHeader(),
	}
}

// Pass returns the current pass label new products are registered under.
func (b *Bus) Pass() string { return b.pass }

// Header implements spec.md section 4.D header(): the always-present
// event header, shared by reference with whoever loads/saves it.
func (b *Bus) Header() *header.EventHeader { return b.eventHeader }

// SetWriter attaches the output file this bus persists kept products to.
// A nil writer (spec.md section 4.K's user reader) makes PersistEvent a
// no-op.
func (b *Bus) SetWriter(w *fireio.Writer) { b.writer = w }

// Writer returns the currently attached output, or nil.
func (b *Bus) Writer() *fireio.Writer { return b.writer }

// Reader returns the currently attached input, or nil in production mode.
func (b *Bus) Reader() *fireio.Reader { return b.reader }

// SetReader attaches the current input file and discovers its available
// products as passive, not-yet-materialized descriptors, so Get/Exists/
// Search and mirror-copy see them immediately without requiring a prior
// Get.
func (b *Bus) SetReader(r *fireio.Reader) {
	b.reader = r
	if r == nil {
		return
	}
	for _, tag := range r.ListAvailableProducts() {
		key := tag.Pass + "/" + tag.Name
		if _, ok := b.descriptors[key]; ok {
			continue
		}
		d := &descriptor{
			name:      tag.Name,
			pass:      tag.Pass,
			path:      "events/" + tag.Pass + "/" + tag.Name,
			typeName:  tag.Type,
			version:   tag.Version,
			fromInput: true,
		}
		b.descriptors[key] = d
		b.order = append(b.order, key)
	}
}

// ReloadInputs re-synchronizes every already-materialized fromInput
// product to the reader's current row, whether or not a processor calls
// Get this event. Get's own lazy-load path only fires when a product is
// requested; if a processor calls Get on event n, skips it on event n+1,
// then calls it again on event n+2, the column's cursor would otherwise
// sit one row behind forever, silently handing back event n+1's row as
// event n+2's value. Mirrors fire's original C++ Event::load(reader, i),
// which reloads every registered set unconditionally every event via the
// explicit row index, independent of whether get<T>() is called that
// event. Call this once per event, after ClearEvent and before running
// the processor sequence. A descriptor that has never been materialized
// by a Get call is left alone — it has no concrete Go value to load into
// yet, and mirror-copy reaches its rows by random access, not this
// sequential cursor.
func (b *Bus) ReloadInputs() error {
	if b.reader == nil {
		return nil
	}
	for _, key := range b.order {
		d := b.descriptors[key]
		if !d.fromInput || d.tree == nil || d.updated || d.loaded {
			continue
		}
		if err := d.tree.Load(b.reader.Backend()); err != nil {
			return err
		}
		d.loaded = true
	}
	return nil
}

// SetDropKeepRules installs the ordered product-level rules of spec.md
// section 4.D; the last matching rule wins, default is keep.
func (b *Bus) SetDropKeepRules(rules []DropKeepRule) { b.rules = rules }

// ClearEvent implements spec.md section 4.D per-event lifecycle step 1:
// every materialized descriptor's handle resets to its default/empty
// state, and its updated/loaded-this-event flags clear.
func (b *Bus) ClearEvent() {
	for _, key := range b.order {
		d := b.descriptors[key]
		if d.tree != nil {
			d.tree.Clear()
		}
		d.updated = false
		d.loaded = false
	}
}

// PersistEvent implements spec.md section 4.D per-event lifecycle steps
// 3–4's per-product decision, resolved against the row-alignment
// invariant of spec.md section 3 ("the i-th element of every leaf column
// corresponds to the i-th event") and the S3 boundary behavior of spec.md
// section 8 (a sometimes-produced product reads as its cleared default on
// events where it wasn't produced): a product dropped by the rules is
// skipped outright; an updated product is saved; a kept-but-untouched
// product known to exist in the currently open input is mirror-copied
// byte-for-byte; any other kept-but-untouched product (never added this
// event, and either no input is open or the input never had it) still has
// its current — cleared — handle saved, so its column stays one row per
// event rather than going sparse. A bus with no writer attached (spec.md
// section 4.K's user reader) persists nothing.
func (b *Bus) PersistEvent(iEntry int) error {
	if b.writer == nil {
		return nil
	}
	for _, key := range b.order {
		d := b.descriptors[key]
		if !b.keep(d.pass, d.name) {
			continue
		}
		switch {
		case d.updated:
			if err := b.writer.Save(d.path, d.ptr); err != nil {
				return err
			}
		case b.reader != nil && d.fromInput:
			if err := b.reader.Copy(iEntry, d.path, b.writer); err != nil {
				return err
			}
		case d.ptr != nil:
			if err := b.writer.Save(d.path, d.ptr); err != nil {
				return err
			}
		}
	}
	return nil
}

// find resolves (name, pass) to its descriptor per spec.md section 4.D
// get/exists semantics: an exact key lookup when pass is given, otherwise
// a unique match required across all known products named name.
func (b *Bus) find(name, pass string) (*descriptor, error) {
	if pass != "" {
		d, ok := b.descriptors[pass+"/"+name]
		if !ok {
			return nil, xerrors.New(xerrors.NotFound, "product %s/%s not found", pass, name)
		}
		return d, nil
	}
	var match *descriptor
	for _, key := range b.order {
		d := b.descriptors[key]
		if d.name != name {
			continue
		}
		if match != nil {
			return nil, xerrors.New(xerrors.Ambiguous, "product %q is ambiguous across passes", name)
		}
		match = d
	}
	if match == nil {
		return nil, xerrors.New(xerrors.NotFound, "product %q not found", name)
	}
	return match, nil
}

// Exists implements spec.md section 4.D exists(name, pass): true iff a
// unique match resolves.
func (b *Bus) Exists(name, pass string) bool {
	_, err := b.find(name, pass)
	return err == nil
}
