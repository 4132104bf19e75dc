// Package userreader implements the minimal, pipeline-less reader of
// spec.md section 4.K: open a file, advance entry by entry, and fetch
// products against an internal bus that has no writer attached.
//
// Grounded on fireio.Reader/bus.Bus: this package is a thin driver over
// both, playing the same "own a reader, own a bus, advance one row at a
// time" role the process driver plays for a full pipeline run, but with
// no processor sequence, no storage-control voting, and no output.
package userreader

import (
	"github.com/fire-hep/fire/bus"
	"github.com/fire-hep/fire/data"
	"github.com/fire-hep/fire/fireio"
	"github.com/fire-hep/fire/header"
)

// Reader is a pipeline-less entry-at-a-time view of one input file.
type Reader struct {
	path string
	cfg  data.Config

	r   *fireio.Reader
	bus *bus.Bus

	pos        int
	entries    int
	wrapAround bool
}

// Open opens path read-only and positions the reader before the first
// entry (after applying skip, if non-zero). pass labels the internal
// bus's products, matching the pass the file was written under so
// Get resolves the same (name, pass) keys a pipeline run would have used.
// wrapAround makes Next loop back to the beginning of the file instead of
// reporting end-of-file once every entry has been visited.
func Open(path string, cfg data.Config, pass string, skip int, wrapAround bool) (*Reader, error) {
	fr, err := fireio.NewReader(path, cfg)
	if err != nil {
		return nil, err
	}
	ur := &Reader{
		path:       path,
		cfg:        cfg,
		r:          fr,
		bus:        bus.New(pass, cfg),
		entries:    fr.Entries(),
		wrapAround: wrapAround,
	}
	ur.bus.SetReader(fr)

	for i := 0; i < skip; i++ {
		if _, err := ur.Next(); err != nil {
			return nil, err
		}
	}
	return ur, nil
}

// reopen reloads the file from its own beginning, discarding every
// column's sequential read cursor (the backend has no rewind operation,
// so a fresh fireio.Reader is the only way back to row zero).
func (ur *Reader) reopen() error {
	if err := ur.r.Close(); err != nil {
		return err
	}
	fr, err := fireio.NewReader(ur.path, ur.cfg)
	if err != nil {
		return err
	}
	ur.r = fr
	ur.bus.SetReader(fr)
	ur.pos = 0
	return nil
}

// Next advances to the next entry, loading its event header. It reports
// false (with a nil error) at end of file unless wrap-around was
// requested, in which case it transparently reopens the file and
// continues from entry zero.
func (ur *Reader) Next() (bool, error) {
	if ur.pos >= ur.entries {
		if !ur.wrapAround {
			return false, nil
		}
		if err := ur.reopen(); err != nil {
			return false, err
		}
		if ur.entries == 0 {
			return false, nil
		}
	}

	ur.bus.ClearEvent()
	if err := ur.bus.ReloadInputs(); err != nil {
		return false, err
	}
	if err := header.LoadEventHeader(ur.r.Backend(), bus.EventHeaderPath, ur.bus.Header(), ur.cfg); err != nil {
		return false, err
	}
	ur.pos++
	return true, nil
}

// Header returns the event header loaded by the most recent Next.
func (ur *Reader) Header() *header.EventHeader { return ur.bus.Header() }

// Entries returns the file's total event count.
func (ur *Reader) Entries() int { return ur.entries }

// Pos returns the number of entries consumed so far (0 before the first
// successful Next).
func (ur *Reader) Pos() int { return ur.pos }

// Get implements spec.md section 4.K get<T>(name, pass=""): resolves and
// lazily loads a product against the current entry, same resolution
// rules as bus.Get.
func Get[T any](ur *Reader, name, pass string) (*T, error) {
	return bus.Get[T](ur.bus, name, pass)
}

// Close releases the underlying file handle.
func (ur *Reader) Close() error { return ur.r.Close() }
