package process

import (
	"errors"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/fire-hep/fire/bus"
	"github.com/fire-hep/fire/conditions"
	"github.com/fire-hep/fire/fireio"
	"github.com/fire-hep/fire/header"
	"github.com/fire-hep/fire/internal/logging"
	"github.com/fire-hep/fire/internal/xerrors"
	"github.com/fire-hep/fire/processor"
	"github.com/fire-hep/fire/storagecontrol"
)

// runsPath is the fixed path spec.md section 6 reserves for the run
// header group ("runs/number" is one of the two required fixed paths).
const runsPath = "runs"

// Driver is the top-level event loop of spec.md section 4.I: it owns the
// bus, the storage-control voter, the conditions cache, the processor
// sequence, and every open reader/writer for the lifetime of one run of
// the pipeline.
type Driver struct {
	cfg    Config
	logger logging.Logger

	sequence   []processor.Processor
	conditions *conditions.Cache

	bus   *bus.Bus
	voter *storagecontrol.Voter
	ctx   *processor.Context

	writer *fireio.Writer

	runID     string
	lastRun   int32
	runHeader *header.RunHeader
	processed atomic.Int64
}

// New constructs a Driver. declareConditions is called once, immediately,
// to let the caller register every conditions provider before the loop's
// onProcessStart dispatch; it may be nil if no conditions are needed.
func New(cfg Config, logger logging.Logger, sequence []processor.Processor, declareConditions func(*conditions.Cache) error) (*Driver, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	dropKeep, err := bus.CompileDropKeepRules(cfg.DropKeepRules)
	if err != nil {
		return nil, err
	}
	listening, err := storagecontrol.CompileListeningRules(cfg.ListeningRules)
	if err != nil {
		return nil, err
	}

	b := bus.New(cfg.PassName, cfg.Data)
	b.SetDropKeepRules(dropKeep)
	voter := storagecontrol.NewVoter(cfg.DefaultKeep, listening)
	condCache := conditions.NewCache()
	if declareConditions != nil {
		if err := declareConditions(condCache); err != nil {
			return nil, err
		}
	}

	d := &Driver{
		cfg:        cfg,
		logger:     logger,
		sequence:   sequence,
		conditions: condCache,
		bus:        b,
		voter:      voter,
		ctx:        processor.NewContext(b, voter, condCache),
		runID:      uuid.New().String(),
		lastRun:    math.MinInt32, // sentinel: "no run seen yet"
	}
	return d, nil
}

// Run executes the event loop to completion (or until requestFinish, or a
// fatal error) and releases every resource it opened, aggregating
// shutdown errors rather than masking any of them.
func (d *Driver) Run() error {
	writer, err := fireio.NewWriter(d.cfg.OutputFile, d.cfg.Data)
	if err != nil {
		return err
	}
	d.writer = writer
	d.bus.SetWriter(writer)
	if err := writer.Backend().SetAttr("", "run_instance_id", d.runID); err != nil {
		return err
	}
	if err := header.DeclareEventHeader(writer.Backend(), bus.EventHeaderPath, d.bus.Header(), d.cfg.Data); err != nil {
		return multierr.Append(err, writer.Close())
	}
	if err := header.DeclareRunHeader(writer.Backend(), runsPath, header.NewRunHeader(), d.cfg.Data); err != nil {
		return multierr.Append(err, writer.Close())
	}

	if err := d.dispatchProcessStart(); err != nil {
		return multierr.Append(err, d.shutdown())
	}

	var runErr error
	if d.cfg.productionMode() {
		runErr = d.runProduction()
	} else {
		runErr = d.runRecon()
	}

	endErr := d.dispatchProcessEnd()
	return multierr.Combine(runErr, endErr, d.shutdown())
}

func (d *Driver) shutdown() error {
	if d.writer == nil {
		return nil
	}
	return d.writer.Close()
}

func (d *Driver) dispatchProcessStart() error {
	if err := d.conditions.OnProcessStart(); err != nil {
		return err
	}
	for _, p := range d.sequence {
		if s, ok := p.(processor.ProcessStarter); ok {
			if err := s.OnProcessStart(); err != nil {
				return processor.Fatalf(p.Name(), "%v", err)
			}
		}
	}
	return nil
}

// dispatchProcessEnd runs onProcessEnd in reverse of startup order, per
// spec.md section 4.I: processors first (in reverse declaration order),
// then conditions.
func (d *Driver) dispatchProcessEnd() error {
	var errs error
	for i := len(d.sequence) - 1; i >= 0; i-- {
		p := d.sequence[i]
		if s, ok := p.(processor.ProcessEnder); ok {
			if err := s.OnProcessEnd(); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}
	if err := d.conditions.OnProcessEnd(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

func (d *Driver) dispatchBeforeNewRun(rh *header.RunHeader) error {
	for _, p := range d.sequence {
		if rm, ok := p.(processor.RunMutator); ok {
			if err := rm.BeforeNewRun(rh); err != nil {
				return processor.Fatalf(p.Name(), "%v", err)
			}
		}
	}
	return nil
}

func (d *Driver) dispatchOnNewRun(rh *header.RunHeader) error {
	for _, p := range d.sequence {
		if ro, ok := p.(processor.RunObserver); ok {
			if err := ro.OnNewRun(rh); err != nil {
				return processor.Fatalf(p.Name(), "%v", err)
			}
		}
	}
	return d.conditions.OnNewRun(rh)
}

func (d *Driver) dispatchFileOpen(name string) error {
	for _, p := range d.sequence {
		if fo, ok := p.(processor.FileOpenObserver); ok {
			if err := fo.OnFileOpen(name); err != nil {
				return processor.Fatalf(p.Name(), "%v", err)
			}
		}
	}
	return d.conditions.OnFileOpen(name)
}

func (d *Driver) dispatchFileClose(name string) error {
	for _, p := range d.sequence {
		if fc, ok := p.(processor.FileCloseObserver); ok {
			if err := fc.OnFileClose(name); err != nil {
				return processor.Fatalf(p.Name(), "%v", err)
			}
		}
	}
	return d.conditions.OnFileClose(name)
}

// runSequenceOnce calls process() on every sequence entry, in order,
// stopping at the first error (abort, fatal, or otherwise).
func (d *Driver) runSequenceOnce() error {
	for _, p := range d.sequence {
		d.ctx.SetCurrentProcessor(p.Name())
		if err := p.Process(d.ctx); err != nil {
			if errors.Is(err, processor.ErrAbortEvent) {
				return err
			}
			if xerrors.Is(err, xerrors.FatalProcessor) {
				return err
			}
			return processor.Fatalf(p.Name(), "%v", err)
		}
	}
	return nil
}

// runOneEvent implements spec.md section 4.I's per-event algorithm: reset
// storage-control, run the sequence (retrying up to max_tries on
// AbortEvent), ask keep_event(), persist or drop. iEntry is the input
// row index for mirror-copy in recon mode; it is ignored in production
// mode, where the bus has no reader attached.
func (d *Driver) runOneEvent(iEntry int) error {
	tries := d.cfg.MaxTries
	if tries < 1 {
		tries = 1
	}

	var seqErr error
	for attempt := 1; attempt <= tries; attempt++ {
		d.voter.ResetEventState()
		d.bus.ClearEvent()
		if err := d.bus.ReloadInputs(); err != nil {
			return err
		}

		seqErr = d.runSequenceOnce()
		if seqErr == nil {
			break
		}
		if !errors.Is(seqErr, processor.ErrAbortEvent) {
			return seqErr // fatal, not retryable
		}
	}
	if seqErr != nil && !errors.Is(seqErr, processor.ErrAbortEvent) {
		return seqErr
	}

	if d.voter.KeepEvent() {
		if err := header.SaveEventHeader(d.writer.Backend(), bus.EventHeaderPath, d.bus.Header(), d.cfg.Data); err != nil {
			return err
		}
		if err := d.bus.PersistEvent(iEntry); err != nil {
			return err
		}
	}

	n := d.processed.Inc()
	if d.cfg.LogFrequency > 0 && n%int64(d.cfg.LogFrequency) == 0 {
		logging.Info(d.logger).Log("msg", "processed events", "count", humanize.Comma(n))
	}
	return nil
}

// runProduction implements spec.md section 4.I's production mode: event
// numbers 1..event_limit, a single configured run throughout, fixed
// timestamps per event. beforeNewRun/onNewRun fire once at loop start for
// the synthesized RunHeader, per SPEC_FULL's original_source/ supplement
// extending that dispatch to production mode.
func (d *Driver) runProduction() error {
	if d.cfg.EventLimit <= 0 {
		return xerrors.New(xerrors.Config, "production mode requires event_limit > 0")
	}

	rh := header.NewRunHeader()
	rh.RunStart(d.cfg.Run)
	d.runHeader = rh
	if err := d.dispatchBeforeNewRun(rh); err != nil {
		return err
	}
	if err := d.dispatchOnNewRun(rh); err != nil {
		return err
	}

	eh := d.bus.Header()
	for n := int32(1); n <= int32(d.cfg.EventLimit); n++ {
		eh.Clear()
		eh.Number = n
		eh.Run = d.cfg.Run
		eh.IsRealData = d.cfg.Run >= 0
		eh.SetTimestamp()

		if err := d.runOneEvent(0); err != nil {
			return err
		}
		if d.ctx.FinishRequested() {
			break
		}
	}

	rh.RunEnd()
	return header.SaveRunHeader(d.writer.Backend(), runsPath, rh, d.cfg.Data)
}

// runRecon implements spec.md section 4.I's recon mode: open each input
// file in order, detect run-boundary transitions by comparing the loaded
// event's run to the last seen, and stop at event_limit.
func (d *Driver) runRecon() error {
	var eventsSeen int64
	for _, path := range d.cfg.InputFiles {
		reader, err := fireio.NewReader(path, d.cfg.Data)
		if err != nil {
			return err
		}
		d.bus.SetReader(reader)

		if err := d.dispatchFileOpen(path); err != nil {
			return multierr.Append(err, reader.Close())
		}

		entries := reader.Entries()
		for i := 0; i < entries; i++ {
			if d.cfg.EventLimit >= 0 && eventsSeen >= int64(d.cfg.EventLimit) {
				break
			}

			eh := d.bus.Header()
			eh.Clear()
			if err := header.LoadEventHeader(reader.Backend(), bus.EventHeaderPath, eh, d.cfg.Data); err != nil {
				return multierr.Append(err, reader.Close())
			}

			if eh.Run != d.lastRun {
				rh := header.NewRunHeader()
				if err := header.LoadRunHeader(reader.Backend(), runsPath, rh, d.cfg.Data); err != nil {
					return multierr.Append(err, reader.Close())
				}
				d.runHeader = rh
				d.lastRun = eh.Run
				if err := d.dispatchBeforeNewRun(rh); err != nil {
					return multierr.Append(err, reader.Close())
				}
				if err := d.dispatchOnNewRun(rh); err != nil {
					return multierr.Append(err, reader.Close())
				}
			}

			if err := d.runOneEvent(i); err != nil {
				return multierr.Append(err, reader.Close())
			}
			eventsSeen++
			if d.ctx.FinishRequested() {
				break
			}
		}

		if err := d.dispatchFileClose(path); err != nil {
			return multierr.Append(err, reader.Close())
		}
		if err := reader.Close(); err != nil {
			return err
		}
		if d.ctx.FinishRequested() {
			break
		}
		if d.cfg.EventLimit >= 0 && eventsSeen >= int64(d.cfg.EventLimit) {
			break
		}
	}
	return nil
}

// RunID returns the per-process run instance id stamped on the output
// file's top-level attributes.
func (d *Driver) RunID() string { return d.runID }
