package process

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fire-hep/fire/bus"
	"github.com/fire-hep/fire/conditions"
	"github.com/fire-hep/fire/data"
	"github.com/fire-hep/fire/fireio"
	"github.com/fire-hep/fire/header"
	"github.com/fire-hep/fire/processor"
)

type hit struct{ N int32 }

func (h *hit) Clear()                 { h.N = 0 }
func (h *hit) Attach(b *data.Builder) { b.Add("n", &h.N) }

// countingProducer saves one hit product per event and tracks lifecycle
// callback order.
type countingProducer struct {
	name       string
	produced   int
	starts     int
	ends       int
	beforeRuns int
	onRuns     int
}

func (p *countingProducer) Name() string { return p.name }
func (p *countingProducer) Process(ctx *processor.Context) error {
	p.produced++
	return bus.Add(ctx.Bus, "hit", &hit{N: int32(p.produced)})
}
func (p *countingProducer) OnProcessStart() error                  { p.starts++; return nil }
func (p *countingProducer) OnProcessEnd() error                    { p.ends++; return nil }
func (p *countingProducer) BeforeNewRun(rh *header.RunHeader) error { p.beforeRuns++; return nil }
func (p *countingProducer) OnNewRun(rh *header.RunHeader) error     { p.onRuns++; return nil }

func testConfig(t *testing.T, outputFile string, eventLimit int) Config {
	t.Helper()
	return Config{
		PassName:     "reco",
		OutputFile:   outputFile,
		EventLimit:   eventLimit,
		LogFrequency: -1,
		Run:          7,
		MaxTries:     3,
		Data:         data.Config{ChunkSize: 64},
		DefaultKeep:  true,
	}
}

func TestRunProductionWritesEventsAndDispatchesLifecycle(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.fire")
	p := &countingProducer{name: "hitmaker"}

	d, err := New(testConfig(t, out, 5), nil, []processor.Processor{p}, nil)
	require.NoError(t, err)
	require.NoError(t, d.Run())

	require.Equal(t, 5, p.produced)
	require.Equal(t, 1, p.starts)
	require.Equal(t, 1, p.ends)
	require.Equal(t, 1, p.beforeRuns)
	require.Equal(t, 1, p.onRuns)

	r, err := fireio.NewReader(out, data.Config{ChunkSize: 64})
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, 5, r.Entries())
	require.Equal(t, 1, r.Runs())
}

// abortingProducer fails the first N attempts per event with AbortEvent,
// then succeeds.
type abortingProducer struct {
	failuresPerEvent int
	callsThisEvent   int
	succeeded        int
}

func (p *abortingProducer) Name() string { return "aborter" }
func (p *abortingProducer) Process(ctx *processor.Context) error {
	p.callsThisEvent++
	if p.callsThisEvent <= p.failuresPerEvent {
		return processor.AbortEvent()
	}
	p.callsThisEvent = 0
	p.succeeded++
	return bus.Add(ctx.Bus, "hit", &hit{N: int32(p.succeeded)})
}

func TestRunProductionRetriesAbortEventUpToMaxTries(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.fire")
	p := &abortingProducer{failuresPerEvent: 2}

	cfg := testConfig(t, out, 3)
	cfg.MaxTries = 3
	d, err := New(cfg, nil, []processor.Processor{p}, nil)
	require.NoError(t, err)
	require.NoError(t, d.Run())
	require.Equal(t, 3, p.succeeded, "expected every event to eventually succeed within max_tries")
}

type alwaysAbortProducer struct{}

func (alwaysAbortProducer) Name() string                         { return "neverworks" }
func (alwaysAbortProducer) Process(ctx *processor.Context) error { return processor.AbortEvent() }

// Once max_tries is exhausted the event still goes to storage-control's
// keep_event(); with no hints, default_keep (true in testConfig) keeps it.
func TestRunProductionExhaustedRetriesStillAskKeepEvent(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.fire")
	cfg := testConfig(t, out, 2)
	cfg.MaxTries = 2

	d, err := New(cfg, nil, []processor.Processor{alwaysAbortProducer{}}, nil)
	require.NoError(t, err)
	require.NoError(t, d.Run(), "exhausting retries on AbortEvent must not fail the run")

	r, err := fireio.NewReader(out, data.Config{ChunkSize: 64})
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, 2, r.Entries(), "default_keep=true should keep every event after its retries are exhausted")
}

type finishAfterOneProducer struct{ calls int }

func (p *finishAfterOneProducer) Name() string { return "finisher" }
func (p *finishAfterOneProducer) Process(ctx *processor.Context) error {
	p.calls++
	if p.calls == 1 {
		ctx.RequestFinish()
	}
	return bus.Add(ctx.Bus, "hit", &hit{N: int32(p.calls)})
}

func TestRunProductionRequestFinishStopsAtNextBoundary(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.fire")
	p := &finishAfterOneProducer{}

	d, err := New(testConfig(t, out, 100), nil, []processor.Processor{p}, nil)
	require.NoError(t, err)
	require.NoError(t, d.Run())
	require.Equal(t, 1, p.calls, "RequestFinish must stop the loop right after the current event completes")

	r, err := fireio.NewReader(out, data.Config{ChunkSize: 64})
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, 1, r.Entries())
}

type calib struct{ Gain float64 }
type calibProvider struct{ calls int }

func (p *calibProvider) Name() string { return "calib" }
func (p *calibProvider) GetCondition(eh *header.EventHeader) (interface{}, conditions.IntervalOfValidity, error) {
	p.calls++
	return &calib{Gain: 2}, conditions.IntervalOfValidity{FirstRun: -1, LastRun: -1, ForData: true, ForMC: true}, nil
}

type calibConsumer struct{}

func (calibConsumer) Name() string { return "consumer" }
func (calibConsumer) Process(ctx *processor.Context) error {
	v, err := processor.GetCondition[calib](ctx, "calib")
	if err != nil {
		return err
	}
	return bus.Add(ctx.Bus, "hit", &hit{N: int32(v.Gain)})
}

func TestRunProductionDeclaresConditionsBeforeProcessStart(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.fire")
	prov := &calibProvider{}

	d, err := New(testConfig(t, out, 2), nil, []processor.Processor{calibConsumer{}}, func(c *conditions.Cache) error {
		return c.Declare(prov)
	})
	require.NoError(t, err)
	require.NoError(t, d.Run())
	require.Equal(t, 1, prov.calls, "expected the condition fetched once and cached across both events")
}

func TestDriverRunIDIsStableForProcess(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.fire")
	d, err := New(testConfig(t, out, 1), nil, []processor.Processor{&countingProducer{name: "p"}}, nil)
	require.NoError(t, err)
	id := d.RunID()
	require.NotEmpty(t, id)
	require.NoError(t, d.Run())
	require.Equal(t, id, d.RunID())
}
