// Package processor defines the abstract processing-stage contract of
// spec.md section 4.F: the uniform Processor interface the driver
// schedules, its optional lifecycle hooks, and the Producer/Analyzer
// sugar that fixes process() in terms of produce()/analyze().
//
// Grounded on the optional-capability-interface idiom used throughout the
// wider Go ecosystem (e.g. io.Closer/http.Flusher-style `v, ok :=
// x.(SomeInterface)` checks) rather than a literal teacher file: fire's
// processors have no callback-polymorphism analogue in friggdb. The
// plugin self-registration this package participates in is grounded on
// cmd/tempo/app/modules.go's name-to-constructor `RegisterModule` pattern
// (see the registry package).
package processor

import (
	"github.com/fire-hep/fire/header"
)

// Processor is the uniform contract the driver schedules. Every concrete
// stage satisfies this directly, or is wrapped into it by FromProducer /
// FromAnalyzer.
type Processor interface {
	Name() string
	Process(ctx *Context) error
}

// The following are the optional lifecycle hooks of spec.md section 4.F,
// "all optional except process". The driver type-asserts a Processor
// against each at the appropriate point rather than requiring every
// implementation to carry every method.
type (
	ProcessStarter interface {
		OnProcessStart() error
	}
	ProcessEnder interface {
		OnProcessEnd() error
	}
	FileOpenObserver interface {
		OnFileOpen(name string) error
	}
	FileCloseObserver interface {
		OnFileClose(name string) error
	}
	// RunObserver is the read-only onNewRun hook available to any
	// processor, producer or analyzer.
	RunObserver interface {
		OnNewRun(rh *header.RunHeader) error
	}
	// RunMutator is beforeNewRun: per spec.md section 4.F, only
	// producers may implement it — FromAnalyzer never forwards to it
	// even if the wrapped Analyzer happens to define the method, which
	// is what makes it "sealed" for analyzers rather than a convention.
	RunMutator interface {
		BeforeNewRun(rh *header.RunHeader) error
	}
)

// Producer is what a concrete production stage implements: spec.md
// section 4.F's "implements produce(Event&); process is fixed to call
// produce".
type Producer interface {
	Name() string
	Produce(ctx *Context) error
}

// Analyzer is what a concrete analysis stage implements: "implements
// analyze(Event const&); process is fixed to call analyze; beforeNewRun
// is forbidden (no-op sealed)".
type Analyzer interface {
	Name() string
	Analyze(ctx *Context) error
}

// producerAdapter wraps a Producer into the uniform Processor contract,
// forwarding whichever optional hooks the wrapped value implements,
// including RunMutator.
type producerAdapter struct{ Producer }

func (a producerAdapter) Process(ctx *Context) error { return a.Produce(ctx) }

func (a producerAdapter) OnProcessStart() error {
	if s, ok := a.Producer.(ProcessStarter); ok {
		return s.OnProcessStart()
	}
	return nil
}

func (a producerAdapter) OnProcessEnd() error {
	if s, ok := a.Producer.(ProcessEnder); ok {
		return s.OnProcessEnd()
	}
	return nil
}

func (a producerAdapter) OnFileOpen(name string) error {
	if s, ok := a.Producer.(FileOpenObserver); ok {
		return s.OnFileOpen(name)
	}
	return nil
}

func (a producerAdapter) OnFileClose(name string) error {
	if s, ok := a.Producer.(FileCloseObserver); ok {
		return s.OnFileClose(name)
	}
	return nil
}

func (a producerAdapter) OnNewRun(rh *header.RunHeader) error {
	if s, ok := a.Producer.(RunObserver); ok {
		return s.OnNewRun(rh)
	}
	return nil
}

func (a producerAdapter) BeforeNewRun(rh *header.RunHeader) error {
	if s, ok := a.Producer.(RunMutator); ok {
		return s.BeforeNewRun(rh)
	}
	return nil
}

// FromProducer adapts p into a Processor with process() fixed to call
// Produce, per spec.md section 4.F.
func FromProducer(p Producer) Processor { return producerAdapter{p} }

// analyzerAdapter wraps an Analyzer into the uniform Processor contract.
// It deliberately implements no BeforeNewRun method at all: an Analyzer
// value that happens to define BeforeNewRun is never consulted by the
// driver, since the driver only ever sees the adapter.
type analyzerAdapter struct{ Analyzer }

func (a analyzerAdapter) Process(ctx *Context) error { return a.Analyze(ctx) }

func (a analyzerAdapter) OnProcessStart() error {
	if s, ok := a.Analyzer.(ProcessStarter); ok {
		return s.OnProcessStart()
	}
	return nil
}

func (a analyzerAdapter) OnProcessEnd() error {
	if s, ok := a.Analyzer.(ProcessEnder); ok {
		return s.OnProcessEnd()
	}
	return nil
}

func (a analyzerAdapter) OnFileOpen(name string) error {
	if s, ok := a.Analyzer.(FileOpenObserver); ok {
		return s.OnFileOpen(name)
	}
	return nil
}

func (a analyzerAdapter) OnFileClose(name string) error {
	if s, ok := a.Analyzer.(FileCloseObserver); ok {
		return s.OnFileClose(name)
	}
	return nil
}

func (a analyzerAdapter) OnNewRun(rh *header.RunHeader) error {
	if s, ok := a.Analyzer.(RunObserver); ok {
		return s.OnNewRun(rh)
	}
	return nil
}

// FromAnalyzer adapts a into a Processor with process() fixed to call
// Analyze, and BeforeNewRun sealed to a no-op per spec.md section 4.F.
func FromAnalyzer(a Analyzer) Processor { return analyzerAdapter{a} }
