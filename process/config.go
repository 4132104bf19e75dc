// Package process implements the top-level event loop of spec.md section
// 4.I: production and recon modes over the event bus, the processor
// sequence, storage-control voting, and run-boundary callbacks.
//
// Grounded on cmd/tempo/app's App.Run-style top-level driver: one
// long-lived struct owning every collaborator's lifecycle, with explicit
// start/stop ordering rather than implicit init-on-first-use.
package process

import (
	"github.com/fire-hep/fire/bus"
	"github.com/fire-hep/fire/data"
	"github.com/fire-hep/fire/storagecontrol"
)

// Config is the process driver's configuration, spec.md section 4.I's
// Parameters-derived inputs plus section 6's matching config keys.
type Config struct {
	PassName string

	InputFiles []string // empty => production mode
	OutputFile string

	EventLimit   int // -1 = unbounded
	LogFrequency int // -1 = off
	Run          int32
	MaxTries     int

	Data data.Config

	DropKeepRules  []bus.RuleSpec
	DefaultKeep    bool
	ListeningRules []storagecontrol.RuleSpec
}

func (c Config) productionMode() bool { return len(c.InputFiles) == 0 }
