// Package storagecontrol implements the per-event keep/drop voter of
// spec.md section 4.G: processors cast opinions filtered by listening
// rules, and the driver asks for a final tally-based decision once per
// event.
//
// Grounded on the same small ordered-rule-evaluator shape as the bus
// package's drop/keep rules (see bus.DropKeepRule), but with the opposite
// tie-break order: spec.md section 4.G is explicit that the *first*
// matching listening rule wins, where the bus's product-level rules use
// the *last* match — both are preserved exactly as specified rather than
// unified into one convention.
package storagecontrol

import (
	"regexp"

	"github.com/fire-hep/fire/internal/xerrors"
)

// Hint is a processor's opinion about persisting the current event, per
// spec.md section 4.G.
type Hint int

const (
	Undefined Hint = iota
	NoOpinion
	ShouldKeep
	MustKeep
	ShouldDrop
	MustDrop
)

func (h Hint) String() string {
	switch h {
	case NoOpinion:
		return "NoOpinion"
	case ShouldKeep:
		return "ShouldKeep"
	case MustKeep:
		return "MustKeep"
	case ShouldDrop:
		return "ShouldDrop"
	case MustDrop:
		return "MustDrop"
	default:
		return "Undefined"
	}
}

// ListeningRule is one compiled (processor-regex, purpose-regex) pair a
// hint must match before it is counted.
type ListeningRule struct {
	Processor *regexp.Regexp
	Purpose   *regexp.Regexp
}

// RuleSpec is the uncompiled, config-file form of spec.md section 6's
// storage.listening_rules: [{processor, purpose}].
type RuleSpec struct {
	ProcessorRegex string
	PurposeRegex   string
}

// CompileListeningRules compiles each spec in order, failing with Config
// on the first invalid pattern.
func CompileListeningRules(specs []RuleSpec) ([]ListeningRule, error) {
	out := make([]ListeningRule, 0, len(specs))
	for _, s := range specs {
		pr, err := regexp.Compile(s.ProcessorRegex)
		if err != nil {
			return nil, xerrors.New(xerrors.Config, "storage.listening_rules: invalid processor pattern %q: %v", s.ProcessorRegex, err)
		}
		pu, err := regexp.Compile(s.PurposeRegex)
		if err != nil {
			return nil, xerrors.New(xerrors.Config, "storage.listening_rules: invalid purpose pattern %q: %v", s.PurposeRegex, err)
		}
		out = append(out, ListeningRule{Processor: pr, Purpose: pu})
	}
	return out, nil
}

// Voter tallies per-event hints and renders spec.md section 4.G's
// keep/drop decision.
type Voter struct {
	defaultKeep bool
	rules       []ListeningRule
	hints       []Hint
}

// NewVoter returns a Voter configured with storage.default_keep and the
// compiled listening rules.
func NewVoter(defaultKeep bool, rules []ListeningRule) *Voter {
	return &Voter{defaultKeep: defaultKeep, rules: rules}
}

// AddHint implements spec.md section 4.G add_hint(hint, purpose,
// processor_name): the hint is recorded only if some listening rule
// matches (processor_name, purpose); the first such rule wins, so a hint
// that would match several rules is still counted exactly once.
func (v *Voter) AddHint(hint Hint, purpose, processorName string) {
	for _, r := range v.rules {
		if r.Processor.MatchString(processorName) && r.Purpose.MatchString(purpose) {
			v.hints = append(v.hints, hint)
			return
		}
	}
}

// KeepEvent implements spec.md section 4.G keep_event(): keep if
// keep-votes outnumber drop-votes, drop if the reverse, default_keep on a
// tie (including no hints at all). Should/Must hints are unweighted, per
// spec.md section 9's recorded open question (a).
func (v *Voter) KeepEvent() bool {
	var keepVotes, dropVotes int
	for _, h := range v.hints {
		switch h {
		case ShouldKeep, MustKeep:
			keepVotes++
		case ShouldDrop, MustDrop:
			dropVotes++
		}
	}
	switch {
	case keepVotes > dropVotes:
		return true
	case dropVotes > keepVotes:
		return false
	default:
		return v.defaultKeep
	}
}

// ResetEventState implements spec.md section 4.G reset_event_state():
// called by the driver at the start of every event.
func (v *Voter) ResetEventState() {
	v.hints = v.hints[:0]
}
