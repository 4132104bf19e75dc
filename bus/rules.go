package bus

import (
	"regexp"
	"sort"

	"github.com/fire-hep/fire/fireio"
	"github.com/fire-hep/fire/internal/xerrors"
)

// DropKeepRule is one compiled entry of spec.md section 4.D's ordered
// drop/keep rule list: a pattern matched against "<pass>/<name>" and the
// persistence decision it forces.
type DropKeepRule struct {
	Pattern *regexp.Regexp
	Keep    bool
}

// RuleSpec is the uncompiled, config-file form of a single rule (spec.md
// section 6's drop_keep_rules: [{regex, keep}]).
type RuleSpec struct {
	Regex string
	Keep  bool
}

// CompileDropKeepRules compiles each spec in order, failing with Config on
// the first invalid pattern.
func CompileDropKeepRules(specs []RuleSpec) ([]DropKeepRule, error) {
	out := make([]DropKeepRule, 0, len(specs))
	for _, s := range specs {
		re, err := regexp.Compile(s.Regex)
		if err != nil {
			return nil, xerrors.New(xerrors.Config, "drop_keep_rules: invalid pattern %q: %v", s.Regex, err)
		}
		out = append(out, DropKeepRule{Pattern: re, Keep: s.Keep})
	}
	return out, nil
}

// keep implements spec.md section 4.D's rule evaluation: all rules are
// evaluated against "<pass>/<name>"; the last match wins; no match keeps
// by default.
func (b *Bus) keep(pass, name string) bool {
	key := pass + "/" + name
	result := true
	for _, r := range b.rules {
		if r.Pattern.MatchString(key) {
			result = r.Keep
		}
	}
	return result
}

// Search implements spec.md section 4.D search(name-regex, pass-regex,
// type-regex): returns every known product tag (materialized or only
// discovered from an open input) whose name, pass, and type all match.
func Search(b *Bus, nameRegex, passRegex, typeRegex string) ([]fireio.ProductTag, error) {
	reName, err := regexp.Compile(nameRegex)
	if err != nil {
		return nil, xerrors.New(xerrors.Config, "search: invalid name pattern %q: %v", nameRegex, err)
	}
	rePass, err := regexp.Compile(passRegex)
	if err != nil {
		return nil, xerrors.New(xerrors.Config, "search: invalid pass pattern %q: %v", passRegex, err)
	}
	reType, err := regexp.Compile(typeRegex)
	if err != nil {
		return nil, xerrors.New(xerrors.Config, "search: invalid type pattern %q: %v", typeRegex, err)
	}

	var out []fireio.ProductTag
	for _, key := range b.order {
		d := b.descriptors[key]
		if reName.MatchString(d.name) && rePass.MatchString(d.pass) && reType.MatchString(d.typeName) {
			out = append(out, fireio.ProductTag{Name: d.name, Pass: d.pass, Type: d.typeName, Version: d.version})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pass != out[j].Pass {
			return out[i].Pass < out[j].Pass
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
