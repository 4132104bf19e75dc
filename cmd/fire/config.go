package main

import (
	"github.com/fire-hep/fire/bus"
	"github.com/fire-hep/fire/conditions"
	"github.com/fire-hep/fire/internal/params"
	"github.com/fire-hep/fire/internal/xerrors"
	"github.com/fire-hep/fire/process"
	"github.com/fire-hep/fire/processor"
	"github.com/fire-hep/fire/registry"
	"github.com/fire-hep/fire/storagecontrol"
)

// outputFileConfig is the fixed-shape output_file block of spec.md
// section 6, decoded via params.Reader.Decode.
type outputFileConfig struct {
	Name             string
	EventLimit       int `mapstructure:"event_limit"`
	RowsPerChunk     int `mapstructure:"rows_per_chunk"`
	CompressionLevel int `mapstructure:"compression_level"`
	Shuffle          bool
}

// buildConfig translates a params.Reader (spec.md section 6's recognized
// keys) into a process.Config, the processor sequence, and the
// conditions-provider declaration hook New expects. Every class_name is
// resolved against reg, shared between the sequence and the conditions
// providers since both are plain named plugins per spec.md section 4.J.
func buildConfig(p params.Reader, reg *registry.Registry) (process.Config, []processor.Processor, func(*conditions.Cache) error, error) {
	var cfg process.Config

	if name, ok := p.GetString("pass_name"); ok {
		cfg.PassName = name
	}

	var of outputFileConfig
	if err := p.Decode("output_file", &of); err != nil {
		return cfg, nil, nil, xerrors.Wrap(xerrors.NoOutputFile, err, "output_file")
	}
	if of.Name == "" {
		return cfg, nil, nil, xerrors.New(xerrors.NoOutputFile, "output_file.name is required")
	}
	cfg.OutputFile = of.Name
	cfg.Data.ChunkSize = of.RowsPerChunk
	cfg.Data.CompressionLevel = of.CompressionLevel
	cfg.Data.Shuffle = of.Shuffle

	cfg.EventLimit = -1
	if n, ok := p.GetInt("event_limit"); ok {
		cfg.EventLimit = n
	}
	cfg.LogFrequency = -1
	if n, ok := p.GetInt("log_frequency"); ok {
		cfg.LogFrequency = n
	}
	if n, ok := p.GetInt("run"); ok {
		cfg.Run = int32(n)
	}
	cfg.MaxTries = 1
	if n, ok := p.GetInt("max_tries"); ok {
		cfg.MaxTries = n
	}
	if files, ok := p.GetStringSlice("input_files"); ok {
		cfg.InputFiles = files
	}

	for _, spec := range p.Slice("drop_keep_rules") {
		regex, _ := spec.GetString("regex")
		keep, _ := spec.GetBool("keep")
		cfg.DropKeepRules = append(cfg.DropKeepRules, bus.RuleSpec{Regex: regex, Keep: keep})
	}

	storageReader := p.Sub("storage")
	cfg.DefaultKeep, _ = storageReader.GetBool("default_keep")
	for _, spec := range storageReader.Slice("listening_rules") {
		proc, _ := spec.GetString("processor")
		purpose, _ := spec.GetString("purpose")
		cfg.ListeningRules = append(cfg.ListeningRules, storagecontrol.RuleSpec{ProcessorRegex: proc, PurposeRegex: purpose})
	}

	if libs, ok := p.GetStringSlice("libraries"); ok {
		for _, path := range libs {
			if err := reg.LoadLibrary(path); err != nil {
				return cfg, nil, nil, err
			}
		}
	}

	var sequence []processor.Processor
	for _, spec := range p.Slice("sequence") {
		obj, err := makeFromSpec(reg, spec)
		if err != nil {
			return cfg, nil, nil, err
		}
		proc, err := asProcessor(obj)
		if err != nil {
			return cfg, nil, nil, err
		}
		sequence = append(sequence, proc)
	}

	providerSpecs := p.Slice("conditions.providers")
	declareConditions := func(c *conditions.Cache) error {
		for _, spec := range providerSpecs {
			obj, err := makeFromSpec(reg, spec)
			if err != nil {
				return err
			}
			prov, ok := obj.(conditions.Provider)
			if !ok {
				return xerrors.New(xerrors.BadType, "%T does not implement conditions.Provider", obj)
			}
			if err := c.Declare(prov); err != nil {
				return err
			}
		}
		return nil
	}

	return cfg, sequence, declareConditions, nil
}

// makeFromSpec resolves one sequence or conditions.providers entry's
// class_name against reg, passing the entry itself as construction
// arguments so a factory can read its own "name"/"obj_name"/"tag_name"
// keys alongside whatever it defines.
func makeFromSpec(reg *registry.Registry, spec params.Reader) (interface{}, error) {
	className, ok := spec.GetString("class_name")
	if !ok {
		return nil, xerrors.New(xerrors.Config, "entry missing class_name")
	}
	return reg.Make(className, spec)
}

// asProcessor resolves a freshly constructed plugin instance to the
// uniform Processor contract, wrapping a bare Producer or Analyzer the
// same way a hand-written sequence would via processor.FromProducer /
// processor.FromAnalyzer.
func asProcessor(obj interface{}) (processor.Processor, error) {
	switch v := obj.(type) {
	case processor.Processor:
		return v, nil
	case processor.Producer:
		return processor.FromProducer(v), nil
	case processor.Analyzer:
		return processor.FromAnalyzer(v), nil
	default:
		return nil, xerrors.New(xerrors.BadType, "%T implements neither Processor, Producer nor Analyzer", obj)
	}
}
