package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fire-hep/fire/conditions"
	"github.com/fire-hep/fire/header"
	"github.com/fire-hep/fire/internal/params"
	"github.com/fire-hep/fire/internal/xerrors"
	"github.com/fire-hep/fire/processor"
	"github.com/fire-hep/fire/registry"
)

type fakeProducer struct{ name string }

func (p fakeProducer) Name() string                        { return p.name }
func (p fakeProducer) Produce(ctx *processor.Context) error { return nil }

type fakeAnalyzer struct{ name string }

func (a fakeAnalyzer) Name() string                         { return a.name }
func (a fakeAnalyzer) Analyze(ctx *processor.Context) error { return nil }

type fakeProvider struct{ name string }

func (p fakeProvider) Name() string { return p.name }
func (p fakeProvider) GetCondition(eh *header.EventHeader) (interface{}, conditions.IntervalOfValidity, error) {
	return &struct{}{}, conditions.IntervalOfValidity{FirstRun: -1, LastRun: -1, ForData: true, ForMC: true}, nil
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Declare("Hitmaker", func(args params.Reader) (interface{}, error) {
		name, _ := args.GetString("name")
		return fakeProducer{name: name}, nil
	}))
	require.NoError(t, reg.Declare("Counter", func(args params.Reader) (interface{}, error) {
		name, _ := args.GetString("name")
		return fakeAnalyzer{name: name}, nil
	}))
	require.NoError(t, reg.Declare("Calib", func(args params.Reader) (interface{}, error) {
		name, _ := args.GetString("name")
		return fakeProvider{name: name}, nil
	}))
	return reg
}

func TestBuildConfigPopulatesFromRecognizedKeys(t *testing.T) {
	reg := newTestRegistry(t)
	p := params.NewFromMap(map[string]interface{}{
		"pass_name": "reco",
		"output_file": map[string]interface{}{
			"name":              "out.fire",
			"rows_per_chunk":    128,
			"compression_level": 4,
			"shuffle":           true,
		},
		"event_limit":  1000,
		"log_frequency": 100,
		"run":           7,
		"max_tries":     3,
		"drop_keep_rules": []interface{}{
			map[string]interface{}{"regex": "^raw/.*", "keep": false},
		},
		"storage": map[string]interface{}{
			"default_keep": true,
			"listening_rules": []interface{}{
				map[string]interface{}{"processor": "^hitmaker$", "purpose": ".*"},
			},
		},
		"sequence": []interface{}{
			map[string]interface{}{"name": "hitmaker", "class_name": "Hitmaker"},
			map[string]interface{}{"name": "counter", "class_name": "Counter"},
		},
		"conditions": map[string]interface{}{
			"providers": []interface{}{
				map[string]interface{}{"obj_name": "calib", "class_name": "Calib"},
			},
		},
	})

	cfg, sequence, declareConditions, err := buildConfig(p, reg)
	require.NoError(t, err)

	require.Equal(t, "reco", cfg.PassName)
	require.Equal(t, "out.fire", cfg.OutputFile)
	require.Equal(t, 128, cfg.Data.ChunkSize)
	require.Equal(t, 4, cfg.Data.CompressionLevel)
	require.True(t, cfg.Data.Shuffle)
	require.Equal(t, 1000, cfg.EventLimit)
	require.Equal(t, 100, cfg.LogFrequency)
	require.Equal(t, int32(7), cfg.Run)
	require.Equal(t, 3, cfg.MaxTries)
	require.True(t, cfg.DefaultKeep)
	require.Len(t, cfg.DropKeepRules, 1)
	require.Len(t, cfg.ListeningRules, 1)

	require.Len(t, sequence, 2)
	require.Equal(t, "hitmaker", sequence[0].Name())
	require.Equal(t, "counter", sequence[1].Name())

	cache := conditions.NewCache()
	require.NoError(t, declareConditions(cache))
}

func TestBuildConfigMissingOutputFileNameIsNoOutputFile(t *testing.T) {
	reg := newTestRegistry(t)
	p := params.NewFromMap(map[string]interface{}{
		"output_file": map[string]interface{}{},
	})
	_, _, _, err := buildConfig(p, reg)
	require.Error(t, err)
	require.True(t, xerrors.Is(err, xerrors.NoOutputFile))
}

func TestBuildConfigUnknownSequenceClassIsNotFound(t *testing.T) {
	reg := registry.New()
	p := params.NewFromMap(map[string]interface{}{
		"output_file": map[string]interface{}{"name": "out.fire"},
		"sequence": []interface{}{
			map[string]interface{}{"name": "x", "class_name": "DoesNotExist"},
		},
	})
	_, _, _, err := buildConfig(p, reg)
	require.Error(t, err)
	require.True(t, xerrors.Is(err, xerrors.NotFound))
}

func TestAsProcessorWrapsProducerAndAnalyzer(t *testing.T) {
	proc, err := asProcessor(fakeProducer{name: "p"})
	require.NoError(t, err)
	require.Equal(t, "p", proc.Name())

	proc, err = asProcessor(fakeAnalyzer{name: "a"})
	require.NoError(t, err)
	require.Equal(t, "a", proc.Name())

	_, err = asProcessor(42)
	require.Error(t, err)
}

func TestArgsReaderServesTrailingArgs(t *testing.T) {
	root := params.NewFromMap(map[string]interface{}{"pass_name": "reco"})
	a := argsReader{Reader: root, args: []string{"--foo", "bar"}}

	got, ok := a.GetStringSlice("args")
	require.True(t, ok)
	require.Equal(t, []string{"--foo", "bar"}, got)

	name, ok := a.GetString("pass_name")
	require.True(t, ok)
	require.Equal(t, "reco", name)
}
