package header

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fire-hep/fire/backend"
	"github.com/fire-hep/fire/data"
	"github.com/fire-hep/fire/internal/xerrors"
)

func TestEventHeaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.fire")
	cfg := data.Config{ChunkSize: 4}

	w, err := backend.Open(path, backend.ModeTruncateWrite)
	require.NoError(t, err)

	eh := NewEventHeader()
	require.NoError(t, DeclareEventHeader(w, "events/EventHeader", eh, cfg))

	eh.Number = 1
	eh.Run = 7
	eh.Weight = 1.0
	eh.IsRealData = true
	eh.SetTimestamp()
	Set(&eh.Parameters, "trigger", 3)
	require.NoError(t, SaveEventHeader(w, "events/EventHeader", eh, cfg))

	eh.Clear()
	eh.Number = 2
	eh.Run = 7
	eh.Weight = 0.5
	Set(&eh.Parameters, "trigger", 9)
	require.NoError(t, SaveEventHeader(w, "events/EventHeader", eh, cfg))

	require.NoError(t, w.Close())

	r, err := backend.Open(path, backend.ModeReadOnly)
	require.NoError(t, err)

	var loaded EventHeader
	require.NoError(t, LoadEventHeader(r, "events/EventHeader", &loaded, cfg))
	require.Equal(t, int32(1), loaded.Number)
	require.Equal(t, int32(7), loaded.Run)
	require.True(t, loaded.IsRealData)
	trig, err := Get[int](&loaded.Parameters, "trigger")
	require.NoError(t, err)
	require.Equal(t, 3, trig)

	require.NoError(t, LoadEventHeader(r, "events/EventHeader", &loaded, cfg))
	require.Equal(t, int32(2), loaded.Number)
	require.False(t, loaded.IsRealData)
	trig, err = Get[int](&loaded.Parameters, "trigger")
	require.NoError(t, err)
	require.Equal(t, 9, trig)
}

func TestParameterMapTypeMismatch(t *testing.T) {
	var p ParameterMap
	Set(&p, "trigger", 3)

	_, err := Get[string](&p, "trigger")
	require.Error(t, err)
	require.True(t, xerrors.Is(err, xerrors.BadType))

	_, err = Get[int](&p, "missing")
	require.True(t, xerrors.Is(err, xerrors.NotFound))
}

func TestParameterMapClearKeepsKeys(t *testing.T) {
	var p ParameterMap
	Set(&p, "trigger", 3)
	Set(&p, "corr", 1.5)
	Set(&p, "tag", "a")

	p.Clear()

	require.ElementsMatch(t, []string{"trigger", "corr", "tag"}, p.Keys())
	i, err := Get[int](&p, "trigger")
	require.NoError(t, err)
	require.Equal(t, -1<<63, i) // math.MinInt on a 64-bit platform

	f, err := Get[float64](&p, "corr")
	require.NoError(t, err)
	require.Equal(t, 0.0, f)

	s, err := Get[string](&p, "tag")
	require.NoError(t, err)
	require.Equal(t, "", s)
}

func TestRunHeaderLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.fire")
	cfg := data.Config{ChunkSize: 4}

	w, err := backend.Open(path, backend.ModeTruncateWrite)
	require.NoError(t, err)

	rh := NewRunHeader()
	require.NoError(t, DeclareRunHeader(w, "runs/RunHeader", rh, cfg))

	rh.RunStart(42)
	rh.DetectorName = "calo"
	require.NoError(t, SaveRunHeader(w, "runs/RunHeader", rh, cfg))

	rh.RunEnd()
	require.Greater(t, rh.End, int64(0))
	require.NoError(t, w.Close())

	r, err := backend.Open(path, backend.ModeReadOnly)
	require.NoError(t, err)
	var loaded RunHeader
	require.NoError(t, LoadRunHeader(r, "runs/RunHeader", &loaded, cfg))
	require.Equal(t, int32(42), loaded.Number)
	require.Equal(t, "calo", loaded.DetectorName)
}
