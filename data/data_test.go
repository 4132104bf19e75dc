package data

import (
	"path/filepath"
	"testing"

	"github.com/fire-hep/fire/backend"
	"github.com/fire-hep/fire/internal/xerrors"
	"github.com/stretchr/testify/require"
)

type point struct {
	X int32
	Y int32
}

func (p *point) Clear()          { p.X, p.Y = 0, 0 }
func (p *point) Attach(b *Builder) {
	b.Add("x", &p.X)
	b.Add("y", &p.Y)
}

type hit struct {
	Energy float64
	Tags   []string
	Meta   map[string]int32
	Where  point
}

func (h *hit) Clear() {
	h.Energy = 0
	h.Tags = nil
	h.Meta = nil
	h.Where = point{}
}

func (h *hit) Attach(b *Builder) {
	b.Add("energy", &h.Energy)
	b.Add("tags", &h.Tags)
	b.Add("meta", &h.Meta)
	b.Add("where", &h.Where)
}

func TestAggregateRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run.fire")
	w, err := backend.Open(dir, backend.ModeTruncateWrite)
	require.NoError(t, err)

	cfg := Config{ChunkSize: 4, CompressionLevel: 1}

	events := []hit{
		{Energy: 1.5, Tags: []string{"a", "b"}, Meta: map[string]int32{"n": 1}, Where: point{1, 2}},
		{Energy: 2.5, Tags: nil, Meta: map[string]int32{}, Where: point{3, 4}},
		{Energy: 0, Tags: []string{"x"}, Meta: map[string]int32{"p": 7, "q": 9}, Where: point{-1, -2}},
	}

	var h hit
	tr, err := New("events/test/hit", &h, cfg)
	require.NoError(t, err)
	require.NoError(t, tr.Declare(w))

	for _, ev := range events {
		h = ev
		require.NoError(t, tr.Save(w))
	}
	require.NoError(t, w.Close())

	r, err := backend.Open(dir, backend.ModeReadOnly)
	require.NoError(t, err)

	var loaded hit
	ltr, err := New("events/test/hit", &loaded, cfg)
	require.NoError(t, err)

	for _, want := range events {
		ltr.Clear()
		require.NoError(t, ltr.Load(r))
		require.Equal(t, want.Energy, loaded.Energy)
		require.Equal(t, want.Where, loaded.Where)
		require.ElementsMatch(t, want.Tags, loaded.Tags)
		require.Equal(t, len(want.Meta), len(loaded.Meta))
		for k, v := range want.Meta {
			require.Equal(t, v, loaded.Meta[k])
		}
	}

	typ, ok := r.GetAttr("events/test/hit", "type")
	require.True(t, ok)
	require.Equal(t, "data.hit", typ)
}

type reservedNameAggregate struct{ N int32 }

func (r *reservedNameAggregate) Clear()            { r.N = 0 }
func (r *reservedNameAggregate) Attach(b *Builder) { b.Add("size", &r.N) }

type reservedNameRename struct{ N int32 }

func (r *reservedNameRename) Clear()            { r.N = 0 }
func (r *reservedNameRename) Version() int      { return 2 }
func (r *reservedNameRename) Attach(b *Builder) { b.Rename("old", "size", &r.N) }

func TestReservedSizeNameIsBadName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run.fire")
	w, err := backend.Open(dir, backend.ModeTruncateWrite)
	require.NoError(t, err)

	var r reservedNameAggregate
	tr, err := New("events/test/r", &r, Config{ChunkSize: 4})
	require.NoError(t, err)
	err = tr.Declare(w)
	require.Error(t, err)
	require.True(t, xerrors.Is(err, xerrors.BadName))

	var rr reservedNameRename
	tr2, err := New("events/test/rr", &rr, Config{ChunkSize: 4})
	require.NoError(t, err)
	err = tr2.Declare(w)
	require.Error(t, err)
	require.True(t, xerrors.Is(err, xerrors.BadName))
}

func TestAggregateClearResetsMembers(t *testing.T) {
	var p point
	p.X, p.Y = 5, 6
	p.Clear()
	require.Equal(t, int32(0), p.X)

	var h hit
	h.Energy = 9
	h.Clear()
	require.Equal(t, float64(0), h.Energy)
	require.Len(t, h.Tags, 0)
}

// schemaV1 / schemaV2 model testable scenario S6: a field renamed across a
// schema version bump while preserving stored values.
type schemaV1 struct {
	DV1 int32
}

func (s *schemaV1) Clear()            { s.DV1 = 0 }
func (s *schemaV1) Attach(b *Builder) { b.Add("dv1", &s.DV1) }

type schemaV2 struct {
	DV2 int32
}

func (s *schemaV2) Clear()            { s.DV2 = 0 }
func (s *schemaV2) Version() int      { return 2 }
func (s *schemaV2) Attach(b *Builder) { b.Rename("dv1", "dv2", &s.DV2) }

func TestSchemaEvolutionRename(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run.fire")
	w, err := backend.Open(dir, backend.ModeTruncateWrite)
	require.NoError(t, err)

	cfg := Config{ChunkSize: 4}
	var v1 schemaV1
	tr, err := New("events/test/foo", &v1, cfg)
	require.NoError(t, err)
	require.NoError(t, tr.Declare(w))
	for _, n := range []int32{10, 20, 30} {
		v1.DV1 = n
		require.NoError(t, tr.Save(w))
	}
	require.NoError(t, w.Close())

	r, err := backend.Open(dir, backend.ModeReadOnly)
	require.NoError(t, err)

	var v2 schemaV2
	tr2, err := New("events/test/foo", &v2, cfg)
	require.NoError(t, err)
	for _, want := range []int32{10, 20, 30} {
		require.NoError(t, tr2.Load(r))
		require.Equal(t, want, v2.DV2)
	}

	// write-through with the new schema: output has dv2 at version 2, no dv1
	outDir := filepath.Join(t.TempDir(), "out.fire")
	ow, err := backend.Open(outDir, backend.ModeTruncateWrite)
	require.NoError(t, err)
	require.NoError(t, tr2.Declare(ow))
	require.NoError(t, tr2.Save(ow))
	require.NoError(t, ow.Close())

	outR, err := backend.Open(outDir, backend.ModeReadOnly)
	require.NoError(t, err)
	require.True(t, outR.Exists("events/test/foo/dv2"))
	require.False(t, outR.Exists("events/test/foo/dv1"))
	ver, ok := outR.GetAttr("events/test/foo", "version")
	require.True(t, ok)
	require.Equal(t, 2, toInt(ver))
}
