package fireio

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fire-hep/fire/data"
)

type seqProduct struct {
	Values []int32
}

func (s *seqProduct) Clear()            { s.Values = nil }
func (s *seqProduct) Attach(b *data.Builder) { b.Add("values", &s.Values) }

func TestMirrorCopySequenceProduct(t *testing.T) {
	srcPath := filepath.Join(t.TempDir(), "src.fire")
	w, err := NewWriter(srcPath, data.Config{ChunkSize: 8})
	require.NoError(t, err)

	events := [][]int32{{1, 2, 3}, {}, {4}, {5, 6}}
	var sp seqProduct
	for _, vs := range events {
		sp.Values = vs
		require.NoError(t, w.Save("events/p/hits", &sp))
	}
	require.NoError(t, w.Close())

	r, err := NewReader(srcPath, data.Config{ChunkSize: 8})
	require.NoError(t, err)

	dstPath := filepath.Join(t.TempDir(), "dst.fire")
	dst, err := NewWriter(dstPath, data.Config{ChunkSize: 8})
	require.NoError(t, err)

	for i := range events {
		require.NoError(t, r.Copy(i, "events/p/hits", dst))
	}
	require.NoError(t, dst.Close())

	verifyR, err := NewReader(dstPath, data.Config{ChunkSize: 8})
	require.NoError(t, err)
	var loaded seqProduct
	for _, want := range events {
		require.NoError(t, verifyR.LoadInto("events/p/hits", &loaded))
		require.ElementsMatch(t, want, loaded.Values)
	}
}

func TestListAvailableProducts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.fire")
	w, err := NewWriter(path, data.Config{ChunkSize: 4})
	require.NoError(t, err)

	var n int32
	require.NoError(t, w.Save("events/reco/keepme", &n))
	require.NoError(t, w.Save("events/reco/dropme", &n))
	require.NoError(t, w.Close())

	r, err := NewReader(path, data.Config{ChunkSize: 4})
	require.NoError(t, err)
	tags := r.ListAvailableProducts()
	require.Len(t, tags, 2)
	require.Equal(t, "dropme", tags[0].Name)
	require.Equal(t, "keepme", tags[1].Name)
}
