package backend

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestColumnRoundTrip covers testable property 2: the sequence of values
// read equals the sequence written, for arbitrary chunk sizes and counts.
func TestColumnRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run.fire")

	for _, chunkSize := range []int{1, 3, 16} {
		w, err := Open(dir, ModeTruncateWrite)
		require.NoError(t, err)
		require.NoError(t, w.CreateColumn("events/test/n", Int32, chunkSize, 5, false))

		want := make([]int32, 0, 37)
		for i := int32(0); i < 37; i++ {
			want = append(want, i*i)
			require.NoError(t, w.Append("events/test/n", i*i))
		}
		require.NoError(t, w.Close())

		r, err := Open(dir, ModeReadOnly)
		require.NoError(t, err)
		for _, exp := range want {
			got, err := r.Read("events/test/n")
			require.NoError(t, err)
			require.Equal(t, exp, got)
		}
		_, err = r.Read("events/test/n")
		require.ErrorIs(t, err, EndOfColumn)
	}
}

func TestStringColumnRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run.fire")
	w, err := Open(dir, ModeTruncateWrite)
	require.NoError(t, err)
	require.NoError(t, w.CreateColumn("events/test/s", String, 4, 3, false))

	want := []string{"", "a", "hello world", "日本語", "x"}
	for _, s := range want {
		require.NoError(t, w.Append("events/test/s", s))
	}
	require.NoError(t, w.Close())

	r, err := Open(dir, ModeReadOnly)
	require.NoError(t, err)
	for _, exp := range want {
		got, err := r.Read("events/test/s")
		require.NoError(t, err)
		require.Equal(t, exp, got)
	}
}

func TestShuffleRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run.fire")
	w, err := Open(dir, ModeTruncateWrite)
	require.NoError(t, err)
	require.NoError(t, w.CreateColumn("events/test/f", Float64, 8, 9, true))

	want := []float64{0, 1.5, -2.25, 1e10, -1e-10}
	for _, v := range want {
		require.NoError(t, w.Append("events/test/f", v))
	}
	require.NoError(t, w.Close())

	r, err := Open(dir, ModeReadOnly)
	require.NoError(t, err)
	for _, exp := range want {
		got, err := r.Read("events/test/f")
		require.NoError(t, err)
		require.Equal(t, exp, got)
	}
}

func TestAttrsAndExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run.fire")
	w, err := Open(dir, ModeTruncateWrite)
	require.NoError(t, err)
	require.NoError(t, w.CreateColumn("events/pass/foo/bar", Int64, 10, 0, false))
	require.NoError(t, w.SetAttr("events/pass/foo", "type", "Foo"))
	require.NoError(t, w.SetAttr("events/pass/foo", "version", 1))
	require.NoError(t, w.Append("events/pass/foo/bar", int64(42)))
	require.NoError(t, w.Close())

	r, err := Open(dir, ModeReadOnly)
	require.NoError(t, err)
	require.True(t, r.Exists("events/pass/foo/bar"))
	require.True(t, r.Exists("events/pass/foo"))
	require.True(t, r.Exists("events/pass"))
	require.True(t, r.Exists("events"))
	require.False(t, r.Exists("events/pass/nope"))

	typ, ok := r.TypeOf("events/pass/foo/bar")
	require.True(t, ok)
	require.Equal(t, Int64, typ)

	v, ok := r.GetAttr("events/pass/foo", "type")
	require.True(t, ok)
	require.Equal(t, "Foo", v)

	n, err := r.Dims("events/pass/foo/bar")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.Equal(t, []string{"foo"}, r.List("events/pass"))
	require.Equal(t, []string{"bar"}, r.List("events/pass/foo"))
}

func TestCopyRange(t *testing.T) {
	srcDir := filepath.Join(t.TempDir(), "src.fire")
	src, err := Open(srcDir, ModeTruncateWrite)
	require.NoError(t, err)
	require.NoError(t, src.CreateColumn("events/p/v", Int32, 4, 0, false))
	for i := int32(0); i < 20; i++ {
		require.NoError(t, src.Append("events/p/v", i))
	}
	require.NoError(t, src.Close())

	srcR, err := Open(srcDir, ModeReadOnly)
	require.NoError(t, err)

	dstDir := filepath.Join(t.TempDir(), "dst.fire")
	dst, err := Open(dstDir, ModeTruncateWrite)
	require.NoError(t, err)

	require.NoError(t, Copy(srcR, "events/p/v", 5, 7, dst))
	require.NoError(t, dst.Close())

	dstR, err := Open(dstDir, ModeReadOnly)
	require.NoError(t, err)
	for i := int32(5); i < 12; i++ {
		got, err := dstR.Read("events/p/v")
		require.NoError(t, err)
		require.Equal(t, i, got)
	}
}
