package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fire-hep/fire/internal/params"
	"github.com/fire-hep/fire/internal/xerrors"
)

type widget struct{ Gain int }

func TestDeclareAndMake(t *testing.T) {
	r := New()
	require.NoError(t, r.Declare("widget", func(args params.Reader) (interface{}, error) {
		gain, _ := args.GetInt("gain")
		return &widget{Gain: gain}, nil
	}))

	got, err := r.Make("widget", params.NewFromMap(map[string]interface{}{"gain": 7}))
	require.NoError(t, err)
	w, ok := got.(*widget)
	require.True(t, ok)
	require.Equal(t, 7, w.Gain)
}

func TestDeclareDuplicateIsAmbiguous(t *testing.T) {
	r := New()
	factory := func(args params.Reader) (interface{}, error) { return &widget{}, nil }
	require.NoError(t, r.Declare("widget", factory))
	err := r.Declare("widget", factory)
	require.True(t, xerrors.Is(err, xerrors.Ambiguous))
}

func TestMakeUndeclaredIsNotFound(t *testing.T) {
	r := New()
	_, err := r.Make("nope", params.NewFromMap(nil))
	require.True(t, xerrors.Is(err, xerrors.NotFound))
}

func TestNamesSorted(t *testing.T) {
	r := New()
	factory := func(args params.Reader) (interface{}, error) { return &widget{}, nil }
	for _, n := range []string{"zeta", "alpha", "mu"} {
		require.NoError(t, r.Declare(n, factory))
	}
	require.Equal(t, []string{"alpha", "mu", "zeta"}, r.Names())
}

func TestLoadLibraryMissingPathIsLibLoad(t *testing.T) {
	r := New()
	err := r.LoadLibrary("/nonexistent/path/to/plugin.so")
	require.True(t, xerrors.Is(err, xerrors.LibLoad))
}

func TestLoadLibraryIdempotentOnRepeatedMissingPath(t *testing.T) {
	r := New()
	path := "/nonexistent/path/to/plugin.so"
	err1 := r.LoadLibrary(path)
	require.True(t, xerrors.Is(err1, xerrors.LibLoad))
	// A failed open must not be recorded as loaded: the path set only
	// tracks successful loads, so a later retry still attempts to open it
	// rather than silently succeeding.
	err2 := r.LoadLibrary(path)
	require.True(t, xerrors.Is(err2, xerrors.LibLoad))
}
