package checkpoint

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	sd := map[string]*mat.Dense{
		"proj.weight": mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}),
		"proj.bias":   mat.NewDense(1, 3, []float64{-1, 0, 1}),
	}

	path := filepath.Join(t.TempDir(), "model.ckpt")
	require.NoError(t, Save(path, sd))

	got, err := Load(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for name, want := range sd {
		require.Contains(t, got, name)
		assert.True(t, mat.Equal(want, got[name]), "mismatch in %s", name)
	}
}

func TestSaveOverwritesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.ckpt")
	require.NoError(t, Save(path, map[string]*mat.Dense{
		"a": mat.NewDense(1, 1, []float64{1}),
	}))
	require.NoError(t, Save(path, map[string]*mat.Dense{
		"b": mat.NewDense(1, 1, []float64{2}),
	}))

	got, err := Load(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got, "b")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.ckpt"))
	assert.Error(t, err)
}
