package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calcrc.yaml")
	cfg := Default()
	cfg.AllowWrite = false
	cfg.MaxErrors = 5
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, got)
}

func TestSetReturnsPreviousValue(t *testing.T) {
	cfg := Default()
	old, err := cfg.Set("allow_read", false)
	require.NoError(t, err)
	require.Equal(t, true, old)
	require.False(t, cfg.AllowRead)
}

func TestSetUnknownKeyErrors(t *testing.T) {
	cfg := Default()
	_, err := cfg.Set("nonexistent", 1)
	require.Error(t, err)
}

func TestGetDoesNotMutate(t *testing.T) {
	cfg := Default()
	v, err := cfg.Get("max_dim")
	require.NoError(t, err)
	require.Equal(t, cfg.MaxDim, v)
	require.Equal(t, 4, cfg.MaxDim, "Get must not mutate the field")
}
