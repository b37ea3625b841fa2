package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Compaction.Capacity)
	assert.Equal(t, "stdio", cfg.Transport.Mode)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sovereign.yaml")

	cfg := DefaultConfig()
	cfg.Governance.FileCountCap = 777
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 777, loaded.Governance.FileCountCap)
}

func TestValidateRejectsOutOfRangeLimits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CoreLimits.MaxConcurrentToolCalls = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Governance.ReversibilityFloor = 1.5
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestResolveRootPrefersExplicitField(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Root = "/tmp/explicit-root"
	root, err := cfg.ResolveRoot()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/explicit-root", root)
}
