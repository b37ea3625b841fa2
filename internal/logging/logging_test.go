package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeDisabledIsNoop(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, Settings{DebugMode: false}))

	l := Get(CategoryBoot)
	l.Info("should not be written")

	_, err := os.Stat(filepath.Join(dir, "logs"))
	assert.True(t, os.IsNotExist(err))
}

func TestInitializeWritesPerCategoryFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, Settings{DebugMode: true, Level: "debug"}))
	defer CloseAll()

	Get(CategoryChronicle).Info("insight recorded domain=%s", "testing")

	path := filepath.Join(dir, "logs", "chronicle.log")
	CloseAll()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "insight recorded")
}

func TestCategoryToggleDisablesOneCategory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, Settings{
		DebugMode:  true,
		Categories: map[string]bool{string(CategoryGovernance): false},
	}))
	defer CloseAll()

	Get(CategoryGovernance).Error("should be suppressed")
	CloseAll()

	_, err := os.Stat(filepath.Join(dir, "logs", "governance.log"))
	assert.True(t, os.IsNotExist(err))
}
