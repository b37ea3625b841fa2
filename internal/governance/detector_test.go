package governance

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}
}

func TestScanDetectsFileCountViolation(t *testing.T) {
	root := t.TempDir()
	names := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		names = append(names, string(rune('a'+i))+".txt")
	}
	writeFiles(t, root, names...)

	d := NewDetector(Limits{FileCountCap: 3, DepthCap: 10, EntropyCap: 100, GrowthRateCapPerMin: 1000})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := d.Scan(ctx, root, false)
	require.NoError(t, err)

	found := false
	for _, e := range result.Events {
		if e.Metric == "file_count" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestScanRespectsTimeoutAndFlagsIncomplete(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.txt")

	d := NewDetector(Limits{FileCountCap: 100, DepthCap: 100, EntropyCap: 100, GrowthRateCapPerMin: 1000})
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()

	result, err := d.Scan(ctx, root, true)
	require.NoError(t, err)
	assert.True(t, result.Incomplete)
}

func TestTokenizeFilenameSplitsOnSeparators(t *testing.T) {
	assert.Equal(t, []string{"foo", "bar"}, tokenizeFilename("foo_bar.json"))
}

func TestScanDetectsEntropyViolationOnChaoticNames(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "xq7.tmp", "zzk2!.bin", "q9w.dat", "k3f8.log")

	d := NewDetector(Limits{FileCountCap: 100, DepthCap: 10, EntropyCap: 0.1, GrowthRateCapPerMin: 1000})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := d.Scan(ctx, root, false)
	require.NoError(t, err)

	found := false
	for _, e := range result.Events {
		if e.Metric == "entropy" {
			found = true
		}
	}
	assert.True(t, found)
}
