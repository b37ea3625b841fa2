package compaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreEvictsOldestBeyondCapacity(t *testing.T) {
	buf, err := New(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := buf.Store(Summary{SummaryText: "summary", SessionID: "s1"})
		require.NoError(t, err)
	}

	entries, err := buf.GetContext()
	require.NoError(t, err)
	require.Len(t, entries, Capacity)
	assert.Equal(t, 3, entries[0].CompactionNumber)
	assert.Equal(t, 5, entries[2].CompactionNumber)
}

func TestStoreAssignsMonotonicCompactionNumber(t *testing.T) {
	buf, err := New(t.TempDir())
	require.NoError(t, err)

	first, err := buf.Store(Summary{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.CompactionNumber)

	second, err := buf.Store(Summary{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.CompactionNumber)
}

func TestGetStatsReportsOccupancyAndCounter(t *testing.T) {
	buf, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = buf.Store(Summary{SessionID: "s1"})
	require.NoError(t, err)

	stats, err := buf.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Occupancy)
	assert.Equal(t, 1, stats.LastCompactionNumber)
}

func TestWireStatsMatchesDocumentedShape(t *testing.T) {
	buf, err := New(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := buf.Store(Summary{SessionID: "s1"})
		require.NoError(t, err)
	}

	stats, err := buf.GetStats()
	require.NoError(t, err)

	wire := stats.Wire()
	assert.Equal(t, "3/3", wire.Capacity)
	assert.Equal(t, 4, wire.TotalCompactions)
}

func TestGetContextOnEmptyBufferIsEmpty(t *testing.T) {
	buf, err := New(t.TempDir())
	require.NoError(t, err)

	entries, err := buf.GetContext()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
