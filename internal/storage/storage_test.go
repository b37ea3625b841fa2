package storage

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/templetwo/sovereign-stack/internal/sovereignerr"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestWriteJSONAtomicRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "record.json")
	require.NoError(t, WriteJSONAtomic(path, record{Name: "a", Count: 1}))

	var got record
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, record{Name: "a", Count: 1}, got)
}

func TestWriteJSONAtomicOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.json")
	require.NoError(t, WriteJSONAtomic(path, record{Name: "a", Count: 1}))
	require.NoError(t, WriteJSONAtomic(path, record{Name: "b", Count: 2}))

	var got record
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, record{Name: "b", Count: 2}, got)
}

func TestReadJSONMissingIsNotFound(t *testing.T) {
	var got record
	err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &got)
	require.Error(t, err)
	assert.Equal(t, sovereignerr.NotFound, sovereignerr.KindOf(err))
}

func TestAppendJSONLAndReadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	require.NoError(t, AppendJSONL(path, record{Name: "a", Count: 1}))
	require.NoError(t, AppendJSONL(path, record{Name: "b", Count: 2}))

	lines, err := ReadJSONLLines(path)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), `"a"`)
	assert.Contains(t, string(lines[1]), `"b"`)
}

func TestReadJSONLLinesMissingFileReturnsNil(t *testing.T) {
	lines, err := ReadJSONLLines(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.NoError(t, err)
	assert.Nil(t, lines)
}

func TestLockerSerializesConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "singleton.json")

	var wg sync.WaitGroup
	var mu sync.Mutex
	order := make([]int, 0, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			// Each goroutine acquires its own Locker instance against the
			// same lock file, mirroring how independent processes would
			// contend for the same singleton record.
			locker, err := NewLocker(path)
			if err != nil {
				return
			}
			_ = locker.WithLock(2*time.Second, func() error {
				mu.Lock()
				order = append(order, n)
				mu.Unlock()
				time.Sleep(time.Millisecond)
				return nil
			})
		}(i)
	}
	wg.Wait()
	assert.Len(t, order, 10)
}
