// Package compaction implements the bounded FIFO summary ring (spec
// §4.10): capacity exactly three, persisted as a single JSON document,
// atomic on every mutation.
package compaction

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/templetwo/sovereign-stack/internal/logging"
	"github.com/templetwo/sovereign-stack/internal/sovereignerr"
	"github.com/templetwo/sovereign-stack/internal/storage"
)

// Capacity is the fixed buffer size named by spec §4.10.
const Capacity = 3

// Summary is one compacted session record.
type Summary struct {
	Timestamp           string   `json:"timestamp"`
	SummaryText         string   `json:"summary_text"`
	SessionID           string   `json:"session_id"`
	CompactionNumber    int      `json:"compaction_number"`
	KeyPoints           []string `json:"key_points"`
	ActiveTasks         []string `json:"active_tasks"`
	RecentBreakthroughs []string `json:"recent_breakthroughs"`
}

// buffer is the persisted document: the ring plus the monotonic counter.
type buffer struct {
	Entries          []Summary `json:"entries"`
	LastCompactionNumber int   `json:"last_compaction_number"`
}

// Buffer owns the single compaction document at root/compaction_memory.
type Buffer struct {
	path   string
	locker *storage.Locker
}

// New returns a Buffer rooted at root.
func New(root string) (*Buffer, error) {
	path := filepath.Join(root, "compaction_memory", "buffer.json")
	locker, err := storage.NewLocker(path)
	if err != nil {
		return nil, err
	}
	return &Buffer{path: path, locker: locker}, nil
}

func (b *Buffer) load() (buffer, error) {
	var buf buffer
	if err := storage.ReadJSON(b.path, &buf); err != nil {
		if sovereignerr.KindOf(err) == sovereignerr.NotFound {
			return buffer{}, nil
		}
		return buffer{}, err
	}
	return buf, nil
}

// Store appends summary to the ring, evicting the oldest entry first if
// the ring would exceed Capacity. compaction_number is assigned as
// last+1 and persisted atomically.
func (b *Buffer) Store(summary Summary) (Summary, error) {
	var stored Summary
	err := b.locker.WithLock(5*time.Second, func() error {
		buf, err := b.load()
		if err != nil {
			return err
		}

		summary.CompactionNumber = buf.LastCompactionNumber + 1
		summary.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)

		buf.Entries = append(buf.Entries, summary)
		if len(buf.Entries) > Capacity {
			buf.Entries = buf.Entries[len(buf.Entries)-Capacity:]
		}
		buf.LastCompactionNumber = summary.CompactionNumber

		if err := storage.WriteJSONAtomic(b.path, buf); err != nil {
			return err
		}
		stored = summary
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	logging.Get(logging.CategoryCompaction).Debug("stored compaction #%d for session %s", stored.CompactionNumber, stored.SessionID)
	return stored, nil
}

// GetContext returns all entries currently in the ring, oldest first,
// formatted for consumption by the external agent.
func (b *Buffer) GetContext() ([]Summary, error) {
	buf, err := b.load()
	if err != nil {
		return nil, err
	}
	return buf.Entries, nil
}

// Stats reports buffer occupancy and the monotonic compaction number.
type Stats struct {
	Occupancy        int `json:"occupancy"`
	LastCompactionNumber int `json:"last_compaction_number"`
}

// GetStats returns the buffer's current occupancy and compaction counter.
func (b *Buffer) GetStats() (Stats, error) {
	buf, err := b.load()
	if err != nil {
		return Stats{}, err
	}
	return Stats{Occupancy: len(buf.Entries), LastCompactionNumber: buf.LastCompactionNumber}, nil
}

// WireStats is the over-the-wire shape for get_compaction_stats (spec §8
// scenario 2): occupancy rendered as "n/3" and the monotonic counter
// reported as the total number of compactions performed.
type WireStats struct {
	Capacity         string `json:"capacity"`
	TotalCompactions int    `json:"total_compactions"`
}

// Wire converts Stats into the documented get_compaction_stats response.
func (s Stats) Wire() WireStats {
	return WireStats{
		Capacity:         fmt.Sprintf("%d/%d", s.Occupancy, Capacity),
		TotalCompactions: s.LastCompactionNumber,
	}
}
