// Package governance implements the threshold detector, scenario
// simulator, deliberator, and hash-chained audit log that together form
// the Governance Circuit (spec §4.3-4.7).
package governance

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/templetwo/sovereign-stack/internal/logging"
)

// Severity classifies a ThresholdEvent.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ThresholdEvent is one metric violation discovered by a scan.
type ThresholdEvent struct {
	Metric   string   `json:"metric"`
	Path     string   `json:"path"`
	Observed float64  `json:"observed"`
	Limit    float64  `json:"limit"`
	Severity Severity `json:"severity"`
}

// ScanResult is the outcome of a Detector scan; Incomplete is set when the
// wall-clock timeout elapsed before every subtree finished scanning.
type ScanResult struct {
	Events     []ThresholdEvent `json:"events"`
	Incomplete bool             `json:"incomplete"`
}

// Limits configures the five monitored metrics (spec §4.3).
type Limits struct {
	FileCountCap        int
	DepthCap            int
	EntropyCap          float64
	GrowthRateCapPerMin float64
}

// Detector scans a subtree for threshold violations. Scans are read-only
// and bounded by a wall-clock timeout; partial results on timeout are
// flagged Incomplete rather than treated as failures.
type Detector struct {
	limits Limits
}

// NewDetector returns a Detector configured with limits.
func NewDetector(limits Limits) *Detector {
	return &Detector{limits: limits}
}

// Scan walks root (recursively when recursive is true) and evaluates the
// five metrics per directory, fanning subtree scans out across a bounded
// worker pool (golang.org/x/sync/errgroup + semaphore) and returning
// partial results if ctx's deadline elapses first.
func (d *Detector) Scan(ctx context.Context, root string, recursive bool) (ScanResult, error) {
	dirs, err := d.collectDirs(root, recursive)
	if err != nil {
		return ScanResult{}, err
	}

	sem := semaphore.NewWeighted(4)
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var events []ThresholdEvent
	incomplete := false

	for _, dir := range dirs {
		dir := dir
		if err := sem.Acquire(gctx, 1); err != nil {
			incomplete = true
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			select {
			case <-gctx.Done():
				return nil
			default:
			}
			found := d.scanDir(dir, root)
			mu.Lock()
			events = append(events, found...)
			mu.Unlock()
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return ScanResult{}, err
		}
	case <-ctx.Done():
		incomplete = true
	}

	if depth := maxDepth(dirs, root); depth > d.limits.DepthCap {
		events = append(events, ThresholdEvent{
			Metric: "depth", Path: root,
			Observed: float64(depth), Limit: float64(d.limits.DepthCap),
			Severity: severityFor("depth", float64(depth), float64(d.limits.DepthCap)),
		})
	}

	if cycles := detectSelfReference(root, dirs); len(cycles) > 0 {
		for _, c := range cycles {
			events = append(events, ThresholdEvent{
				Metric: "self_reference", Path: c,
				Observed: 1, Limit: 0, Severity: SeverityCritical,
			})
		}
	}

	if rate, cap := d.growthRate(dirs), d.limits.GrowthRateCapPerMin; rate > cap {
		events = append(events, ThresholdEvent{
			Metric: "growth_rate", Path: root,
			Observed: rate, Limit: cap,
			Severity: severityFor("growth_rate", rate, cap),
		})
	}

	logging.Get(logging.CategoryGovernance).Debug("scan of %s found %d events (incomplete=%v)", root, len(events), incomplete)
	return ScanResult{Events: events, Incomplete: incomplete}, nil
}

func (d *Detector) collectDirs(root string, recursive bool) ([]string, error) {
	var dirs []string
	if !recursive {
		dirs = append(dirs, root)
		return dirs, nil
	}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs, err
}

func (d *Detector) scanDir(dir, scanRoot string) []ThresholdEvent {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var events []ThresholdEvent
	count := len(entries)
	if count > d.limits.FileCountCap {
		events = append(events, ThresholdEvent{
			Metric: "file_count", Path: dir,
			Observed: float64(count), Limit: float64(d.limits.FileCountCap),
			Severity: severityFor("file_count", float64(count), float64(d.limits.FileCountCap)),
		})
	}

	if ent := shannonEntropy(entries); ent > d.limits.EntropyCap {
		events = append(events, ThresholdEvent{
			Metric: "entropy", Path: dir,
			Observed: ent, Limit: d.limits.EntropyCap,
			Severity: severityFor("entropy", ent, d.limits.EntropyCap),
		})
	}
	return events
}

// shannonEntropy computes entropy over the token frequency distribution
// of filenames within one directory (spec §4.3: "chaotic naming").
func shannonEntropy(entries []os.DirEntry) float64 {
	counts := make(map[string]int)
	total := 0
	for _, e := range entries {
		for _, tok := range tokenizeFilename(e.Name()) {
			counts[tok]++
			total++
		}
	}
	if total == 0 {
		return 0
	}
	var h float64
	for _, c := range counts {
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

func tokenizeFilename(name string) []string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
}

func severityFor(metric string, observed, limit float64) Severity {
	if limit <= 0 {
		return SeverityCritical
	}
	if observed >= limit*2 {
		return SeverityCritical
	}
	return SeverityWarning
}

func maxDepth(dirs []string, root string) int {
	max := 0
	for _, d := range dirs {
		rel, err := filepath.Rel(root, d)
		if err != nil || rel == "." {
			continue
		}
		depth := len(strings.Split(filepath.ToSlash(rel), "/"))
		if depth > max {
			max = depth
		}
	}
	return max
}

// detectSelfReference follows name-as-pointer references: a directory
// whose name matches an ancestor directory's name is treated as a cycle
// candidate (spec §4.3).
func detectSelfReference(root string, dirs []string) []string {
	seenNames := make(map[string]string)
	var cycles []string
	for _, d := range dirs {
		name := filepath.Base(d)
		if prior, ok := seenNames[name]; ok && strings.HasPrefix(d, prior) && d != prior {
			cycles = append(cycles, d)
		} else {
			seenNames[name] = d
		}
	}
	return cycles
}

// growthRate estimates files created per minute using directory mtimes as
// a coarse histogram proxy.
func (d *Detector) growthRate(dirs []string) float64 {
	if len(dirs) == 0 {
		return 0
	}
	var oldest, newest time.Time
	count := 0
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil {
			continue
		}
		mt := info.ModTime()
		if oldest.IsZero() || mt.Before(oldest) {
			oldest = mt
		}
		if mt.After(newest) {
			newest = mt
		}
		count++
	}
	window := newest.Sub(oldest).Minutes()
	if window <= 0 {
		return float64(count)
	}
	return float64(count) / window
}
