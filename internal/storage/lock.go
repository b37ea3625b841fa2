package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/templetwo/sovereign-stack/internal/sovereignerr"
)

// Locker guards a single singleton file (compaction buffer, audit log, a
// spiral session record) across a read-modify-write sequence. Chronicle
// records never need this: they are create-new-file and safe under
// concurrent access by construction (spec §5).
type Locker struct {
	// mu serializes goroutines sharing this Locker; the flock only
	// excludes other open file descriptions.
	mu sync.Mutex
	fl *flock.Flock
}

// NewLocker returns a Locker for the advisory lock file sitting alongside
// target (target.lock), creating parent directories as needed.
func NewLocker(target string) (*Locker, error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, sovereignerr.Internalf(err, "create directory for lock")
	}
	return &Locker{fl: flock.New(target + ".lock")}, nil
}

// WithLock acquires an exclusive advisory lock, runs fn, and releases the
// lock unconditionally. A lock held by another process for longer than
// timeout surfaces as Conflict so the caller can retry.
func (l *Locker) WithLock(timeout time.Duration, fn func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	l.mu.Lock()
	defer l.mu.Unlock()

	locked, err := l.fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil && ctx.Err() == nil {
		return sovereignerr.Internalf(err, "acquire lock")
	}
	if !locked {
		return sovereignerr.New(sovereignerr.Conflict, fmt.Sprintf("lock %s busy, retry", filepath.Base(l.fl.Path())))
	}
	defer l.fl.Unlock()
	return fn()
}
