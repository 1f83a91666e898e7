package repo

import (
	"math/rand"
	"time"

	"github.com/mhalle/vost/refs"
)

// RetryWrite re-fetches branch's current snapshot and replays fn on
// StaleSnapshotError, with bounded exponential backoff, per spec.md
// §5's optional retry_write convenience. fn receives the freshly
// fetched writable Snapshot and returns the resulting Snapshot; every
// attempt re-fetches the branch, so what fn returns on a failed attempt
// is discarded.
func (r *Repository) RetryWrite(branch string, maxAttempts int, fn func(s *Snapshot) (*Snapshot, error)) (*Snapshot, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := 10 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		s, err := r.Branch(branch)
		if err != nil {
			return nil, err
		}
		result, err := fn(s)
		if err == nil {
			return result, nil
		}
		if _, stale := err.(*refs.StaleSnapshotError); !stale {
			return nil, err
		}
		lastErr = err
		if attempt == maxAttempts-1 {
			break
		}
		time.Sleep(backoff + time.Duration(rand.Int63n(int64(backoff))))
		backoff *= 2
	}
	return nil, lastErr
}
