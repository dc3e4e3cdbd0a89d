package services

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/BradenHooton/kamino-guard/internal/models"
)

const (
	windowShardCount   = 32
	windowSweepMinSize = 64
)

// lockoutWindow holds the failures of one identity, oldest first.
type lockoutWindow struct {
	mu       sync.Mutex
	failures []models.LoginFailureRecord
	retired  bool // removed from its shard; callers must look the identity up again
}

// prune drops failures older than cutoff. Caller holds w.mu.
func (w *lockoutWindow) prune(cutoff time.Time) {
	kept := w.failures[:0]
	for _, f := range w.failures {
		if !f.Timestamp.Before(cutoff) {
			kept = append(kept, f)
		}
	}
	for i := len(kept); i < len(w.failures); i++ {
		w.failures[i] = models.LoginFailureRecord{}
	}
	w.failures = kept
}

type windowShard struct {
	mu        sync.Mutex
	windows   map[string]*lockoutWindow
	nextSweep int
}

// windowRegistry is the in-process map of sliding windows, keyed by identity.
// The shard lock only guards map membership; append-and-prune runs under the
// per-window lock, so different identities never wait on each other's windows.
type windowRegistry struct {
	shards [windowShardCount]windowShard
}

func newWindowRegistry() *windowRegistry {
	r := &windowRegistry{}
	for i := range r.shards {
		r.shards[i].windows = make(map[string]*lockoutWindow)
		r.shards[i].nextSweep = windowSweepMinSize
	}
	return r
}

func (r *windowRegistry) shard(key string) *windowShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &r.shards[h.Sum32()%windowShardCount]
}

// record appends a failure, prunes everything older than cutoff and returns
// the number of failures left in the window.
func (r *windowRegistry) record(key string, failure models.LoginFailureRecord, cutoff time.Time) int {
	for {
		w := r.acquire(key, cutoff)

		w.mu.Lock()
		if w.retired {
			w.mu.Unlock()
			continue
		}
		w.prune(cutoff)
		w.failures = append(w.failures, failure)
		count := len(w.failures)
		w.mu.Unlock()

		return count
	}
}

// count returns the failures inside the window without recording one.
func (r *windowRegistry) count(key string, cutoff time.Time) int {
	sh := r.shard(key)
	sh.mu.Lock()
	w := sh.windows[key]
	sh.mu.Unlock()

	if w == nil {
		return 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.retired {
		return 0
	}
	w.prune(cutoff)
	return len(w.failures)
}

// clear discards the window for key.
func (r *windowRegistry) clear(key string) {
	sh := r.shard(key)
	sh.mu.Lock()
	w := sh.windows[key]
	delete(sh.windows, key)
	sh.mu.Unlock()

	if w != nil {
		w.mu.Lock()
		w.retired = true
		w.failures = nil
		w.mu.Unlock()
	}
}

// size returns the number of live windows.
func (r *windowRegistry) size() int {
	total := 0
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.Lock()
		total += len(sh.windows)
		sh.mu.Unlock()
	}
	return total
}

func (r *windowRegistry) acquire(key string, cutoff time.Time) *lockoutWindow {
	sh := r.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if w, ok := sh.windows[key]; ok {
		return w
	}

	if len(sh.windows) >= sh.nextSweep {
		sh.evictStale(cutoff)
		sh.nextSweep = len(sh.windows) * 2
		if sh.nextSweep < windowSweepMinSize {
			sh.nextSweep = windowSweepMinSize
		}
	}

	w := &lockoutWindow{}
	sh.windows[key] = w
	return w
}

// evictStale drops windows whose every failure is older than cutoff.
// Windows busy in another goroutine are skipped. Caller holds sh.mu.
func (sh *windowShard) evictStale(cutoff time.Time) {
	for key, w := range sh.windows {
		if !w.mu.TryLock() {
			continue
		}
		w.prune(cutoff)
		if len(w.failures) == 0 {
			w.retired = true
			delete(sh.windows, key)
		}
		w.mu.Unlock()
	}
}
