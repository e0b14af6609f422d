// Package ratelimit provides a process-wide sliding-window rate limiter
// keyed by client address.
//
// Each address owns a bounded queue of request timestamps inside the
// trailing window; entries older than the window are evicted lazily on
// every admission check. State is sharded so unrelated addresses never
// contend on a lock.
package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"
)

// Mocked for deterministic window tests.
var timeNow = time.Now

const shardCount = 32

// Limiter is a process-wide, per-address sliding-window gate.
// Construct once at process start with New and tear down with Stop.
type Limiter struct {
	limit  int
	window time.Duration

	shards [shardCount]shard

	stopOnce sync.Once
	stopCh   chan struct{}
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// entry is the per-address state: request timestamps inside the
// trailing window, oldest first.
type entry struct {
	stamps []time.Time
}

// New creates a limiter admitting at most limit requests per window
// from a single address. A janitor goroutine drops idle addresses;
// call Stop when the limiter is no longer needed.
func New(limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	l := &Limiter{
		limit:  limit,
		window: window,
		stopCh: make(chan struct{}),
	}
	for i := range l.shards {
		l.shards[i].entries = make(map[string]*entry)
	}

	go l.janitor()

	return l
}

// Stop terminates the janitor goroutine.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Allow reports whether a request from addr is admitted, recording it
// when so. The check is atomic per address: eviction, count, and
// record happen under the address's shard lock.
func (l *Limiter) Allow(addr string) bool {
	sh := l.shard(addr)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := timeNow()
	e, ok := sh.entries[addr]
	if !ok {
		e = &entry{}
		sh.entries[addr] = e
	}

	e.evict(now.Add(-l.window))

	if len(e.stamps) >= l.limit {
		return false
	}

	e.stamps = append(e.stamps, now)
	return true
}

// shard maps an address to its lock domain.
func (l *Limiter) shard(addr string) *shard {
	h := fnv.New32a()
	h.Write([]byte(addr))
	return &l.shards[h.Sum32()%shardCount]
}

// evict drops timestamps at or before cutoff. Stamps are appended in
// time order, so only a prefix is ever dropped.
func (e *entry) evict(cutoff time.Time) {
	i := 0
	for i < len(e.stamps) && !e.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		e.stamps = append(e.stamps[:0], e.stamps[i:]...)
	}
}

// janitor periodically removes addresses with no activity inside the
// window, bounding memory for one-off clients.
func (l *Limiter) janitor() {
	ticker := time.NewTicker(l.window * 2)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			cutoff := timeNow().Add(-l.window)
			for i := range l.shards {
				sh := &l.shards[i]
				sh.mu.Lock()
				for addr, e := range sh.entries {
					e.evict(cutoff)
					if len(e.stamps) == 0 {
						delete(sh.entries, addr)
					}
				}
				sh.mu.Unlock()
			}
		}
	}
}
